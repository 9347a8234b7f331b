package objects

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

func strategy(t *testing.T, v version.Version) *version.Strategy {
	t.Helper()
	s, err := version.Resolve(v)
	require.NoError(t, err)
	return s
}

// frame wraps a body in an MS size and a zero CRC, after pad leading bytes
func frame(t *testing.T, pad int, body []byte) []byte {
	t.Helper()
	w := bitstream.NewWriter()
	require.NoError(t, w.WriteMS(uint32(len(body))))
	out := append(make([]byte, pad), w.Bytes()...)
	out = append(out, body...)
	return append(out, 0, 0)
}

func TestParseRecord(t *testing.T) {
	data := frame(t, 3, []byte{1, 2, 3, 4, 5})
	rec, err := ParseRecord(data, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), rec.Size)
	assert.Equal(t, uint64(5), rec.BodyStart)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, rec.Body)
	assert.Len(t, rec.Raw, 2+5+2)
	assert.Equal(t, uint64(40), rec.BitLen())
}

func TestParseRecordErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		offset uint64
		msg    string
	}{
		{"offset past end", []byte{0, 0}, 2, "object record offset exceeds file size"},
		{"zero size", []byte{0, 0, 0, 0}, 0, "object record size is zero"},
		{"body past end", []byte{0x08, 0x00, 1, 2}, 0, "object record exceeds file size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord(tt.data, tt.offset)
			require.Error(t, err)
			assert.True(t, dwgerr.IsKind(err, dwgerr.KindFormat))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseHeaderR2000(t *testing.T) {
	w := bitstream.NewWriter()
	w.WriteBS(TypeLine)
	w.WriteRL(123)
	w.WriteRCs([]byte{0, 0, 0})
	rec, err := ParseRecord(frame(t, 0, w.Bytes()), 0)
	require.NoError(t, err)

	h, err := ParseHeader(rec, strategy(t, version.R2000))
	require.NoError(t, err)
	assert.Equal(t, TypeLine, h.TypeCode)
	assert.Equal(t, rec.Size, h.DataSize)
	assert.False(t, h.HasHandleStream)
	assert.True(t, h.HasObjSize)
	assert.Equal(t, uint32(123), h.ObjSizeBits)
	start, ok := h.HandleStreamStart()
	require.True(t, ok)
	assert.Equal(t, uint64(123), start)
}

func TestParseHeaderR2010(t *testing.T) {
	w := bitstream.NewWriter()
	w.WriteUMC(40)
	w.WriteOT(TypeMText)
	w.WriteRCs(make([]byte, 12))
	rec, err := ParseRecord(frame(t, 0, w.Bytes()), 0)
	require.NoError(t, err)

	h, err := ParseHeader(rec, strategy(t, version.R2010))
	require.NoError(t, err)
	assert.Equal(t, TypeMText, h.TypeCode)
	assert.True(t, h.HasHandleStream)
	assert.Equal(t, uint32(40), h.HandleStreamBits)
	assert.False(t, h.HasObjSize)
	assert.LessOrEqual(t, uint64(h.HandleStreamBits), h.TotalBits())
}

func TestParseHeaderRejectsOversizedHandleStream(t *testing.T) {
	w := bitstream.NewWriter()
	w.WriteUMC(4096)
	w.WriteOT(TypeLine)
	rec, err := ParseRecord(frame(t, 0, w.Bytes()), 0)
	require.NoError(t, err)

	_, err = ParseHeader(rec, strategy(t, version.R2018))
	require.Error(t, err)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindFormat))
}

func TestParseHeaderZeroTypeCode(t *testing.T) {
	w := bitstream.NewWriter()
	w.WriteBS(0)
	w.WriteRL(0)
	rec, err := ParseRecord(frame(t, 0, w.Bytes()), 0)
	require.NoError(t, err)

	_, err = ParseHeader(rec, strategy(t, version.R2004))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object type code is zero")
}

func TestResolveBoundary(t *testing.T) {
	h := ApiObjectHeader{DataSize: 20, HandleStreamBits: 40, HasHandleStream: true}

	b1, err := ResolveBoundary(h)
	require.NoError(t, err)
	b2, err := ResolveBoundary(h)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)

	assert.Equal(t, uint64(120), b1.Canonical)
	want := []uint64{104, 112, 120, 128, 136, 144}
	if diff := cmp.Diff(want, b1.Candidates); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, b1.Candidates, b1.Canonical)
}

func TestResolveBoundaryClampsToTotal(t *testing.T) {
	h := ApiObjectHeader{DataSize: 2, HandleStreamBits: 4, HasHandleStream: true}
	b, err := ResolveBoundary(h)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), b.Canonical)
	assert.Equal(t, []uint64{0, 4, 8, 12, 16}, b.Candidates)
}

func TestResolveBoundaryLegacy(t *testing.T) {
	b, err := ResolveBoundary(ApiObjectHeader{DataSize: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(80), b.Canonical)
	assert.Empty(t, b.Candidates)
}

func TestResolveBoundaryRejectsOverflow(t *testing.T) {
	_, err := ResolveBoundary(ApiObjectHeader{DataSize: 1, HandleStreamBits: 9, HasHandleStream: true})
	require.Error(t, err)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindFormat))
}

func TestHandleStreamStartCandidates(t *testing.T) {
	h := ApiObjectHeader{DataSize: 20, HandleStreamBits: 40, HasHandleStream: true, TypeCode: TypeLine}

	assert.Nil(t, HandleStreamStartCandidates(strategy(t, version.R2000), h))

	got := HandleStreamStartCandidates(strategy(t, version.R2010), h)
	assert.Contains(t, got, uint64(120))
	assert.Contains(t, got, uint64(96))
	assert.Contains(t, got, uint64(152))
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i])
	}
	for _, c := range got {
		assert.Less(t, c, h.TotalBits())
	}

	h.TypeCode = 0x223
	wide := HandleStreamStartCandidates(strategy(t, version.R2010), h)
	assert.Greater(t, len(wide), len(got))
	assert.Contains(t, wide, uint64(72))
}

func TestStartDeltas(t *testing.T) {
	assert.Len(t, StartDeltas(TypeLine), 5)
	assert.Len(t, StartDeltas(0x214), 7)
	assert.Len(t, StartDeltas(0x221), 7)
	assert.Len(t, StartDeltas(0x225), 11)
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, "LINE", TypeName(TypeLine))
	assert.Equal(t, "UNKNOWN(0x1F4)", TypeName(500))
	code, ok := BuiltinCode("dimension")
	require.True(t, ok)
	assert.Equal(t, TypeDimLinear, code)
	assert.Equal(t, "E", TypeClass(TypeLwPolyline))
	assert.Equal(t, "O", TypeClass(TypeLayer))
	assert.Equal(t, "", TypeClass(0x300))
	assert.True(t, IsAcisCode(0x222))
	assert.False(t, IsAcisCode(TypeLine))
}

func writeClassCore(t *testing.T, w *bitstream.Writer, c Class) {
	t.Helper()
	w.WriteBS(c.Number)
	w.WriteBS(c.ProxyFlags)
	require.NoError(t, w.WriteTV(c.AppName))
	require.NoError(t, w.WriteTV(c.CppName))
	require.NoError(t, w.WriteTV(c.DXFName))
	w.WriteB(0)
	w.WriteBS(c.ItemClassID)
}

func buildClassesR13(t *testing.T, classes []Class) []byte {
	t.Helper()
	body := bitstream.NewWriter()
	for _, c := range classes {
		writeClassCore(t, body, c)
	}
	payload := body.Bytes()

	w := bitstream.NewWriter()
	w.WriteRCs(ClassesSentinelBefore)
	w.WriteRL(uint32(len(payload)))
	w.WriteRCs(payload)
	w.WriteCRC(0)
	w.WriteRCs(ClassesSentinelAfter)
	return w.Bytes()
}

func TestParseClassesR13(t *testing.T) {
	in := []Class{
		{Number: 500, AppName: "ObjectDBX Classes", CppName: "AcDbDictionaryWithDefault", DXFName: "ACDBDICTIONARYWDFLT", ItemClassID: 0x1F3},
		{Number: 501, AppName: "ObjectDBX Classes", CppName: "AcDbPlaceHolder", DXFName: "acdbplaceholder", ItemClassID: 0x1F3},
	}
	classes, err := ParseClasses(buildClassesR13(t, in), version.ClassesR13, bitstream.DefaultCodePage)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "AcDbPlaceHolder", classes[1].CppName)

	m := NewDynamicTypeMap(classes, version.ClassesR13)
	assert.Equal(t, "ACDBPLACEHOLDER", m.Name(501))
	assert.Equal(t, "LINE", m.Name(TypeLine))
	assert.Equal(t, []uint16{500, 501}, m.Codes())
}

func TestParseClassesR13ExplicitNumbers(t *testing.T) {
	in := []Class{
		{Number: 510, DXFName: "LWPOLYLINE"},
		{Number: 9, DXFName: ""},
		{Number: 512, DXFName: "ACAD_TABLE"},
	}
	classes, err := ParseClasses(buildClassesR13(t, in), version.ClassesR13, bitstream.DefaultCodePage)
	require.NoError(t, err)

	m := NewDynamicTypeMap(classes, version.ClassesR13)
	assert.Equal(t, DynamicTypeMap{510: "LWPOLYLINE", 512: "ACAD_TABLE"}, m)
	assert.True(t, m.Matches(510, TypeLwPolyline))
	assert.True(t, m.Matches(TypeLwPolyline, TypeLwPolyline))
	assert.False(t, m.Matches(512, TypeLwPolyline))
	assert.Equal(t, "E", m.Class(510))
}

func TestParseClassesR13Truncated(t *testing.T) {
	data := buildClassesR13(t, []Class{{Number: 500, DXFName: "A"}, {Number: 501, DXFName: "B"}})
	// declare more payload than present and cut the trailer
	w := bitstream.NewWriter()
	w.WriteRL(4096)
	copy(data[16:20], w.Bytes())
	data = data[:len(data)-18]

	classes, err := ParseClasses(data, version.ClassesR13, bitstream.DefaultCodePage)
	require.NoError(t, err)
	assert.Len(t, classes, 2)
}

func TestParseClassesBadSentinel(t *testing.T) {
	data := buildClassesR13(t, nil)
	data[0] ^= 0xFF
	_, err := ParseClasses(data, version.ClassesR13, bitstream.DefaultCodePage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentinel(before) mismatch")
}

func buildClassesR2004(t *testing.T, classes []Class, after []byte) []byte {
	t.Helper()
	w := bitstream.NewWriter()
	w.WriteRCs(ClassesSentinelBefore)
	w.WriteRL(4096)
	w.WriteBS(classes[len(classes)-1].Number)
	w.WriteRC(0)
	w.WriteRC(0)
	w.WriteB(1)
	for _, c := range classes {
		writeClassCore(t, w, c)
		w.WriteBL(c.InstanceCount)
		w.WriteBS(0x1F)
		w.WriteBS(0)
		w.WriteBL(0)
		w.WriteBL(0)
	}
	w.WriteCRC(0)
	w.WriteRCs(after)
	return w.Bytes()
}

func TestParseClassesR2004(t *testing.T) {
	in := []Class{
		{Number: 500, DXFName: "MLEADERSTYLE", InstanceCount: 3},
		{Number: 501, DXFName: "SCALE", InstanceCount: 1},
	}
	classes, err := ParseClasses(buildClassesR2004(t, in, ClassesSentinelAfter), version.ClassesR2004, bitstream.DefaultCodePage)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, uint32(3), classes[0].InstanceCount)

	m := NewDynamicTypeMap(classes, version.ClassesR2004)
	assert.Equal(t, DynamicTypeMap{500: "MLEADERSTYLE", 501: "SCALE"}, m)

	bad := make([]byte, len(ClassesSentinelAfter))
	_, err = ParseClasses(buildClassesR2004(t, in, bad), version.ClassesR2004, bitstream.DefaultCodePage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentinel(after) mismatch")
}

func TestParseClassesNoneLayout(t *testing.T) {
	classes, err := ParseClasses([]byte{1, 2, 3}, version.ClassesNone, bitstream.DefaultCodePage)
	require.NoError(t, err)
	assert.Empty(t, classes)
}
