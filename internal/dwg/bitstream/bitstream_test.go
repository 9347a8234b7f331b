package bitstream

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

func TestReadBitsMSBFirst(t *testing.T) {
	r := NewReader([]byte{0b1010_0000, 0xFF})

	b, err := r.ReadB()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), b)

	bb, err := r.ReadBB()
	require.NoError(t, err)
	assert.Equal(t, uint8(0b01), bb)

	// Unaligned byte read spans the boundary.
	rc, err := r.ReadRC()
	require.NoError(t, err)
	assert.Equal(t, uint8(0b0000_0111), rc)
	assert.Equal(t, uint64(11), r.TellBits())
}

func TestReadPastEndIsDecodeError(t *testing.T) {
	r := NewReader([]byte{0x00})
	r.SetBitPos(8)
	_, err := r.ReadB()
	require.Error(t, err)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindDecode))
}

func TestBitcodeRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteBS(0)
	w.WriteBS(256)
	w.WriteBS(42)
	w.WriteBS(0x1234)
	w.WriteBL(0)
	w.WriteBL(200)
	w.WriteBL(0xDEADBEEF)
	require.NoError(t, w.WriteBLL(0x0102030405))
	w.WriteBD(0)
	w.WriteBD(1)
	w.WriteBD(-3.25)
	w.WriteDD(5.0, 5.0)
	w.WriteDD(5.0, 7.5)
	w.WriteBT(0)
	w.WriteBT(2.5)
	w.WriteBE(Point3{0, 0, 1})
	w.WriteBE(Point3{1, 0, 0})
	w.WriteOT(0x13)
	w.WriteOT(0x1F5)
	w.WriteOT(0x400)
	w.WriteUMC(300)
	require.NoError(t, w.WriteMS(0x12345))

	r := NewReader(w.Bytes())
	for _, want := range []uint16{0, 256, 42, 0x1234} {
		v, err := r.ReadBS()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	for _, want := range []uint32{0, 200, 0xDEADBEEF} {
		v, err := r.ReadBL()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	bll, err := r.ReadBLL()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405), bll)

	for _, want := range []float64{0, 1, -3.25} {
		v, err := r.ReadBD()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	dd, err := r.ReadDD(5.0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, dd)
	dd, err = r.ReadDD(5.0)
	require.NoError(t, err)
	assert.Equal(t, 7.5, dd)

	bt, err := r.ReadBT()
	require.NoError(t, err)
	assert.Equal(t, 0.0, bt)
	bt, err = r.ReadBT()
	require.NoError(t, err)
	assert.Equal(t, 2.5, bt)

	be, err := r.ReadBE()
	require.NoError(t, err)
	assert.Equal(t, Point3{0, 0, 1}, be)
	be, err = r.ReadBE()
	require.NoError(t, err)
	assert.Equal(t, Point3{1, 0, 0}, be)

	for _, want := range []uint16{0x13, 0x1F5, 0x400} {
		v, err := r.ReadOT()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	umc, err := r.ReadUMC()
	require.NoError(t, err)
	assert.Equal(t, uint64(300), umc)

	ms, err := r.ReadMS()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345), ms)
}

func TestReadDDPatches(t *testing.T) {
	def := 1.0
	bits := math.Float64bits(def)

	w := NewWriter()
	w.WriteBB(1)
	w.WriteRCs([]byte{0x01, 0x00, 0x00, 0x00})
	r := NewReader(w.Bytes())
	v, err := r.ReadDD(def)
	require.NoError(t, err)
	assert.Equal(t, math.Float64frombits(bits&^0xFFFFFFFF|0x01), v)
}

func TestModularChar(t *testing.T) {
	tests := []struct {
		name  string
		value int64
		bytes []byte
	}{
		{"small", 5, []byte{0x05}},
		{"negative small", -5, []byte{0x45}},
		{"two bytes", 0x54, []byte{0xD4, 0x00}},
		{"large", 1000, []byte{0xE8, 0x07}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.bytes, EncodeMC(tt.value))
			r := NewReader(tt.bytes)
			got, err := r.ReadMC()
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestHandleResolution(t *testing.T) {
	tests := []struct {
		name string
		ref  HandleRef
		base uint64
		want uint64
	}{
		{"soft owner absolute", HandleRef{Code: 4, Counter: 1, Value: 0x20}, 0x10, 0x20},
		{"plus one", HandleRef{Code: 6}, 0x10, 0x11},
		{"minus one", HandleRef{Code: 8}, 0x10, 0x0F},
		{"plus offset", HandleRef{Code: 0xA, Counter: 1, Value: 3}, 0x10, 0x13},
		{"minus offset", HandleRef{Code: 0xC, Counter: 1, Value: 3}, 0x10, 0x0D},
		{"minus one at zero", HandleRef{Code: 8}, 0, 0},
		{"minus offset saturates", HandleRef{Code: 0xC, Counter: 1, Value: 0x20}, 0x10, 0},
		{"plus offset saturates", HandleRef{Code: 0xA, Counter: 1, Value: 2}, math.MaxUint64 - 1, math.MaxUint64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ref.Resolve(tt.base))
		})
	}
}

func TestReadHandlesChained(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.WriteH(0x5, 0x20))
	require.NoError(t, w.WriteH(0x6, 0))
	require.NoError(t, w.WriteH(0xA, 2))

	r := NewReader(w.Bytes())
	abs := r.Clone().ReadHandles(0x10, Absolute, 8, 0)
	assert.Equal(t, []uint64{0x20, 0x11, 0x12}, abs)

	chained := r.Clone().ReadHandles(0x10, Chained, 8, 0)
	assert.Equal(t, []uint64{0x20, 0x21, 0x23}, chained)

	limited := r.Clone().ReadHandles(0x10, Absolute, 1, 0)
	assert.Equal(t, []uint64{0x20}, limited)
}

func TestTextEncodings(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.WriteTV("AB\x00C\x80"))
	require.NoError(t, w.WriteTU("Ünïcode"))

	r := NewReader(w.Bytes())
	tv, err := r.ReadTV(DefaultCodePage)
	require.NoError(t, err)
	assert.Equal(t, "AB C*", tv)

	tu, err := r.ReadTU()
	require.NoError(t, err)
	assert.Equal(t, "Ünïcode", tu)
}

func TestCodePageDecode(t *testing.T) {
	assert.Equal(t, "é", CodePage(30).Decode([]byte{0xE9}))
	assert.Equal(t, "Ж", CodePage(29).Decode([]byte{0xC6}))
	assert.Equal(t, "plain", CodePage(999).Decode([]byte("plain\x00junk")))
}

func TestCRCAligns(t *testing.T) {
	w := NewWriter()
	w.WriteB(1)
	w.WriteCRC(0xBEEF)
	assert.Equal(t, []byte{0x80, 0xEF, 0xBE}, w.Bytes())

	r := NewReader(w.Bytes())
	_, err := r.ReadB()
	require.NoError(t, err)
	crc, err := r.ReadCRC()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), crc)
}
