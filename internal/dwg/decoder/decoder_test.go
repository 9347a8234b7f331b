package decoder_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/dwg-reader/internal/dwg/container"
	"github.com/a3tai/dwg-reader/internal/dwg/decoder"
	"github.com/a3tai/dwg-reader/internal/dwg/diag"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/entities"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
	"github.com/a3tai/dwg-reader/internal/dwg/writer"
)

func drawing(t *testing.T, ents ...writer.Entity) []byte {
	t.Helper()
	data, err := writer.Write(writer.NewDocument().Add(ents...), writer.DefaultConfig())
	require.NoError(t, err)
	return data
}

func lines(n int) []writer.Entity {
	out := make([]writer.Entity, n)
	for i := range out {
		f := float64(i)
		out[i] = &writer.Line{
			Common: writer.Common{Handle: uint64(0x100 + i)},
			Start:  writer.Point3{f, 0, 0},
			End:    writer.Point3{f, 10, 0},
		}
	}
	return out
}

func open(t *testing.T, data []byte, opts decoder.Options) *decoder.Decoder {
	t.Helper()
	d, err := decoder.New(data, opts)
	require.NoError(t, err)
	return d
}

func strict() decoder.Options {
	opts := decoder.DefaultOptions()
	opts.Parse.Strict = true
	return opts
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := decoder.New([]byte("AC10"), decoder.DefaultOptions())
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindFormat))

	_, err = decoder.New([]byte("NOTDWG-------------------------"), decoder.DefaultOptions())
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindUnsupported))

	opts := decoder.DefaultOptions()
	opts.Parse.MaxObjects = 0
	_, err = decoder.New(drawing(t), opts)
	assert.Error(t, err)
}

func TestSingleLine(t *testing.T) {
	data := drawing(t, &writer.Line{Common: writer.Common{Handle: 0x10}, End: writer.Point3{10, 0, 0}})
	d := open(t, data, decoder.DefaultOptions())

	assert.Equal(t, version.R2000, d.Version())
	assert.Equal(t, []string{container.SectionClasses, container.SectionHandles}, sectionNames(d.Sections()))

	entries, err := d.ObjectMapEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(0x10), entries[0].Handle)

	got, err := d.Lines()
	require.NoError(t, err)
	want := []entities.Line{{
		Base:      entities.Base{Handle: 0x10, Color: entities.Color{Index: 256}, Layer: 0x11},
		End:       entities.Point3{10, 0, 0},
		Extrusion: entities.Point3{0, 0, 1},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}

	types, err := d.DynamicTypes()
	require.NoError(t, err)
	assert.Empty(t, types)

	headers, err := d.ObjectHeaders()
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, "LINE", headers[0].TypeName)
	assert.Equal(t, objects.TypeLayer, headers[1].TypeCode)
}

func sectionNames(secs []decoder.Section) []string {
	out := make([]string, len(secs))
	for i, s := range secs {
		out[i] = s.Name
	}
	return out
}

func TestStrictAndPermissiveAgreeOnCleanInput(t *testing.T) {
	data := drawing(t, append(lines(3),
		&writer.Circle{Center: writer.Point3{1, 1, 0}, Radius: 2},
		&writer.Text{Value: "NOTE", Height: 1},
	)...)
	for _, read := range []func(*decoder.Decoder) (interface{}, error){
		func(d *decoder.Decoder) (interface{}, error) { return d.Lines() },
		func(d *decoder.Decoder) (interface{}, error) { return d.Circles() },
		func(d *decoder.Decoder) (interface{}, error) { return d.Texts() },
		func(d *decoder.Decoder) (interface{}, error) { return d.EntityLayers() },
	} {
		loose, err := read(open(t, data, decoder.DefaultOptions()))
		require.NoError(t, err)
		tight, err := read(open(t, data, strict()))
		require.NoError(t, err)
		assert.Equal(t, loose, tight)
	}
}

func TestRepeatedCallsAreIdempotent(t *testing.T) {
	d := open(t, drawing(t, lines(4)...), decoder.DefaultOptions())
	first, err := d.Lines()
	require.NoError(t, err)
	second, err := d.Lines()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
}

func TestWorkersKeepIndexOrder(t *testing.T) {
	data := drawing(t, lines(64)...)
	sequential, err := open(t, data, decoder.DefaultOptions()).Lines()
	require.NoError(t, err)

	opts := decoder.DefaultOptions()
	opts.Workers = 8
	parallel, err := open(t, data, opts).Lines()
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
	for i, l := range parallel {
		assert.Equal(t, uint64(0x100+i), l.Handle)
	}
}

func TestLimit(t *testing.T) {
	opts := decoder.DefaultOptions()
	opts.Limit = 3
	d := open(t, drawing(t, lines(10)...), opts)
	got, err := d.Lines()
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

// patchSize overwrites the two-byte size field of the record with handle h
func patchSize(t *testing.T, data []byte, h uint64, lo, hi byte) []byte {
	t.Helper()
	d := open(t, data, decoder.DefaultOptions())
	entries, err := d.ObjectMapEntries()
	require.NoError(t, err)
	out := append([]byte(nil), data...)
	for _, e := range entries {
		if e.Handle == h {
			out[e.Offset], out[e.Offset+1] = lo, hi
			return out
		}
	}
	t.Fatalf("handle 0x%X not indexed", h)
	return nil
}

func TestBrokenRecordFramingIsFatal(t *testing.T) {
	// size runs past the end of the file
	data := patchSize(t, drawing(t, lines(3)...), 0x101, 0xFF, 0x7F)

	for name, opts := range map[string]decoder.Options{"permissive": decoder.DefaultOptions(), "strict": strict()} {
		t.Run(name, func(t *testing.T) {
			d := open(t, data, opts)
			_, err := d.Lines()
			require.Error(t, err)
			assert.True(t, dwgerr.IsKind(err, dwgerr.KindFormat))
			errs, _ := d.Errors().Count()
			assert.Equal(t, 1, errs)

			_, err = d.ObjectMapEntries()
			assert.Error(t, err)
		})
	}
}

func TestTruncatedBodyPolicy(t *testing.T) {
	// the record still frames and its type prefix parses, the entity body
	// runs out of bits
	data := patchSize(t, drawing(t, lines(3)...), 0x101, 0x07, 0x00)

	rec := diag.NewRecorder(diag.LevelDebug)
	opts := decoder.DefaultOptions()
	opts.Sink = rec
	d := open(t, data, opts)
	got, err := d.Lines()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(0x100), got[0].Handle)
	assert.Equal(t, uint64(0x102), got[1].Handle)
	errs, warnings := d.Errors().Count()
	assert.Zero(t, errs)
	assert.Equal(t, 1, warnings)

	report, err := d.Report()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 4, report.Objects)

	var skipped int
	for _, e := range rec.Events() {
		if e.Message == "skipped record" {
			skipped++
		}
	}
	assert.Equal(t, 1, skipped)

	_, err = open(t, data, strict()).Lines()
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindDecode))
}

func TestEntityLayers(t *testing.T) {
	d := open(t, drawing(t,
		&writer.Line{Common: writer.Common{Handle: 0x20}},
		&writer.Point{Common: writer.Common{Handle: 0x21}},
	), decoder.DefaultOptions())

	got, err := d.EntityLayers()
	require.NoError(t, err)
	assert.Equal(t, []decoder.EntityLayer{
		{Handle: 0x20, TypeName: "LINE", Layer: 0x10},
		{Handle: 0x21, TypeName: "POINT", Layer: 0x10},
	}, got)
}

func TestReferenceListings(t *testing.T) {
	d := open(t, drawing(t, lines(2)...), decoder.DefaultOptions())

	refs, err := d.HandleStreamRefs([]uint64{0x101, 0xDEAD})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, uint64(0x101), refs[0].Handle)
	// no separate handle stream before R2010
	assert.Empty(t, refs[0].Refs)

	all, err := d.HandleStreamRefs(nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	acis, err := d.AcisCandidateInfos(nil)
	require.NoError(t, err)
	assert.Empty(t, acis)

	named, err := d.AcisCandidateInfos([]uint64{0x100})
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "unknown", named[0].Role)
}

func TestBlockListingsOnFlatDrawing(t *testing.T) {
	d := open(t, drawing(t, lines(1)...), decoder.DefaultOptions())

	headers, err := d.BlockHeaderNames()
	require.NoError(t, err)
	assert.Empty(t, headers)

	inserts, err := d.Inserts()
	require.NoError(t, err)
	assert.Empty(t, inserts)

	stats, err := d.NameStats()
	require.NoError(t, err)
	assert.Zero(t, stats.TargetedSearches)
}

func TestReport(t *testing.T) {
	d := open(t, drawing(t, append(lines(3), &writer.Arc{Radius: 1})...), decoder.DefaultOptions())
	r, err := d.Report()
	require.NoError(t, err)

	assert.Equal(t, "R2000", r.Version)
	assert.Equal(t, uint16(30), r.CodePage)
	assert.Equal(t, 5, r.Objects)
	assert.Zero(t, r.Skipped)
	assert.Equal(t, []decoder.TypeCount{
		{TypeCode: objects.TypeLine, TypeName: "LINE", Count: 3},
		{TypeCode: objects.TypeArc, TypeName: "ARC", Count: 1},
		{TypeCode: objects.TypeLayer, TypeName: "LAYER", Count: 1},
	}, r.Types)
	assert.Equal(t, 5, r.Index.Entries)
	assert.Equal(t, "No errors or warnings", r.Summary)
	assert.Empty(t, r.Panics)
}

func TestSectionBytes(t *testing.T) {
	d := open(t, drawing(t), decoder.DefaultOptions())
	b, err := d.SectionBytes(container.SectionClasses)
	require.NoError(t, err)
	assert.Equal(t, objects.ClassesSentinelBefore, b[:16])

	_, err = d.SectionBytes(container.SectionHeader)
	assert.Error(t, err)
}

func ExampleDecoder_Lines() {
	doc := writer.NewDocument().Add(&writer.Line{Common: writer.Common{Handle: 0x10}, End: writer.Point3{10, 0, 0}})
	data, _ := writer.Write(doc, writer.DefaultConfig())
	d, _ := decoder.New(data, decoder.DefaultOptions())
	lines, _ := d.Lines()
	for _, l := range lines {
		fmt.Printf("0x%X %v -> %v\n", l.Handle, l.Start, l.End)
	}
	// Output: 0x10 [0 0 0] -> [10 0 0]
}

func TestNamedInsertOptionalName(t *testing.T) {
	raw, err := json.Marshal(decoder.NamedInsert{Insert: entities.Insert{Base: entities.Base{Handle: 0x40}}})
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "block_name")
	assert.Equal(t, float64(0x40), fields["handle"])

	raw, err = json.Marshal(decoder.NamedInsert{BlockName: "DOOR"})
	require.NoError(t, err)
	fields = nil
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "DOOR", fields["block_name"])
}
