package writer_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/dwg-reader/internal/dwg/decoder"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/entities"
	"github.com/a3tai/dwg-reader/internal/dwg/objindex"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
	"github.com/a3tai/dwg-reader/internal/dwg/writer"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func decode(t *testing.T, doc *writer.Document) *decoder.Decoder {
	t.Helper()
	data, err := writer.Write(doc, writer.DefaultConfig())
	require.NoError(t, err)
	d, err := decoder.New(data, decoder.DefaultOptions())
	require.NoError(t, err)
	return d
}

func TestHandleAllocator(t *testing.T) {
	a := writer.NewHandleAllocator(10)
	h, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), h)
	h, err = a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint64(11), h)

	require.NoError(t, a.Reserve(20))
	require.NoError(t, a.Reserve(12))
	h, err = a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint64(13), h)
	assert.True(t, a.IsReserved(20))

	err = a.Reserve(20)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindResolve))
	err = a.Reserve(0)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindFormat))
}

func TestEncodeObjectMap(t *testing.T) {
	refs := []objindex.ObjectRef{
		{Handle: 10, Offset: 220},
		{Handle: 1, Offset: 100},
		{Handle: 3, Offset: 140},
	}
	data, err := writer.EncodeObjectMap(refs)
	require.NoError(t, err)

	ix, err := objindex.Parse(data, dwgerr.DefaultParseOptions())
	require.NoError(t, err)
	want := []objindex.ObjectRef{{Handle: 1, Offset: 100}, {Handle: 3, Offset: 140}, {Handle: 10, Offset: 220}}
	if diff := cmp.Diff(want, ix.Refs()); diff != "" {
		t.Errorf("refs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, ix.Stats().Blocks)
}

func TestEncodeObjectMapSplitsBlocks(t *testing.T) {
	refs := make([]objindex.ObjectRef, 1500)
	for i := range refs {
		refs[i] = objindex.ObjectRef{Handle: uint64(0x100 + i*3), Offset: uint64(1_000_000 + i*70_000)}
	}
	data, err := writer.EncodeObjectMap(refs)
	require.NoError(t, err)

	ix, err := objindex.Parse(data, dwgerr.DefaultParseOptions())
	require.NoError(t, err)
	assert.Equal(t, refs, ix.Refs())
	assert.Greater(t, ix.Stats().Blocks, 1)
}

func TestEncodeObjectMapRejectsDuplicates(t *testing.T) {
	_, err := writer.EncodeObjectMap([]objindex.ObjectRef{{Handle: 5, Offset: 1}, {Handle: 5, Offset: 2}})
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindFormat))
}

func TestWriteSingleLine(t *testing.T) {
	doc := writer.NewDocument().Add(&writer.Line{
		Common: writer.Common{Handle: 0x10},
		End:    writer.Point3{10, 0, 0},
	})
	d := decode(t, doc)
	assert.Equal(t, version.R2000, d.Version())

	lines, err := d.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, uint64(0x10), lines[0].Handle)
	assert.Equal(t, entities.Point3{0, 0, 0}, lines[0].Start)
	assert.Equal(t, entities.Point3{10, 0, 0}, lines[0].End)
	assert.Equal(t, writer.ColorByLayer, lines[0].Color.Index)

	layers, err := d.LayerColors()
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, "0", layers[0].Name)
	assert.Equal(t, uint16(7), layers[0].ColorIndex)
	assert.Equal(t, layers[0].Handle, lines[0].Layer)
}

func TestWriteMixedEntities(t *testing.T) {
	width := 0.5
	doc := writer.NewDocument()
	doc.Layers = append(doc.Layers, writer.Layer{Name: "WALLS", ColorIndex: 1})
	doc.Add(
		&writer.Arc{Common: writer.Common{Handle: 0x40, Layer: "WALLS"}, Center: writer.Point3{2, 3, 0}, Radius: 5, StartAngle: 0.25, EndAngle: 1.5},
		&writer.Circle{Common: writer.Common{Handle: 0x41, ColorIndex: writer.Color(3)}, Center: writer.Point3{4, 5, 0}, Radius: 2.5},
		&writer.LwPolyline{Common: writer.Common{Handle: 0x42}, Closed: true, ConstWidth: &width,
			Vertices: []writer.Point2{{0, 0}, {2, 0}, {2, 1}}, Bulges: []float64{0, 0.5, 0}},
		&writer.Text{Common: writer.Common{Handle: 0x43}, Value: "HELLO", Insert: writer.Point3{1.5, 2.5, 0}, Height: 2, Rotation: 0.2},
		&writer.MText{Common: writer.Common{Handle: 0x44}, Value: "MULTI", Insert: writer.Point3{3, 4, 0}, RectWidth: 12, TextHeight: 1.5, Attachment: 1, DrawingDir: 1},
		&writer.Point{Common: writer.Common{Handle: 0x45}, Location: writer.Point3{7, 8, 0}, XAxisAng: 0.3},
		&writer.Ray{Common: writer.Common{Handle: 0x46}, Start: writer.Point3{9, 1, 0}, Vector: writer.Point3{1, 0, 0}},
		&writer.XLine{Common: writer.Common{Handle: 0x47}, Start: writer.Point3{10, 2, 0}, Vector: writer.Point3{0, 1, 0}},
		&writer.Line{Common: writer.Common{Handle: 0x48}, Start: writer.Point3{1, 1, 5}, End: writer.Point3{2, 2, 6}},
	)
	d := decode(t, doc)

	entries, err := d.ObjectMapEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 11)

	layers, err := d.LayerColors()
	require.NoError(t, err)
	require.Len(t, layers, 2)
	walls := layers[1]
	assert.Equal(t, "WALLS", walls.Name)

	arcs, err := d.Arcs()
	require.NoError(t, err)
	require.Len(t, arcs, 1)
	assert.Equal(t, walls.Handle, arcs[0].Layer)
	if diff := cmp.Diff(entities.Arc{
		Base:   entities.Base{Handle: 0x40, Color: entities.Color{Index: 256}, Layer: walls.Handle},
		Center: entities.Point3{2, 3, 0}, Radius: 5, Extrusion: entities.Point3{0, 0, 1},
		StartAngle: 0.25, EndAngle: 1.5,
	}, arcs[0], approx); diff != "" {
		t.Errorf("arc mismatch (-want +got):\n%s", diff)
	}

	circles, err := d.Circles()
	require.NoError(t, err)
	require.Len(t, circles, 1)
	assert.Equal(t, uint16(3), circles[0].Color.Index)
	assert.InDelta(t, 2.5, circles[0].Radius, 1e-9)
	assert.Equal(t, layers[0].Handle, circles[0].Layer)

	polys, err := d.LwPolylines()
	require.NoError(t, err)
	require.Len(t, polys, 1)
	assert.Equal(t, []entities.Point2{{0, 0}, {2, 0}, {2, 1}}, polys[0].Points)
	assert.Equal(t, []float64{0, 0.5, 0}, polys[0].Bulges)
	require.NotNil(t, polys[0].ConstWidth)
	assert.InDelta(t, 0.5, *polys[0].ConstWidth, 1e-9)

	texts, err := d.Texts()
	require.NoError(t, err)
	require.Len(t, texts, 1)
	assert.Equal(t, "HELLO", texts[0].Value)
	assert.Equal(t, entities.Point3{1.5, 2.5, 0}, texts[0].Insertion)
	assert.InDelta(t, 2.0, texts[0].Metrics.Height, 1e-9)
	assert.InDelta(t, 0.2, texts[0].Metrics.Rotation, 1e-9)

	mtexts, err := d.MTexts()
	require.NoError(t, err)
	require.Len(t, mtexts, 1)
	assert.Equal(t, "MULTI", mtexts[0].Value)
	assert.Equal(t, uint16(1), mtexts[0].Attachment)
	assert.InDelta(t, 1.5, mtexts[0].TextHeight, 1e-9)

	points, err := d.Points()
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, entities.Point3{7, 8, 0}, points[0].Location)

	rays, err := d.Rays()
	require.NoError(t, err)
	require.Len(t, rays, 1)
	assert.Equal(t, entities.Point3{1, 0, 0}, rays[0].Vector)

	xlines, err := d.XLines()
	require.NoError(t, err)
	require.Len(t, xlines, 1)
	assert.Equal(t, uint64(0x47), xlines[0].Handle)
	assert.Equal(t, entities.Point3{0, 1, 0}, xlines[0].Vector)

	lines, err := d.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, entities.Point3{1, 1, 5}, lines[0].Start)
	assert.Equal(t, entities.Point3{2, 2, 6}, lines[0].End)

	errs, warnings := d.Errors().Count()
	assert.Zero(t, errs)
	assert.Zero(t, warnings)
}

func TestWriteAllocatesHandles(t *testing.T) {
	doc := writer.NewDocument().Add(
		&writer.Point{Location: writer.Point3{1, 0, 0}},
		&writer.Point{Common: writer.Common{Handle: 0x11}, Location: writer.Point3{2, 0, 0}},
		&writer.Point{Location: writer.Point3{3, 0, 0}},
	)
	d := decode(t, doc)

	headers, err := d.ObjectHeaders()
	require.NoError(t, err)
	got := make(map[uint64]string, len(headers))
	for _, h := range headers {
		got[h.Handle] = h.TypeName
	}
	// 0x11 is reserved first, the layer takes 0x10, the others follow
	assert.Equal(t, map[uint64]string{0x10: "LAYER", 0x11: "POINT", 0x12: "POINT", 0x13: "POINT"}, got)
}

func TestWriteWithoutPreservedHandles(t *testing.T) {
	doc := writer.NewDocument().Add(&writer.Line{Common: writer.Common{Handle: 0x500}})
	data, err := writer.Write(doc, writer.Config{})
	require.NoError(t, err)
	d, err := decoder.New(data, decoder.DefaultOptions())
	require.NoError(t, err)

	lines, err := d.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, uint64(0x11), lines[0].Handle)
}

func TestWriteSanitizesText(t *testing.T) {
	doc := writer.NewDocument().Add(&writer.Text{Value: "A\x00Bé", Height: 1})
	d := decode(t, doc)

	texts, err := d.Texts()
	require.NoError(t, err)
	require.Len(t, texts, 1)
	assert.Equal(t, "A B**", texts[0].Value)
}

func TestWriteErrors(t *testing.T) {
	t.Run("nil document", func(t *testing.T) {
		_, err := writer.Write(nil, writer.DefaultConfig())
		assert.Error(t, err)
	})

	t.Run("other revision", func(t *testing.T) {
		doc := writer.NewDocument()
		doc.Version = version.R2004
		_, err := writer.Write(doc, writer.DefaultConfig())
		assert.True(t, dwgerr.IsKind(err, dwgerr.KindUnsupported))
	})

	t.Run("duplicate handle", func(t *testing.T) {
		doc := writer.NewDocument().Add(
			&writer.Line{Common: writer.Common{Handle: 0x20}},
			&writer.Circle{Common: writer.Common{Handle: 0x20}},
		)
		_, err := writer.Write(doc, writer.DefaultConfig())
		assert.True(t, dwgerr.IsKind(err, dwgerr.KindResolve))
	})

	t.Run("unknown layer", func(t *testing.T) {
		doc := writer.NewDocument().Add(&writer.Line{Common: writer.Common{Layer: "MISSING"}})
		_, err := writer.Write(doc, writer.Config{Strict: true})
		assert.True(t, dwgerr.IsKind(err, dwgerr.KindResolve))

		_, err = writer.Write(doc, writer.DefaultConfig())
		assert.NoError(t, err)
	})

	t.Run("bulge count", func(t *testing.T) {
		doc := writer.NewDocument().Add(&writer.LwPolyline{
			Vertices: []writer.Point2{{0, 0}, {1, 1}},
			Bulges:   []float64{0.5},
		})
		_, err := writer.Write(doc, writer.DefaultConfig())
		assert.True(t, dwgerr.IsKind(err, dwgerr.KindFormat))
	})
}
