package resolve

import (
	"testing"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgtest"
	"github.com/a3tai/dwg-reader/internal/dwg/entities"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

const testLayer = 0x20

func object(r *dwgtest.Record, handle uint64) entities.Object {
	r.T.Helper()
	rec, h := r.Build()
	return entities.Object{Handle: handle, Record: rec, Header: h}
}

// blockHeader writes a BLOCK_HEADER linked to block, followed by extra
// references in its handle stream
func blockHeader(t *testing.T, s *version.Strategy, handle uint64, name string, block uint64, extra ...uint64) entities.Object {
	t.Helper()
	b := dwgtest.NewRecord(t, s, objects.TypeBlockHeader)
	b.Object(handle)
	b.Text(name)
	b.W.WriteB(0)
	b.W.WriteBS(0)
	b.W.WriteB(0)
	for range 4 {
		b.W.WriteB(0)
	}
	if s.CompactBodies {
		b.W.WriteB(0)
	}
	if s.OwnedCounts {
		b.W.WriteBL(0)
	}
	b.W.Write3BD(entities.Point3{0, 0, 0})
	b.Text("")
	if s.CompactBodies {
		b.W.WriteRC(0)
		b.Text("")
		b.W.WriteBL(0)
	}
	if s.BlockUnits {
		b.W.WriteBS(4)
		b.W.WriteB(1)
		b.W.WriteRC(0)
	}
	b.Handle(4, 0x1)
	if !s.XDicMissingFlag {
		b.Handle(3, 0)
	}
	if !s.OwnedCounts {
		b.Handle(4, 0)
	}
	b.Handle(3, block)
	for _, h := range extra {
		b.Handle(4, h)
	}
	return object(b, handle)
}

func blockEntity(t *testing.T, s *version.Strategy, handle uint64, name string) entities.Object {
	t.Helper()
	b := dwgtest.NewRecord(t, s, objects.TypeBlock)
	b.Entity(handle, testLayer, nil)
	b.Text(name)
	return object(b, handle)
}

func endBlock(t *testing.T, s *version.Strategy, handle uint64) entities.Object {
	t.Helper()
	b := dwgtest.NewRecord(t, s, objects.TypeEndblk)
	b.Entity(handle, testLayer, nil)
	return object(b, handle)
}

func insert(t *testing.T, s *version.Strategy, handle, ref uint64) entities.Object {
	t.Helper()
	b := dwgtest.NewRecord(t, s, objects.TypeInsert)
	b.Entity(handle, testLayer, nil)
	b.W.Write3BD(entities.Point3{10, 20, 0})
	if s.CompactBodies {
		b.W.WriteBB(3)
	} else {
		b.W.Write3BD(entities.Point3{1, 1, 1})
	}
	b.W.WriteBD(0)
	b.W.Write3BD(entities.Point3{0, 0, 1})
	b.W.WriteB(0)
	b.Handle(5, ref)
	return object(b, handle)
}

// line writes a LINE on layer
func line(t *testing.T, s *version.Strategy, handle, layer uint64) entities.Object {
	t.Helper()
	b := dwgtest.NewRecord(t, s, objects.TypeLine)
	b.Entity(handle, layer, nil)
	w := b.W
	w.WriteB(1)
	w.WriteRD(1)
	w.WriteDD(1, 11)
	w.WriteRD(2)
	w.WriteDD(2, 2)
	w.WriteBT(0)
	w.WriteBE(entities.Point3{0, 0, 1})
	return object(b, handle)
}

func newFile(t *testing.T, s *version.Strategy, objs ...entities.Object) File {
	t.Helper()
	types := make(map[uint64]uint16, len(objs))
	for _, o := range objs {
		types[o.Handle] = o.Header.TypeCode
	}
	return File{
		Strategy: s,
		Decoder:  entities.NewDecoder(s, bitstream.DefaultCodePage),
		Objects:  objs,
		Layers:   NewHandleSet(testLayer),
		Types:    types,
	}
}
