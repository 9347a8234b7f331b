package entities

import (
	"testing"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgtest"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

const (
	testLayer  = 0x20
	testHandle = 0x10
)

func strategy(t *testing.T, v version.Version) *version.Strategy {
	return dwgtest.Strategy(t, v)
}

type recordBuilder struct {
	*dwgtest.Record
}

func newRecord(t *testing.T, s *version.Strategy, code uint16) *recordBuilder {
	t.Helper()
	return &recordBuilder{dwgtest.NewRecord(t, s, code)}
}

func (b *recordBuilder) handle(code uint8, v uint64) { b.Handle(code, v) }

func (b *recordBuilder) text(s string) { b.Text(s) }

func (b *recordBuilder) object(handle uint64) { b.Object(handle) }

// entity writes the common header with colour c and the handles up to the
// test layer
func (b *recordBuilder) entity(handle uint64, c Color) {
	b.Entity(handle, testLayer, func(w *bitstream.Writer) {
		if !b.S.EncodedColor {
			w.WriteBS(c.Index)
			return
		}
		v := c.Index
		if c.TrueColor != nil {
			v |= colorFlagRGB
		}
		if c.Transparency != nil {
			v |= colorFlagTransparency
		}
		w.WriteBS(v)
		if c.TrueColor != nil {
			w.WriteBL(*c.TrueColor)
		}
		if c.Transparency != nil {
			w.WriteBL(*c.Transparency)
		}
	})
}

func (b *recordBuilder) build(handle uint64) Object {
	b.T.Helper()
	rec, h := b.Build()
	return Object{Handle: handle, Record: rec, Header: h}
}

func u32(v uint32) *uint32 { return &v }
