package writer

import (
	"github.com/pkg/errors"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

// crcSeed starts the checksum of object records and object map blocks
const crcSeed = 0xC0C1

var crcTable = func() (t [256]uint16) {
	for i := range t {
		c := uint16(i)
		for range 8 {
			if c&1 != 0 {
				c = c>>1 ^ 0xA001
			} else {
				c >>= 1
			}
		}
		t[i] = c
	}
	return t
}()

// crc16 is the checksum drawing files use for records and sections
func crc16(seed uint16, data []byte) uint16 {
	c := seed
	for _, b := range data {
		c = c>>8 ^ crcTable[byte(c)^b]
	}
	return c
}

// recordBuilder lays out one record the way the common header readers
// expect: type code, size placeholder, data, then the handle references
type recordBuilder struct {
	s      *version.Strategy
	w      *bitstream.Writer
	h      *bitstream.Writer
	sizeAt uint64
}

func newRecord(s *version.Strategy, code uint16) *recordBuilder {
	b := &recordBuilder{s: s, w: bitstream.NewWriter(), h: bitstream.NewWriter()}
	b.w.WriteBS(code)
	if s.ObjSizeBeforeHandle {
		b.sizeAt = b.w.TellBits()
		b.w.WriteRL(0)
	}
	return b
}

func (b *recordBuilder) handle(code uint8, v uint64) error {
	return b.h.WriteH(code, v)
}

// entityHeader writes a model space entity header with no reactors and
// by-layer line type and plot style
func (b *recordBuilder) entityHeader(handle uint64, color uint16) error {
	w := b.w
	if err := w.WriteH(0, handle); err != nil {
		return err
	}
	w.WriteBS(0) // no EED
	w.WriteB(0)  // no graphic
	w.WriteBB(2) // model space
	w.WriteBL(0) // reactors
	if b.s.XDicMissingFlag {
		w.WriteB(1)
	}
	w.WriteB(1) // no links
	w.WriteBS(color)
	w.WriteBD(1) // line type scale
	if b.s.LTypePlotFlags {
		w.WriteBB(0)
		w.WriteBB(0)
	}
	w.WriteBS(0) // visible
	if b.s.Lineweight {
		w.WriteRC(0)
	}
	return nil
}

// entityHandles writes the common handle block: xdictionary, then layer
func (b *recordBuilder) entityHandles(layer uint64) error {
	if !b.s.XDicMissingFlag {
		if err := b.handle(3, 0); err != nil {
			return err
		}
	}
	return b.handle(5, layer)
}

// objectHeader writes a table record header with no reactors
func (b *recordBuilder) objectHeader(handle uint64) error {
	w := b.w
	if err := w.WriteH(0, handle); err != nil {
		return err
	}
	w.WriteBS(0)
	w.WriteBL(0)
	if b.s.XDicMissingFlag {
		w.WriteB(1)
	}
	return nil
}

// bytes patches the size field and frames the record: MS size, body, CRC
func (b *recordBuilder) bytes() ([]byte, error) {
	w := b.w
	end := w.TellBits()
	if b.s.ObjSizeBeforeHandle {
		w.SetBitPos(b.sizeAt)
		w.WriteRL(uint32(end))
		w.SetBitPos(end)
	}
	hr := bitstream.NewReader(b.h.Bytes())
	for range b.h.LenBits() {
		bit, err := hr.ReadB()
		if err != nil {
			return nil, err
		}
		w.WriteB(bit)
	}
	return frameRecord(w.Bytes())
}

func frameRecord(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, dwgerr.New(dwgerr.KindFormat, "object record body is empty")
	}
	mw := bitstream.NewWriter()
	if err := mw.WriteMS(uint32(len(body))); err != nil {
		return nil, err
	}
	raw := append(mw.Bytes(), body...)
	crc := crc16(crcSeed, raw)
	return append(raw, byte(crc), byte(crc>>8)), nil
}

func encodeEntity(s *version.Strategy, e Entity, handle, layer uint64) ([]byte, error) {
	c := e.common()
	color := ColorByLayer
	if c.ColorIndex != nil {
		color = *c.ColorIndex
	}
	b := newRecord(s, e.TypeCode())
	if err := b.entityHeader(handle, color); err != nil {
		return nil, err
	}
	if err := e.writeBody(b.w, s); err != nil {
		return nil, errors.Wrapf(err, "%s 0x%X", objects.TypeName(e.TypeCode()), handle)
	}
	if err := b.entityHandles(layer); err != nil {
		return nil, err
	}
	return b.bytes()
}

func encodeLayer(s *version.Strategy, l Layer, handle uint64) ([]byte, error) {
	b := newRecord(s, objects.TypeLayer)
	if err := b.objectHeader(handle); err != nil {
		return nil, err
	}
	w := b.w
	if err := w.WriteTV(l.Name); err != nil {
		return nil, err
	}
	w.WriteB(0)  // referenced
	w.WriteBS(0) // xref index
	w.WriteB(0)  // xref dependent
	w.WriteBS(l.Flags)
	w.WriteBS(l.ColorIndex)

	// no layer control record is written, so the owner stays null
	if err := b.handle(4, 0); err != nil {
		return nil, err
	}
	if err := b.handle(3, 0); err != nil {
		return nil, err
	}
	return b.bytes()
}
