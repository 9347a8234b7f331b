package bitstream

import (
	"encoding/binary"
	"math"

	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

// Writer appends MSB-first bit encodings to a growing buffer
type Writer struct {
	data []byte
	pos  uint64
	max  uint64
}

// NewWriter creates an empty writer
func NewWriter() *Writer {
	return &Writer{}
}

// TellBits returns the current bit position
func (w *Writer) TellBits() uint64 { return w.pos }

// LenBits returns the highest bit position written
func (w *Writer) LenBits() uint64 { return w.max }

// SetBitPos moves the cursor so earlier fields can be patched
func (w *Writer) SetBitPos(pos uint64) { w.pos = pos }

// Bytes returns the written bytes, padded to a whole byte
func (w *Writer) Bytes() []byte {
	used := (w.max + 7) / 8
	out := make([]byte, used)
	copy(out, w.data)
	return out
}

// AlignByte advances to the next byte boundary
func (w *Writer) AlignByte() {
	if w.pos%8 != 0 {
		w.pos += 8 - w.pos%8
		w.ensure()
	}
}

func (w *Writer) ensure() {
	need := int((w.pos + 7) / 8)
	for len(w.data) < need {
		w.data = append(w.data, 0)
	}
	if w.pos > w.max {
		w.max = w.pos
	}
}

// WriteB writes one bit
func (w *Writer) WriteB(bit uint8) {
	idx := w.pos / 8
	for uint64(len(w.data)) <= idx {
		w.data = append(w.data, 0)
	}
	mask := byte(0x80) >> (w.pos % 8)
	if bit&1 == 1 {
		w.data[idx] |= mask
	} else {
		w.data[idx] &^= mask
	}
	w.pos++
	if w.pos > w.max {
		w.max = w.pos
	}
}

// WriteBits writes the low n bits of v MSB first
func (w *Writer) WriteBits(v uint64, n uint) {
	for i := int(n) - 1; i >= 0; i-- {
		w.WriteB(uint8(v >> uint(i) & 1))
	}
}

// WriteBB writes a 2-bit code
func (w *Writer) WriteBB(v uint8) { w.WriteBits(uint64(v&3), 2) }

// Write3B writes a 3-bit code
func (w *Writer) Write3B(v uint8) { w.WriteBits(uint64(v&7), 3) }

// WriteRC writes a raw byte
func (w *Writer) WriteRC(v uint8) { w.WriteBits(uint64(v), 8) }

// WriteRCs writes raw bytes
func (w *Writer) WriteRCs(b []byte) {
	for _, c := range b {
		w.WriteRC(c)
	}
}

// WriteRS writes a raw little-endian short
func (w *Writer) WriteRS(v uint16) {
	w.WriteRC(uint8(v))
	w.WriteRC(uint8(v >> 8))
}

// WriteRSBE writes a raw big-endian short
func (w *Writer) WriteRSBE(v uint16) {
	w.WriteRC(uint8(v >> 8))
	w.WriteRC(uint8(v))
}

// WriteRL writes a raw little-endian long
func (w *Writer) WriteRL(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.WriteRCs(b[:])
}

// WriteRD writes a raw little-endian double
func (w *Writer) WriteRD(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.WriteRCs(b[:])
}

// WriteBS writes a bitshort
func (w *Writer) WriteBS(v uint16) {
	switch {
	case v == 0:
		w.WriteBB(2)
	case v == 256:
		w.WriteBB(3)
	case v <= 0xFF:
		w.WriteBB(1)
		w.WriteRC(uint8(v))
	default:
		w.WriteBB(0)
		w.WriteRS(v)
	}
}

// WriteBL writes a bitlong
func (w *Writer) WriteBL(v uint32) {
	switch {
	case v == 0:
		w.WriteBB(2)
	case v <= 0xFF:
		w.WriteBB(1)
		w.WriteRC(uint8(v))
	default:
		w.WriteBB(0)
		w.WriteRL(v)
	}
}

// WriteBLL writes a bitlonglong
func (w *Writer) WriteBLL(v uint64) error {
	n := uint8(0)
	for t := v; t != 0; t >>= 8 {
		n++
	}
	if n > 7 {
		return dwgerr.Newf(dwgerr.KindUnsupported, "BLL value exceeds 7-byte encoding range: %d", v)
	}
	w.Write3B(n)
	for i := uint8(0); i < n; i++ {
		w.WriteRC(uint8(v >> (8 * i)))
	}
	return nil
}

// WriteBD writes a bitdouble
func (w *Writer) WriteBD(v float64) {
	switch {
	case v == 1.0:
		w.WriteBB(1)
	case v == 0.0 && !math.Signbit(v):
		w.WriteBB(2)
	default:
		w.WriteBB(0)
		w.WriteRD(v)
	}
}

// WriteDD writes a bitdouble with default
func (w *Writer) WriteDD(def, v float64) {
	if math.Float64bits(v) == math.Float64bits(def) {
		w.WriteBB(0)
		return
	}
	w.WriteBB(3)
	w.WriteRD(v)
}

// WriteBT writes a bit thickness
func (w *Writer) WriteBT(v float64) {
	if v == 0 {
		w.WriteB(1)
		return
	}
	w.WriteB(0)
	w.WriteBD(v)
}

// WriteBE writes a bit extrusion
func (w *Writer) WriteBE(p Point3) {
	if p == (Point3{0, 0, 1}) {
		w.WriteB(1)
		return
	}
	w.WriteB(0)
	w.Write3BD(p)
}

// Write2RD writes two raw doubles
func (w *Writer) Write2RD(p Point2) {
	w.WriteRD(p[0])
	w.WriteRD(p[1])
}

// Write2BD writes two bitdoubles
func (w *Writer) Write2BD(p Point2) {
	w.WriteBD(p[0])
	w.WriteBD(p[1])
}

// Write3BD writes three bitdoubles
func (w *Writer) Write3BD(p Point3) {
	for _, v := range p {
		w.WriteBD(v)
	}
}

// WriteMS writes a modular short
func (w *Writer) WriteMS(v uint32) error {
	if v > 0x3FFF_FFFF {
		return dwgerr.Newf(dwgerr.KindUnsupported, "MS value exceeds 30-bit range: %d", v)
	}
	low := uint16(v & 0x7FFF)
	high := uint16(v >> 15 & 0x7FFF)
	if high == 0 {
		w.WriteRS(low)
		return nil
	}
	w.WriteRS(low | 0x8000)
	w.WriteRS(high)
	return nil
}

// EncodeMC encodes a signed modular char
func EncodeMC(v int64) []byte {
	neg := v < 0
	rem := uint64(v)
	if neg {
		rem = uint64(-v)
	}
	out := make([]byte, 0, 4)
	for {
		chunk := uint8(rem & 0x7F)
		rem >>= 7
		if rem == 0 && chunk <= 0x3F {
			if neg {
				chunk |= 0x40
			}
			return append(out, chunk)
		}
		out = append(out, chunk|0x80)
	}
}

// WriteMC writes a signed modular char
func (w *Writer) WriteMC(v int64) { w.WriteRCs(EncodeMC(v)) }

// WriteUMC writes an unsigned modular char
func (w *Writer) WriteUMC(v uint64) {
	for {
		b := uint8(v & 0x7F)
		v >>= 7
		if v != 0 {
			w.WriteRC(b | 0x80)
			continue
		}
		w.WriteRC(b)
		return
	}
}

// WriteOT writes the R2010+ object type prefix
func (w *Writer) WriteOT(code uint16) {
	switch {
	case code <= 0xFF:
		w.WriteBB(0)
		w.WriteRC(uint8(code))
	case code >= 0x1F0 && code <= 0x2EF:
		w.WriteBB(1)
		w.WriteRC(uint8(code - 0x1F0))
	default:
		w.WriteBB(2)
		w.WriteRS(code)
	}
}

// WriteH writes a handle reference with the minimal byte counter
func (w *Writer) WriteH(code uint8, value uint64) error {
	counter := 0
	for t := value; t != 0; t >>= 8 {
		counter++
	}
	if counter > 4 {
		return dwgerr.Newf(dwgerr.KindUnsupported, "handle value exceeds 4-byte payload: %d", value)
	}
	w.WriteRC(code<<4 | uint8(counter))
	for i := counter - 1; i >= 0; i-- {
		w.WriteRC(uint8(value >> (8 * uint(i))))
	}
	return nil
}

// WriteTV writes a BS-length-prefixed string. NUL becomes a space and bytes
// at or above 0x7F become '*'.
func (w *Writer) WriteTV(s string) error {
	raw := []byte(s)
	if len(raw) > math.MaxUint16 {
		return dwgerr.Newf(dwgerr.KindUnsupported, "TV string too long: %d bytes", len(raw))
	}
	for i, c := range raw {
		switch {
		case c == 0:
			raw[i] = ' '
		case c >= 0x7F:
			raw[i] = '*'
		}
	}
	w.WriteBS(uint16(len(raw)))
	w.WriteRCs(raw)
	return nil
}

// WriteTU writes a BS-length-prefixed UTF-16LE string
func (w *Writer) WriteTU(s string) error {
	raw := EncodeUTF16LE(s)
	if len(raw)/2 > math.MaxUint16 {
		return dwgerr.Newf(dwgerr.KindUnsupported, "TU string too long: %d units", len(raw)/2)
	}
	w.WriteBS(uint16(len(raw) / 2))
	w.WriteRCs(raw)
	return nil
}

// WriteCRC aligns to a byte and writes a 16-bit checksum
func (w *Writer) WriteCRC(crc uint16) {
	w.AlignByte()
	w.WriteRS(crc)
}
