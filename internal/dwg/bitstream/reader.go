// Package bitstream reads and writes the MSB-first bit encodings used inside
// drawing object records.
package bitstream

import (
	"encoding/binary"
	"math"

	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

// Reader positions itself in bits over an immutable byte slice. It is a small
// value type: copying a Reader gives an independent cursor at the same position.
type Reader struct {
	data []byte
	pos  uint64
}

// NewReader creates a reader positioned at bit 0
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func errEOF(pos uint64) error {
	return dwgerr.New(dwgerr.KindDecode, "unexpected end of bit stream").WithOffset(pos)
}

// Data returns the underlying bytes
func (r *Reader) Data() []byte { return r.data }

// BitLen returns the total number of bits available
func (r *Reader) BitLen() uint64 { return uint64(len(r.data)) * 8 }

// TellBits returns the current bit position
func (r *Reader) TellBits() uint64 { return r.pos }

// SetBitPos moves to an absolute bit position
func (r *Reader) SetBitPos(pos uint64) { r.pos = pos }

// Clone returns an independent reader at the same position
func (r *Reader) Clone() *Reader {
	c := *r
	return &c
}

// Remaining returns the number of unread bits
func (r *Reader) Remaining() uint64 {
	if r.pos >= r.BitLen() {
		return 0
	}
	return r.BitLen() - r.pos
}

// AlignByte advances to the next byte boundary
func (r *Reader) AlignByte() {
	if r.pos%8 != 0 {
		r.pos += 8 - r.pos%8
	}
}

// ReadB reads one bit
func (r *Reader) ReadB() (uint8, error) {
	if r.pos >= r.BitLen() {
		return 0, errEOF(r.pos)
	}
	b := r.data[r.pos/8]
	bit := (b >> (7 - r.pos%8)) & 1
	r.pos++
	return bit, nil
}

// ReadBits reads n bits (n <= 64) MSB first
func (r *Reader) ReadBits(n uint) (uint64, error) {
	if n > 64 {
		return 0, dwgerr.Newf(dwgerr.KindDecode, "cannot read %d bits at once", n)
	}
	if r.Remaining() < uint64(n) {
		return 0, errEOF(r.pos)
	}
	var v uint64
	for i := uint(0); i < n; i++ {
		b := r.data[r.pos/8]
		v = v<<1 | uint64((b>>(7-r.pos%8))&1)
		r.pos++
	}
	return v, nil
}

// ReadBB reads a 2-bit code
func (r *Reader) ReadBB() (uint8, error) {
	v, err := r.ReadBits(2)
	return uint8(v), err
}

// Read3B reads a 3-bit code
func (r *Reader) Read3B() (uint8, error) {
	v, err := r.ReadBits(3)
	return uint8(v), err
}

// ReadRC reads a raw byte
func (r *Reader) ReadRC() (uint8, error) {
	if r.pos%8 == 0 {
		idx := r.pos / 8
		if idx >= uint64(len(r.data)) {
			return 0, errEOF(r.pos)
		}
		r.pos += 8
		return r.data[idx], nil
	}
	v, err := r.ReadBits(8)
	return uint8(v), err
}

// ReadRCs reads n raw bytes
func (r *Reader) ReadRCs(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < uint64(n)*8 {
		return nil, errEOF(r.pos)
	}
	out := make([]byte, n)
	if r.pos%8 == 0 {
		start := r.pos / 8
		copy(out, r.data[start:start+uint64(n)])
		r.pos += uint64(n) * 8
		return out, nil
	}
	for i := range out {
		b, err := r.ReadRC()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// ReadRS reads a raw little-endian short
func (r *Reader) ReadRS() (uint16, error) {
	b, err := r.ReadRCs(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadRSBE reads a raw big-endian short
func (r *Reader) ReadRSBE() (uint16, error) {
	b, err := r.ReadRCs(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadRL reads a raw little-endian long
func (r *Reader) ReadRL() (uint32, error) {
	b, err := r.ReadRCs(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadRD reads a raw little-endian IEEE double
func (r *Reader) ReadRD() (float64, error) {
	b, err := r.ReadRCs(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// Read2RD reads two raw doubles
func (r *Reader) Read2RD() (Point2, error) {
	x, err := r.ReadRD()
	if err != nil {
		return Point2{}, err
	}
	y, err := r.ReadRD()
	if err != nil {
		return Point2{}, err
	}
	return Point2{x, y}, nil
}

// Read3RD reads three raw doubles
func (r *Reader) Read3RD() (Point3, error) {
	var p Point3
	for i := range p {
		v, err := r.ReadRD()
		if err != nil {
			return Point3{}, err
		}
		p[i] = v
	}
	return p, nil
}

// ReadBS reads a bitshort
func (r *Reader) ReadBS() (uint16, error) {
	code, err := r.ReadBB()
	if err != nil {
		return 0, err
	}
	switch code {
	case 0:
		return r.ReadRS()
	case 1:
		v, err := r.ReadRC()
		return uint16(v), err
	case 2:
		return 0, nil
	default:
		return 256, nil
	}
}

// ReadBL reads a bitlong
func (r *Reader) ReadBL() (uint32, error) {
	code, err := r.ReadBB()
	if err != nil {
		return 0, err
	}
	switch code {
	case 0:
		return r.ReadRL()
	case 1:
		v, err := r.ReadRC()
		return uint32(v), err
	case 2:
		return 0, nil
	default:
		return 0, dwgerr.New(dwgerr.KindDecode, "invalid BL code 3").WithOffset(r.pos)
	}
}

// ReadBLL reads a bitlonglong: 3-bit byte count, then little-endian bytes
func (r *Reader) ReadBLL() (uint64, error) {
	n, err := r.Read3B()
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := uint8(0); i < n; i++ {
		b, err := r.ReadRC()
		if err != nil {
			return 0, err
		}
		v |= uint64(b) << (8 * i)
	}
	return v, nil
}

// ReadBD reads a bitdouble
func (r *Reader) ReadBD() (float64, error) {
	code, err := r.ReadBB()
	if err != nil {
		return 0, err
	}
	switch code {
	case 0:
		return r.ReadRD()
	case 1:
		return 1.0, nil
	case 2:
		return 0.0, nil
	default:
		return 0, dwgerr.New(dwgerr.KindDecode, "invalid BD code 3").WithOffset(r.pos)
	}
}

// ReadDD reads a bitdouble with default
func (r *Reader) ReadDD(def float64) (float64, error) {
	code, err := r.ReadBB()
	if err != nil {
		return 0, err
	}
	switch code {
	case 0:
		return def, nil
	case 1, 2:
		bits := math.Float64bits(def)
		var raw [8]byte
		binary.LittleEndian.PutUint64(raw[:], bits)
		if code == 1 {
			patch, err := r.ReadRCs(4)
			if err != nil {
				return 0, err
			}
			copy(raw[0:4], patch)
		} else {
			patch, err := r.ReadRCs(6)
			if err != nil {
				return 0, err
			}
			raw[4], raw[5] = patch[0], patch[1]
			copy(raw[0:4], patch[2:6])
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(raw[:])), nil
	default:
		return r.ReadRD()
	}
}

// ReadBT reads a bit thickness
func (r *Reader) ReadBT() (float64, error) {
	flag, err := r.ReadB()
	if err != nil {
		return 0, err
	}
	if flag == 1 {
		return 0, nil
	}
	return r.ReadBD()
}

// ReadBE reads a bit extrusion
func (r *Reader) ReadBE() (Point3, error) {
	flag, err := r.ReadB()
	if err != nil {
		return Point3{}, err
	}
	if flag == 1 {
		return Point3{0, 0, 1}, nil
	}
	return r.Read3BD()
}

// Read2BD reads two bitdoubles
func (r *Reader) Read2BD() (Point2, error) {
	x, err := r.ReadBD()
	if err != nil {
		return Point2{}, err
	}
	y, err := r.ReadBD()
	if err != nil {
		return Point2{}, err
	}
	return Point2{x, y}, nil
}

// Read3BD reads three bitdoubles
func (r *Reader) Read3BD() (Point3, error) {
	var p Point3
	for i := range p {
		v, err := r.ReadBD()
		if err != nil {
			return Point3{}, err
		}
		p[i] = v
	}
	return p, nil
}

// ReadMS reads a modular short: little-endian 15-bit chunks, high bit continues
func (r *Reader) ReadMS() (uint32, error) {
	var v uint32
	for shift := uint(0); shift < 32; shift += 15 {
		chunk, err := r.ReadRS()
		if err != nil {
			return 0, err
		}
		v |= uint32(chunk&0x7FFF) << shift
		if chunk&0x8000 == 0 {
			return v, nil
		}
	}
	return 0, dwgerr.New(dwgerr.KindDecode, "modular short too long").WithOffset(r.pos)
}

// ReadMC reads a signed modular char
func (r *Reader) ReadMC() (int64, error) {
	var v int64
	for shift := uint(0); shift < 64; shift += 7 {
		b, err := r.ReadRC()
		if err != nil {
			return 0, err
		}
		if b&0x80 != 0 {
			v |= int64(b&0x7F) << shift
			continue
		}
		v |= int64(b&0x3F) << shift
		if b&0x40 != 0 {
			v = -v
		}
		return v, nil
	}
	return 0, dwgerr.New(dwgerr.KindDecode, "modular char too long").WithOffset(r.pos)
}

// ReadUMC reads an unsigned modular char
func (r *Reader) ReadUMC() (uint64, error) {
	var v uint64
	for shift := uint(0); shift < 64; shift += 7 {
		b, err := r.ReadRC()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, dwgerr.New(dwgerr.KindDecode, "unsigned modular char too long").WithOffset(r.pos)
}

// ReadOT reads the R2010+ object type prefix
func (r *Reader) ReadOT() (uint16, error) {
	code, err := r.ReadBB()
	if err != nil {
		return 0, err
	}
	switch code {
	case 0:
		v, err := r.ReadRC()
		return uint16(v), err
	case 1:
		v, err := r.ReadRC()
		return uint16(v) + 0x1F0, err
	default:
		return r.ReadRS()
	}
}

// ReadCRC aligns to the next byte and reads a 16-bit checksum
func (r *Reader) ReadCRC() (uint16, error) {
	r.AlignByte()
	return r.ReadRS()
}
