package container

import (
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

// Decompressor expands one compressed page into a buffer of exactly dstSize
type Decompressor interface {
	Decompress(src []byte, dstSize int) ([]byte, error)
	Name() string
}

// compression type ids used by system and data pages. Writers leave the
// field zero for stored pages as well as setting it to one.
const (
	CompressionUnset uint32 = 0
	CompressionNone  uint32 = 1
	CompressionLZ    uint32 = 2
)

// DecompressorRegistry holds the available page decompressors by type id
var DecompressorRegistry = map[uint32]Decompressor{
	CompressionUnset: rawCopy{},
	CompressionNone:  rawCopy{},
	CompressionLZ:    lzR18{},
}

// GetDecompressor returns a decompressor by compression type
func GetDecompressor(kind uint32) (Decompressor, error) {
	d, ok := DecompressorRegistry[kind]
	if !ok {
		return nil, dwgerr.Newf(dwgerr.KindUnsupported, "unsupported page compression type %d", kind)
	}
	return d, nil
}

type rawCopy struct{}

func (rawCopy) Name() string { return "none" }

func (rawCopy) Decompress(src []byte, dstSize int) ([]byte, error) {
	out := make([]byte, dstSize)
	copy(out, src)
	return out, nil
}

type lzR18 struct{}

func (lzR18) Name() string { return "lz-r18" }

func (lzR18) Decompress(src []byte, dstSize int) ([]byte, error) {
	return DecompressR18(src, dstSize)
}

type lzCursor struct {
	data []byte
	pos  int
}

func (c *lzCursor) readByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, dwgerr.New(dwgerr.KindDecode, "unexpected end of compressed stream").WithOffset(uint64(c.pos))
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

// literalLength returns a literal run length, or, when the next byte is
// already an opcode, zero plus that opcode.
func (c *lzCursor) literalLength() (int, byte, error) {
	b, err := c.readByte()
	if err != nil {
		return 0, 0, err
	}
	switch {
	case b >= 0x01 && b <= 0x0F:
		return int(b) + 3, 0, nil
	case b&0xF0 != 0:
		return 0, b, nil
	}
	n := 0x0F
	for {
		b, err = c.readByte()
		if err != nil {
			return 0, 0, err
		}
		if b != 0 {
			break
		}
		n += 0xFF
	}
	return n + int(b) + 3, 0, nil
}

func (c *lzCursor) longCompressionOffset() (int, error) {
	b, err := c.readByte()
	if err != nil {
		return 0, err
	}
	if b != 0 {
		return int(b), nil
	}
	v := 0xFF
	for {
		b, err = c.readByte()
		if err != nil {
			return 0, err
		}
		if b != 0 {
			return v + int(b), nil
		}
		v += 0xFF
	}
}

func (c *lzCursor) twoByteOffset() (offset, literal int, err error) {
	b1, err := c.readByte()
	if err != nil {
		return 0, 0, err
	}
	b2, err := c.readByte()
	if err != nil {
		return 0, 0, err
	}
	return int(b1>>2) | int(b2)<<6, int(b1 & 0x03), nil
}

// trailingLiteral resolves the literal count carried in an opcode: a non-zero
// count is used as is, zero means a literal length field follows.
func (c *lzCursor) trailingLiteral(count int) (int, byte, error) {
	if count != 0 {
		return count, 0, nil
	}
	return c.literalLength()
}

type lzOutput struct {
	buf []byte
	idx int
}

func (o *lzOutput) grow(n int) {
	if len(o.buf) < n {
		o.buf = append(o.buf, make([]byte, n-len(o.buf))...)
	}
}

func (o *lzOutput) literal(c *lzCursor, n int) error {
	if n == 0 {
		return nil
	}
	if c.pos+n > len(c.data) {
		return dwgerr.New(dwgerr.KindDecode, "literal run exceeds compressed data").WithOffset(uint64(c.pos))
	}
	o.grow(o.idx + n)
	copy(o.buf[o.idx:], c.data[c.pos:c.pos+n])
	c.pos += n
	o.idx += n
	return nil
}

// backref copies n bytes from offset bytes back. References before the start
// of the output emit zeros.
func (o *lzOutput) backref(offset, n int) {
	if n == 0 {
		return
	}
	o.grow(o.idx + n)
	if offset > o.idx {
		o.idx += n
		return
	}
	for i := 0; i < n; i++ {
		o.buf[o.idx] = o.buf[o.idx-offset]
		o.idx++
	}
}

// DecompressR18 expands the LZ-family stream used by R2004+ pages. The result
// is always exactly dstSize bytes, zero padded when the stream under-fills it.
func DecompressR18(src []byte, dstSize int) ([]byte, error) {
	out := &lzOutput{buf: make([]byte, dstSize)}
	c := &lzCursor{data: src}

	n, op, err := c.literalLength()
	if err != nil {
		return nil, err
	}
	if err := out.literal(c, n); err != nil {
		return nil, err
	}

	for c.pos < len(src) {
		if op == 0 {
			if op, err = c.readByte(); err != nil {
				return nil, err
			}
		}

		var count, offset, lit int
		var next byte
		switch {
		case op == 0x10:
			long, err := c.longCompressionOffset()
			if err != nil {
				return nil, err
			}
			count = long + 9
			off, l, err := c.twoByteOffset()
			if err != nil {
				return nil, err
			}
			offset = off + 0x3FFF
			if lit, next, err = c.trailingLiteral(l); err != nil {
				return nil, err
			}
		case op == 0x11:
			return finish(out, dstSize), nil
		case op >= 0x12 && op <= 0x1F:
			count = int(op&0x0F) + 2
			off, l, err := c.twoByteOffset()
			if err != nil {
				return nil, err
			}
			offset = off + 0x3FFF
			if lit, next, err = c.trailingLiteral(l); err != nil {
				return nil, err
			}
		case op == 0x20:
			long, err := c.longCompressionOffset()
			if err != nil {
				return nil, err
			}
			count = long + 0x21
			off, l, err := c.twoByteOffset()
			if err != nil {
				return nil, err
			}
			offset = off
			if lit, next, err = c.trailingLiteral(l); err != nil {
				return nil, err
			}
		case op >= 0x21 && op <= 0x3F:
			count = int(op) - 0x1E
			off, l, err := c.twoByteOffset()
			if err != nil {
				return nil, err
			}
			offset = off
			if lit, next, err = c.trailingLiteral(l); err != nil {
				return nil, err
			}
		case op >= 0x40:
			count = int(op&0xF0)>>4 - 1
			op2, err := c.readByte()
			if err != nil {
				return nil, err
			}
			offset = int(op2)<<2 | int(op&0x0C)>>2
			if lit, next, err = c.trailingLiteral(int(op & 0x03)); err != nil {
				return nil, err
			}
		default:
			return nil, dwgerr.Newf(dwgerr.KindFormat, "invalid R2004 compression opcode 0x%02X", op).WithOffset(uint64(c.pos - 1))
		}

		out.backref(offset+1, count)
		if err := out.literal(c, lit); err != nil {
			return nil, err
		}
		op = next
	}
	return finish(out, dstSize), nil
}

func finish(out *lzOutput, dstSize int) []byte {
	if len(out.buf) > dstSize {
		return out.buf[:dstSize]
	}
	return out.buf
}
