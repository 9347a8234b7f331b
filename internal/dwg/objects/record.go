// Package objects frames object records and normalizes their headers.
package objects

import (
	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

// ObjectRecord is the serialized byte range of one object. Body holds the
// Size bytes after the modular-short size field; Raw spans the size field,
// the body and the trailing CRC. Both alias the input buffer.
type ObjectRecord struct {
	Offset    uint64
	Size      uint32
	BodyStart uint64
	Body      []byte
	Raw       []byte
}

// ParseRecord frames the record that starts at offset
func ParseRecord(data []byte, offset uint64) (ObjectRecord, error) {
	if offset >= uint64(len(data)) {
		return ObjectRecord{}, dwgerr.New(dwgerr.KindFormat, "object record offset exceeds file size").WithOffset(offset)
	}
	r := bitstream.NewReader(data)
	r.SetBitPos(offset * 8)
	size, err := r.ReadMS()
	if err != nil {
		return ObjectRecord{}, dwgerr.Wrap(dwgerr.KindFormat, err, "object record size").WithOffset(offset)
	}
	if size == 0 {
		return ObjectRecord{}, dwgerr.New(dwgerr.KindFormat, "object record size is zero").WithOffset(offset)
	}
	bodyStart := r.TellBits() / 8
	end := bodyStart + uint64(size)
	if end+2 > uint64(len(data)) {
		return ObjectRecord{}, dwgerr.Newf(dwgerr.KindFormat, "object record exceeds file size: end %d + crc", end).WithOffset(offset)
	}
	return ObjectRecord{
		Offset:    offset,
		Size:      size,
		BodyStart: bodyStart,
		Body:      data[bodyStart:end],
		Raw:       data[offset : end+2],
	}, nil
}

// Reader returns a fresh bit reader over the body
func (rec ObjectRecord) Reader() *bitstream.Reader {
	return bitstream.NewReader(rec.Body)
}

// BitLen is the body size in bits
func (rec ObjectRecord) BitLen() uint64 {
	return uint64(rec.Size) * 8
}
