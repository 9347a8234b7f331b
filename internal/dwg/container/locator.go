package container

import (
	"bytes"
	"encoding/binary"

	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

const (
	locatorCodePageOffset = 0x13
	locatorTableOffset    = 0x15
	locatorRecordSize     = 9
	maxLocatorRecords     = 64
)

// LocatorSentinel follows the R13 to R2000 section locator table
var LocatorSentinel = []byte{
	0x95, 0xA0, 0x4E, 0x28, 0x99, 0x82, 0x1A, 0xE5, 0x5E, 0x41, 0xE0, 0x5F, 0x9D, 0x3A, 0x4D, 0x00,
}

// Locator record numbers
const (
	RecordHeader  uint8 = 0
	RecordClasses uint8 = 1
	RecordHandles uint8 = 2
)

var locatorNames = map[uint8]string{
	RecordHeader:  SectionHeader,
	RecordClasses: SectionClasses,
	RecordHandles: SectionHandles,
}

// ReadLocatorDirectory parses the fixed record table at 0x15
func ReadLocatorDirectory(data []byte) (Directory, error) {
	if len(data) < locatorTableOffset+4 {
		return Directory{}, dwgerr.New(dwgerr.KindFormat, "file too small for section locator")
	}
	count := binary.LittleEndian.Uint32(data[locatorTableOffset:])
	if count > maxLocatorRecords {
		return Directory{}, dwgerr.Newf(dwgerr.KindFormat, "section locator count %d exceeds %d", count, maxLocatorRecords)
	}
	pos := locatorTableOffset + 4
	if len(data) < pos+int(count)*locatorRecordSize {
		return Directory{}, dwgerr.New(dwgerr.KindFormat, "section locator records truncated")
	}
	dir := Directory{Records: make([]SectionRecord, 0, count)}
	for i := uint32(0); i < count; i++ {
		no := data[pos]
		dir.Records = append(dir.Records, SectionRecord{
			RecordNo: no,
			Name:     locatorNames[no],
			Offset:   uint64(binary.LittleEndian.Uint32(data[pos+1:])),
			Size:     uint64(binary.LittleEndian.Uint32(data[pos+5:])),
		})
		pos += locatorRecordSize
	}
	if len(data) >= pos+2 {
		dir.CRC = binary.LittleEndian.Uint16(data[pos:])
		pos += 2
	}
	if len(data) >= pos+len(LocatorSentinel) {
		dir.SentinelOK = bytes.Equal(data[pos:pos+len(LocatorSentinel)], LocatorSentinel)
	}
	return dir, nil
}

// sliceRecord returns the bytes a locator record points at
func sliceRecord(data []byte, r SectionRecord, maxBytes uint64) ([]byte, error) {
	if r.Size > maxBytes {
		return nil, dwgerr.Newf(dwgerr.KindFormat, "section size %d exceeds limit %d", r.Size, maxBytes)
	}
	end := r.Offset + r.Size
	if end < r.Offset || end > uint64(len(data)) {
		return nil, dwgerr.Newf(dwgerr.KindFormat, "section %s out of range", r.Label()).WithOffset(r.Offset)
	}
	return data[r.Offset:end], nil
}
