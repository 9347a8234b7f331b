package writer

import (
	"sort"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/container"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/objindex"
)

// maxMapBlock caps the size field of one object map block, CRC included
const maxMapBlock = 2032

// EncodeObjectMap encodes refs as object map blocks sorted by handle, each
// holding (handle, offset) deltas from the previous entry of the block,
// followed by the size-2 terminator block.
func EncodeObjectMap(refs []objindex.ObjectRef) ([]byte, error) {
	ordered := append([]objindex.ObjectRef(nil), refs...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Handle != ordered[j].Handle {
			return ordered[i].Handle < ordered[j].Handle
		}
		return ordered[i].Offset < ordered[j].Offset
	})

	var out []byte
	var block []byte
	var prevHandle, prevOffset int64
	flush := func() {
		if len(block) == 0 {
			return
		}
		out = appendMapBlock(out, block)
		block = block[:0]
		prevHandle, prevOffset = 0, 0
	}
	for i, ref := range ordered {
		if i > 0 && ref.Handle == ordered[i-1].Handle {
			return nil, dwgerr.Newf(dwgerr.KindFormat, "duplicate handle 0x%X in object map", ref.Handle)
		}
		if ref.Handle > 1<<62 || ref.Offset > 1<<32-1 {
			return nil, dwgerr.Newf(dwgerr.KindUnsupported, "object map entry %s out of range", ref)
		}
		pair := bitstream.EncodeMC(int64(ref.Handle) - prevHandle)
		pair = append(pair, bitstream.EncodeMC(int64(ref.Offset)-prevOffset)...)
		if len(block)+len(pair)+2 > maxMapBlock {
			flush()
			pair = bitstream.EncodeMC(int64(ref.Handle))
			pair = append(pair, bitstream.EncodeMC(int64(ref.Offset))...)
		}
		block = append(block, pair...)
		prevHandle, prevOffset = int64(ref.Handle), int64(ref.Offset)
	}
	flush()
	return appendMapBlock(out, nil), nil
}

func appendMapBlock(out, payload []byte) []byte {
	size := len(payload) + 2
	start := len(out)
	out = append(out, byte(size>>8), byte(size))
	out = append(out, payload...)
	crc := crc16(crcSeed, out[start:])
	return append(out, byte(crc>>8), byte(crc))
}

// encodeClasses writes an R13-layout classes section with no classes
func encodeClasses() []byte {
	w := bitstream.NewWriter()
	w.WriteRCs(objects.ClassesSentinelBefore)
	w.WriteRL(0)
	w.WriteCRC(crc16(crcSeed, nil))
	w.WriteRCs(objects.ClassesSentinelAfter)
	return w.Bytes()
}

// locatorSize is the byte length of a section locator with n records
func locatorSize(n int) int {
	return locatorTable + 4 + n*locatorRecord + 2 + len(container.LocatorSentinel)
}

const (
	codePageOffset = 0x13
	locatorTable   = 0x15
	locatorRecord  = 9
)

// locatorEntry is one record of the section locator
type locatorEntry struct {
	recordNo uint8
	offset   uint32
	size     uint32
}

// putLocator writes the file tag, code page and section locator into the
// head of file
func putLocator(file []byte, tag string, cp bitstream.CodePage, entries []locatorEntry) {
	copy(file, tag)
	putU16(file[codePageOffset:], uint16(cp))
	putU32(file[locatorTable:], uint32(len(entries)))
	pos := locatorTable + 4
	for _, e := range entries {
		file[pos] = e.recordNo
		putU32(file[pos+1:], e.offset)
		putU32(file[pos+5:], e.size)
		pos += locatorRecord
	}
	putU16(file[pos:], crc16(crcSeed, file[:pos]))
	copy(file[pos+2:], container.LocatorSentinel)
}

func putU16(b []byte, v uint16) {
	b[0], b[1] = byte(v), byte(v>>8)
}

func putU32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func alignUp(v, n int) int {
	if r := v % n; r != 0 {
		return v + n - r
	}
	return v
}
