package container

import (
	"encoding/binary"
	"sort"
)

type fixtureSection struct {
	name       string
	payload    []byte
	maxDecomp  uint32
	size       uint64
	compressed bool
	encrypted  uint32
	// compression overrides the compression id written to the section map
	compression uint32
}

// lzLiteral encodes raw as a literal-only compressed stream
func lzLiteral(raw []byte) []byte {
	if len(raw) < 4 {
		raw = append(append([]byte{}, raw...), make([]byte, 4-len(raw))...)
	}
	n := len(raw)
	var out []byte
	if n <= 18 {
		out = append(out, byte(n-3))
	} else {
		out = append(out, 0)
		rem := n - 18
		for rem > 0xFF {
			out = append(out, 0)
			rem -= 0xFF
		}
		out = append(out, byte(rem))
	}
	out = append(out, raw...)
	return append(out, 0x11)
}

func systemPage(magic uint32, raw []byte) []byte {
	comp := lzLiteral(raw)
	head := make([]byte, systemHeaderSize)
	le := binary.LittleEndian
	le.PutUint32(head[0:], magic)
	le.PutUint32(head[4:], uint32(len(raw)))
	le.PutUint32(head[8:], uint32(len(comp)))
	le.PutUint32(head[12:], CompressionLZ)
	return append(head, comp...)
}

func dataPage(address uint64, body []byte) []byte {
	head := make([]byte, dataPageHeaderSize)
	le := binary.LittleEndian
	le.PutUint32(head[0:], dataPageMagic)
	le.PutUint32(head[4:], 0x4163)
	le.PutUint32(head[8:], uint32(len(body)))
	return append(ScrambleDataPageHeader(head, address), body...)
}

// buildPagedFile lays out one data page per section, then the section map and
// the page map, all after a scrambled header block.
func buildPagedFile(sections []fixtureSection) []byte {
	le := binary.LittleEndian
	file := make([]byte, 0x100)
	copy(file, "AC1018")
	le.PutUint16(file[locatorCodePageOffset:], 30)

	type pageEntry struct {
		id   int32
		size uint32
	}
	var pages []pageEntry
	var sectionMap []byte
	header := make([]byte, 20)
	le.PutUint32(header, uint32(len(sections)))
	sectionMap = append(sectionMap, header...)

	for i, s := range sections {
		id := int32(i + 1)
		body := s.payload
		if s.compressed {
			body = lzLiteral(s.payload)
		}
		page := dataPage(uint64(len(file)), body)
		file = append(file, page...)
		pages = append(pages, pageEntry{id: id, size: uint32(len(page))})

		entry := make([]byte, 96)
		size := s.size
		if size == 0 {
			size = uint64(s.maxDecomp)
		}
		le.PutUint64(entry[0:], size)
		le.PutUint32(entry[8:], 1)
		le.PutUint32(entry[12:], s.maxDecomp)
		switch {
		case s.compression != 0:
			le.PutUint32(entry[20:], s.compression)
		case s.compressed:
			le.PutUint32(entry[20:], CompressionLZ)
		default:
			le.PutUint32(entry[20:], CompressionNone)
		}
		le.PutUint32(entry[24:], uint32(i))
		le.PutUint32(entry[28:], s.encrypted)
		copy(entry[32:], s.name)
		sectionMap = append(sectionMap, entry...)

		info := make([]byte, 16)
		le.PutUint32(info[0:], uint32(id))
		le.PutUint32(info[4:], uint32(len(s.payload)))
		sectionMap = append(sectionMap, info...)
	}

	sectionMapID := int32(len(sections) + 1)
	smPage := systemPage(sectionMapMagic, sectionMap)
	file = append(file, smPage...)
	pages = append(pages, pageEntry{id: sectionMapID, size: uint32(len(smPage))})

	pageMapID := sectionMapID + 1
	pageMapAddress := uint64(len(file))
	pages = append(pages, pageEntry{id: pageMapID, size: 0x40})
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].id < pages[j].id })
	var pageMap []byte
	for _, p := range pages {
		e := make([]byte, 8)
		le.PutUint32(e[0:], uint32(p.id))
		le.PutUint32(e[4:], p.size)
		pageMap = append(pageMap, e...)
	}
	file = append(file, systemPage(pageMapMagic, pageMap)...)

	block := make([]byte, pagedHeaderSize)
	le.PutUint32(block[0x50:], uint32(pageMapID))
	le.PutUint64(block[0x54:], pageMapAddress-0x100)
	le.PutUint32(block[0x5C:], uint32(sectionMapID))
	le.PutUint32(block[0x60:], uint32(len(pages)))
	copy(file[pagedHeaderOffset:], ScrambleHeader(block))
	return file
}

// buildLocatorFile writes a record table followed by the section bodies
func buildLocatorFile(sections map[uint8][]byte) []byte {
	le := binary.LittleEndian
	nos := make([]int, 0, len(sections))
	for no := range sections {
		nos = append(nos, int(no))
	}
	sort.Ints(nos)

	tableEnd := locatorTableOffset + 4 + len(nos)*locatorRecordSize + 2 + len(LocatorSentinel)
	file := make([]byte, tableEnd)
	copy(file, "AC1015")
	le.PutUint16(file[locatorCodePageOffset:], 30)
	le.PutUint32(file[locatorTableOffset:], uint32(len(nos)))
	pos := locatorTableOffset + 4
	for _, no := range nos {
		body := sections[uint8(no)]
		file[pos] = uint8(no)
		le.PutUint32(file[pos+1:], uint32(len(file)))
		le.PutUint32(file[pos+5:], uint32(len(body)))
		file = append(file, body...)
		pos += locatorRecordSize
	}
	copy(file[pos+2:], LocatorSentinel)
	return file
}
