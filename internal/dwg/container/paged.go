package container

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

const (
	pagedHeaderOffset = 0x80
	pagedHeaderSize   = 0x6C

	pageMapMagic    uint32 = 0x41630E3B
	sectionMapMagic uint32 = 0x4163003B
	dataPageMagic   uint32 = 0x4163043B

	dataPageHeaderMask    uint32 = 0x4164536B
	dataPageHeaderSize           = 32
	systemHeaderSize             = 0x14
	maxSystemSectionBytes        = 64 << 20
)

// PagedHeader is the descrambled R2004 file header block
type PagedHeader struct {
	PageMapID        uint32
	PageMapAddress   uint64
	SectionMapID     uint32
	PageArraySize    uint32
	GapArraySize     uint32
	DescrambledBlock []byte
}

// PageMapEntry locates one page in the file
type PageMapEntry struct {
	ID      int32
	Size    uint32
	Address uint64
}

// SectionPage is one page backing a logical section
type SectionPage struct {
	PageID      uint32
	DataSize    uint32
	StartOffset uint64
}

// SectionInfo describes one logical section from the section map
type SectionInfo struct {
	Size            uint64
	PageCount       uint32
	MaxDecompressed uint32
	Compressed      uint32
	SectionID       uint32
	Encrypted       uint32
	Name            string
	Pages           []SectionPage
}

// headerKeystream returns the fixed XOR keystream for the header block
func headerKeystream() []byte {
	seq := make([]byte, pagedHeaderSize)
	seed := uint32(1)
	for i := range seq {
		seed = seed*0x343FD + 0x269EC3
		seq[i] = byte(seed >> 16)
	}
	return seq
}

// ScrambleHeader XORs a header block with the keystream. The operation is
// its own inverse.
func ScrambleHeader(block []byte) []byte {
	key := headerKeystream()
	out := make([]byte, len(block))
	for i := range block {
		out[i] = block[i] ^ key[i%len(key)]
	}
	return out
}

// ReadPagedHeader descrambles the header block at 0x80
func ReadPagedHeader(data []byte) (*PagedHeader, error) {
	if len(data) < pagedHeaderOffset+pagedHeaderSize {
		return nil, dwgerr.New(dwgerr.KindFormat, "file too small for R2004 header data")
	}
	block := ScrambleHeader(data[pagedHeaderOffset : pagedHeaderOffset+pagedHeaderSize])
	le := binary.LittleEndian
	return &PagedHeader{
		PageMapID:        le.Uint32(block[0x50:]),
		PageMapAddress:   le.Uint64(block[0x54:]),
		SectionMapID:     le.Uint32(block[0x5C:]),
		PageArraySize:    le.Uint32(block[0x60:]),
		GapArraySize:     le.Uint32(block[0x64:]),
		DescrambledBlock: block,
	}, nil
}

// readSystemSection reads a self-describing system page at address
func readSystemSection(data []byte, address uint64, signature uint32) ([]byte, error) {
	if address > uint64(len(data)) || uint64(len(data))-address < systemHeaderSize {
		return nil, dwgerr.New(dwgerr.KindFormat, "system section header out of range").WithOffset(address)
	}
	le := binary.LittleEndian
	head := data[address : address+systemHeaderSize]
	sig := le.Uint32(head[0:])
	decompressed := le.Uint32(head[4:])
	compressed := le.Uint32(head[8:])
	kind := le.Uint32(head[12:])
	if sig != signature {
		return nil, dwgerr.Newf(dwgerr.KindFormat, "unexpected system section signature 0x%08X", sig).WithOffset(address)
	}
	start := address + systemHeaderSize
	end := start + uint64(compressed)
	if end > uint64(len(data)) {
		return nil, dwgerr.New(dwgerr.KindFormat, "system section data out of range").WithOffset(address)
	}
	if compressed == 0 {
		return []byte{}, nil
	}
	if decompressed > maxSystemSectionBytes {
		return nil, dwgerr.Newf(dwgerr.KindFormat, "system section size %d exceeds limit", decompressed).WithOffset(address)
	}
	decomp, err := GetDecompressor(kind)
	if err != nil {
		return nil, errors.Wrap(err, "system section")
	}
	return decomp.Decompress(data[start:end], int(decompressed))
}

// ReadPageMap decodes the page map system section
func ReadPageMap(data []byte, h *PagedHeader) ([]PageMapEntry, error) {
	if h.PageMapAddress > math.MaxUint64-0x100 {
		return nil, dwgerr.New(dwgerr.KindFormat, "section page map address overflow")
	}
	raw, err := readSystemSection(data, h.PageMapAddress+0x100, pageMapMagic)
	if err != nil {
		return nil, errors.Wrap(err, "page map")
	}
	le := binary.LittleEndian
	addr := uint64(0x100)
	var entries []PageMapEntry
	for pos := 0; len(raw)-pos >= 8; {
		e := PageMapEntry{
			ID:      int32(le.Uint32(raw[pos:])),
			Size:    le.Uint32(raw[pos+4:]),
			Address: addr,
		}
		pos += 8
		addr += uint64(e.Size)
		if e.ID < 0 {
			if len(raw)-pos < 16 {
				return nil, dwgerr.New(dwgerr.KindFormat, "page map gap entry truncated")
			}
			pos += 16
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadSectionMap decodes the section map system section
func ReadSectionMap(data []byte, h *PagedHeader, pages []PageMapEntry) ([]SectionInfo, error) {
	var mapPage *PageMapEntry
	for i := range pages {
		if pages[i].ID == int32(h.SectionMapID) {
			mapPage = &pages[i]
			break
		}
	}
	if mapPage == nil {
		return nil, dwgerr.New(dwgerr.KindFormat, "section map page not found in page map")
	}
	raw, err := readSystemSection(data, mapPage.Address, sectionMapMagic)
	if err != nil {
		return nil, errors.Wrap(err, "section map")
	}
	if len(raw) < 20 {
		return nil, dwgerr.New(dwgerr.KindFormat, "section map header truncated")
	}
	le := binary.LittleEndian
	count := le.Uint32(raw[0:])
	pos := 20

	sections := make([]SectionInfo, 0, min(int(count), 64))
	for i := uint32(0); i < count; i++ {
		if len(raw)-pos < 96 {
			return nil, dwgerr.New(dwgerr.KindFormat, "section entry truncated")
		}
		s := SectionInfo{
			Size:            le.Uint64(raw[pos:]),
			PageCount:       le.Uint32(raw[pos+8:]),
			MaxDecompressed: le.Uint32(raw[pos+12:]),
			Compressed:      le.Uint32(raw[pos+20:]),
			SectionID:       le.Uint32(raw[pos+24:]),
			Encrypted:       le.Uint32(raw[pos+28:]),
			Name:            cString(raw[pos+32 : pos+96]),
		}
		pos += 96
		for p := uint32(0); p < s.PageCount; p++ {
			if len(raw)-pos < 16 {
				return nil, dwgerr.New(dwgerr.KindFormat, "section page info truncated")
			}
			s.Pages = append(s.Pages, SectionPage{
				PageID:      le.Uint32(raw[pos:]),
				DataSize:    le.Uint32(raw[pos+4:]),
				StartOffset: le.Uint64(raw[pos+8:]),
			})
			pos += 16
		}
		sections = append(sections, s)
	}
	return sections, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.ToValidUTF8(b, []byte("?")))
}

// dataPageHeader is the descrambled 32-byte header in front of each data page
type dataPageHeader struct {
	Signature      uint32
	DataType       uint32
	CompressedSize uint32
	Decompressed   uint32
	StartOffset    uint32
	HeaderChecksum uint32
	DataChecksum   uint32
	Unknown        uint32
}

// ScrambleDataPageHeader XORs a 32-byte page header with the address mask.
// The operation is its own inverse.
func ScrambleDataPageHeader(head []byte, address uint64) []byte {
	mask := dataPageHeaderMask ^ uint32(address)
	out := make([]byte, len(head))
	for i := 0; i+4 <= len(head); i += 4 {
		binary.LittleEndian.PutUint32(out[i:], binary.LittleEndian.Uint32(head[i:])^mask)
	}
	return out
}

func readDataPageHeader(data []byte, address uint64) (dataPageHeader, error) {
	if address > uint64(len(data)) || uint64(len(data))-address < dataPageHeaderSize {
		return dataPageHeader{}, dwgerr.New(dwgerr.KindFormat, "data section header out of range").WithOffset(address)
	}
	head := ScrambleDataPageHeader(data[address:address+dataPageHeaderSize], address)
	le := binary.LittleEndian
	h := dataPageHeader{
		Signature:      le.Uint32(head[0:]),
		DataType:       le.Uint32(head[4:]),
		CompressedSize: le.Uint32(head[8:]),
		Decompressed:   le.Uint32(head[12:]),
		StartOffset:    le.Uint32(head[16:]),
		HeaderChecksum: le.Uint32(head[20:]),
		DataChecksum:   le.Uint32(head[24:]),
		Unknown:        le.Uint32(head[28:]),
	}
	if h.Signature != dataPageMagic {
		return dataPageHeader{}, dwgerr.Newf(dwgerr.KindFormat, "invalid data section signature 0x%08X", h.Signature).WithOffset(address)
	}
	return h, nil
}

// LoadSection reassembles one logical section from its pages. Each page is
// expanded into a slot of MaxDecompressed bytes; the result is then cut or
// zero padded to the declared section size.
func LoadSection(data []byte, s *SectionInfo, pages map[uint32]PageMapEntry, maxBytes uint64) ([]byte, error) {
	if s.Encrypted == 1 {
		return nil, dwgerr.Newf(dwgerr.KindUnsupported, "encrypted R2004 section %q is not supported", s.Name)
	}
	slot := uint64(s.MaxDecompressed)
	if len(s.Pages) > 0 && slot > math.MaxUint64/uint64(len(s.Pages)) {
		return nil, dwgerr.New(dwgerr.KindFormat, "section size overflow")
	}
	total := slot * uint64(len(s.Pages))
	if total > maxBytes {
		return nil, dwgerr.Newf(dwgerr.KindFormat, "section size %d exceeds limit %d", total, maxBytes)
	}
	if total == 0 {
		return []byte{}, nil
	}
	out := make([]byte, total)

	decomp, err := GetDecompressor(s.Compressed)
	if err != nil {
		return nil, errors.Wrapf(err, "section %q", s.Name)
	}
	for i, p := range s.Pages {
		entry, ok := pages[p.PageID]
		if !ok {
			return nil, dwgerr.Newf(dwgerr.KindFormat, "section page %d not found in page map", p.PageID)
		}
		head, err := readDataPageHeader(data, entry.Address)
		if err != nil {
			return nil, errors.Wrapf(err, "section %q page %d", s.Name, i)
		}
		start := entry.Address + dataPageHeaderSize
		end := start + uint64(head.CompressedSize)
		if end > uint64(len(data)) {
			return nil, dwgerr.New(dwgerr.KindFormat, "data section data out of range").WithOffset(entry.Address)
		}
		page, err := decomp.Decompress(data[start:end], int(s.MaxDecompressed))
		if err != nil {
			return nil, errors.Wrapf(err, "section %q page %d", s.Name, i)
		}
		at := uint64(i) * slot
		copy(out[at:], page)
	}

	if s.Size > 0 && s.Size != total {
		if s.Size > maxBytes {
			return nil, dwgerr.Newf(dwgerr.KindFormat, "section size %d exceeds limit %d", s.Size, maxBytes)
		}
		if s.Size < total {
			return out[:s.Size], nil
		}
		return append(out, make([]byte, s.Size-total)...), nil
	}
	return out, nil
}

// recordNoForName maps well-known section names to locator record numbers
func recordNoForName(name string) uint8 {
	switch name {
	case SectionHeader:
		return 0
	case SectionClasses:
		return 1
	case SectionHandles:
		return 2
	case SectionTemplate:
		return 4
	default:
		return 255
	}
}
