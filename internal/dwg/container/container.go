// Package container locates and reconstructs the logical sections of a
// drawing file.
package container

import (
	"encoding/binary"
	"strconv"

	"github.com/pkg/errors"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

// Container gives access to the sections of one file
type Container interface {
	Kind() version.ContainerKind
	Directory() Directory
	CodePage() bitstream.CodePage
	SectionByName(name string) ([]byte, error)
	SectionByIndex(i int) ([]byte, error)
	// ObjectData returns the buffer object index offsets point into
	ObjectData() ([]byte, error)
	ObjectMapData() ([]byte, error)
	ClassesData() ([]byte, error)
	CacheStats() CacheStats
}

// Options configures section loading
type Options struct {
	Parse     dwgerr.ParseOptions
	CacheSize int
}

// DefaultOptions returns the default container options
func DefaultOptions() Options {
	return Options{Parse: dwgerr.DefaultParseOptions(), CacheSize: 8}
}

type opener func(data []byte, opts Options) (Container, error)

var openers = map[version.ContainerKind]opener{
	version.ContainerLocator: openLocator,
	version.ContainerPaged:   openPaged,
}

// Open builds the container for a resolved strategy
func Open(data []byte, s *version.Strategy, opts Options) (Container, error) {
	open, ok := openers[s.Container]
	if !ok || !s.Supported {
		return nil, dwgerr.Newf(dwgerr.KindUnsupported, "%s container (%s) is not supported", s.Container, s.Version)
	}
	return open(data, opts)
}

func readCodePage(data []byte) bitstream.CodePage {
	if len(data) < locatorCodePageOffset+2 {
		return bitstream.DefaultCodePage
	}
	return bitstream.CodePage(binary.LittleEndian.Uint16(data[locatorCodePageOffset:]))
}

type locatorContainer struct {
	data []byte
	dir  Directory
	opts Options
}

func openLocator(data []byte, opts Options) (Container, error) {
	dir, err := ReadLocatorDirectory(data)
	if err != nil {
		return nil, err
	}
	return &locatorContainer{data: data, dir: dir, opts: opts}, nil
}

func (c *locatorContainer) Kind() version.ContainerKind  { return version.ContainerLocator }
func (c *locatorContainer) Directory() Directory         { return c.dir }
func (c *locatorContainer) CodePage() bitstream.CodePage { return readCodePage(c.data) }
func (c *locatorContainer) CacheStats() CacheStats       { return CacheStats{} }

func (c *locatorContainer) SectionByIndex(i int) ([]byte, error) {
	if i < 0 || i >= len(c.dir.Records) {
		return nil, dwgerr.Newf(dwgerr.KindFormat, "section index %d out of range", i)
	}
	return sliceRecord(c.data, c.dir.Records[i], c.opts.Parse.MaxSectionBytes)
}

func (c *locatorContainer) SectionByName(name string) ([]byte, error) {
	i, ok := c.dir.Find(name)
	if !ok {
		return nil, dwgerr.Newf(dwgerr.KindFormat, "section not found: %s", name)
	}
	return c.SectionByIndex(i)
}

// ObjectData is the whole file: locator object offsets are file-absolute
func (c *locatorContainer) ObjectData() ([]byte, error) {
	return c.data, nil
}

func (c *locatorContainer) ObjectMapData() ([]byte, error) {
	return c.SectionByName(SectionHandles)
}

func (c *locatorContainer) ClassesData() ([]byte, error) {
	return c.SectionByName(SectionClasses)
}

type pagedContainer struct {
	data     []byte
	header   *PagedHeader
	pages    map[uint32]PageMapEntry
	sections []SectionInfo
	dir      Directory
	cache    *SectionCache
	opts     Options
}

func openPaged(data []byte, opts Options) (Container, error) {
	header, err := ReadPagedHeader(data)
	if err != nil {
		return nil, err
	}
	pageList, err := ReadPageMap(data, header)
	if err != nil {
		return nil, err
	}
	sections, err := ReadSectionMap(data, header, pageList)
	if err != nil {
		return nil, err
	}
	pages := make(map[uint32]PageMapEntry, len(pageList))
	for _, p := range pageList {
		if p.ID > 0 {
			pages[uint32(p.ID)] = p
		}
	}

	dir := Directory{Records: make([]SectionRecord, 0, len(sections)), SentinelOK: true}
	for _, s := range sections {
		var offset uint64
		if len(s.Pages) > 0 {
			offset = pages[s.Pages[0].PageID].Address
		}
		dir.Records = append(dir.Records, SectionRecord{
			RecordNo: recordNoForName(s.Name),
			Name:     s.Name,
			Offset:   offset,
			Size:     s.Size,
		})
	}
	return &pagedContainer{
		data:     data,
		header:   header,
		pages:    pages,
		sections: sections,
		dir:      dir,
		cache:    NewSectionCache(opts.CacheSize),
		opts:     opts,
	}, nil
}

func (c *pagedContainer) Kind() version.ContainerKind  { return version.ContainerPaged }
func (c *pagedContainer) Directory() Directory         { return c.dir }
func (c *pagedContainer) CodePage() bitstream.CodePage { return readCodePage(c.data) }
func (c *pagedContainer) CacheStats() CacheStats       { return c.cache.Stats() }

// Sections returns the raw section map entries
func (c *pagedContainer) Sections() []SectionInfo { return c.sections }

func (c *pagedContainer) SectionByIndex(i int) ([]byte, error) {
	if i < 0 || i >= len(c.sections) {
		return nil, dwgerr.Newf(dwgerr.KindFormat, "section index %d out of range", i)
	}
	s := &c.sections[i]
	// names may repeat or be empty, so the index is part of the key
	key := strconv.Itoa(i) + ":" + s.Name
	return c.cache.GetOrLoad(key, func() ([]byte, error) {
		data, err := LoadSection(c.data, s, c.pages, c.opts.Parse.MaxSectionBytes)
		if err != nil {
			return nil, errors.Wrapf(err, "load section %q", s.Name)
		}
		return data, nil
	})
}

func (c *pagedContainer) SectionByName(name string) ([]byte, error) {
	i, ok := c.dir.Find(name)
	if !ok {
		return nil, dwgerr.Newf(dwgerr.KindFormat, "section not found: %s", name)
	}
	return c.SectionByIndex(i)
}

func (c *pagedContainer) ObjectData() ([]byte, error) {
	return c.SectionByName(SectionObjects)
}

func (c *pagedContainer) ObjectMapData() ([]byte, error) {
	return c.SectionByName(SectionHandles)
}

func (c *pagedContainer) ClassesData() ([]byte, error) {
	return c.SectionByName(SectionClasses)
}
