package container

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

func TestDecompressR18(t *testing.T) {
	stream := []byte{0x01, 'A', 'B', 'C', 'D', 0x9C, 0x00, 0x11}

	out, err := DecompressR18(stream, 12)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABCDABCDABCD"), out)

	padded, err := DecompressR18(stream, 16)
	require.NoError(t, err)
	assert.Equal(t, append([]byte("ABCDABCDABCD"), 0, 0, 0, 0), padded)

	short, err := DecompressR18(stream, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABCDAB"), short)
}

func TestDecompressR18InvalidOpcode(t *testing.T) {
	_, err := DecompressR18([]byte{0x01, 'A', 'B', 'C', 'D', 0x05}, 8)
	require.Error(t, err)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindFormat))
}

func TestDecompressR18Truncated(t *testing.T) {
	_, err := DecompressR18([]byte{0x05, 'A'}, 8)
	require.Error(t, err)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindDecode))
}

func TestDecompressR18LongLiteral(t *testing.T) {
	raw := make([]byte, 300)
	for i := range raw {
		raw[i] = byte(i)
	}
	out, err := DecompressR18(lzLiteral(raw), len(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestGetDecompressor(t *testing.T) {
	d, err := GetDecompressor(CompressionLZ)
	require.NoError(t, err)
	assert.Equal(t, "lz-r18", d.Name())

	for _, kind := range []uint32{CompressionUnset, CompressionNone} {
		d, err = GetDecompressor(kind)
		require.NoError(t, err)
		assert.Equal(t, "none", d.Name())
	}

	_, err = GetDecompressor(7)
	require.Error(t, err)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindUnsupported))
}

func TestPagedUnknownCompression(t *testing.T) {
	data := buildPagedFile([]fixtureSection{
		{name: SectionHeader, payload: []byte("ABCD"), maxDecomp: 4, compression: 9},
	})
	s, err := version.Resolve(version.R2004)
	require.NoError(t, err)
	c, err := Open(data, s, DefaultOptions())
	require.NoError(t, err)

	_, err = c.SectionByName(SectionHeader)
	require.Error(t, err)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindUnsupported))
	assert.False(t, dwgerr.IsRecoverable(err))
}

func TestHeaderScrambleRoundTrip(t *testing.T) {
	block := make([]byte, pagedHeaderSize)
	binary.LittleEndian.PutUint32(block[0x50:], 7)
	binary.LittleEndian.PutUint64(block[0x54:], 0x1234)
	scrambled := ScrambleHeader(block)
	assert.NotEqual(t, block, scrambled)
	assert.Equal(t, block, ScrambleHeader(scrambled))
}

func TestOpenPaged(t *testing.T) {
	data := buildPagedFile([]fixtureSection{
		{name: SectionHeader, payload: []byte("HDR!"), maxDecomp: 4},
		{name: SectionObjects, payload: []byte("OBJECTS!"), maxDecomp: 16, compressed: true},
	})
	s, err := version.Resolve(version.R2004)
	require.NoError(t, err)

	c, err := Open(data, s, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, version.ContainerPaged, c.Kind())
	assert.Equal(t, bitstream.CodePage(30), c.CodePage())

	dir := c.Directory()
	require.Len(t, dir.Records, 2)
	assert.Equal(t, SectionHeader, dir.Records[0].Name)
	assert.Equal(t, uint8(0), dir.Records[0].RecordNo)
	assert.Equal(t, uint8(255), dir.Records[1].RecordNo)
	assert.Equal(t, uint64(0x100), dir.Records[0].Offset)

	hdr, err := c.SectionByName(SectionHeader)
	require.NoError(t, err)
	assert.Equal(t, []byte("HDR!"), hdr)

	objs, err := c.ObjectData()
	require.NoError(t, err)
	assert.Equal(t, append([]byte("OBJECTS!"), make([]byte, 8)...), objs)

	_, err = c.ObjectData()
	require.NoError(t, err)
	stats := c.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 2, stats.Size)

	_, err = c.SectionByName("AcDb:Missing")
	require.Error(t, err)
}

func TestPagedSectionDeclaredSize(t *testing.T) {
	data := buildPagedFile([]fixtureSection{
		{name: SectionHeader, payload: []byte("ABCD"), maxDecomp: 4, size: 2},
		{name: SectionClasses, payload: []byte("ABCD"), maxDecomp: 4, size: 6},
	})
	s, err := version.Resolve(version.R2004)
	require.NoError(t, err)
	c, err := Open(data, s, DefaultOptions())
	require.NoError(t, err)

	hdr, err := c.SectionByName(SectionHeader)
	require.NoError(t, err)
	assert.Equal(t, []byte("AB"), hdr)

	classes, err := c.ClassesData()
	require.NoError(t, err)
	assert.Equal(t, []byte{'A', 'B', 'C', 'D', 0, 0}, classes)
}

func TestPagedDuplicateSectionNames(t *testing.T) {
	data := buildPagedFile([]fixtureSection{
		{name: "", payload: []byte("AAAA"), maxDecomp: 4},
		{name: "", payload: []byte("BBBB"), maxDecomp: 4},
	})
	s, err := version.Resolve(version.R2004)
	require.NoError(t, err)
	c, err := Open(data, s, DefaultOptions())
	require.NoError(t, err)

	first, err := c.SectionByIndex(0)
	require.NoError(t, err)
	second, err := c.SectionByIndex(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("AAAA"), first)
	assert.Equal(t, []byte("BBBB"), second)

	again, err := c.SectionByIndex(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("BBBB"), again)
	assert.Equal(t, int64(1), c.CacheStats().Hits)
	assert.Equal(t, 2, c.CacheStats().Size)
}

func TestPagedEncryptedSection(t *testing.T) {
	data := buildPagedFile([]fixtureSection{
		{name: SectionHandles, payload: []byte("ABCD"), maxDecomp: 4, encrypted: 1},
	})
	s, err := version.Resolve(version.R2004)
	require.NoError(t, err)
	c, err := Open(data, s, DefaultOptions())
	require.NoError(t, err)

	_, err = c.ObjectMapData()
	require.Error(t, err)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindUnsupported))
	assert.False(t, dwgerr.IsRecoverable(err))
}

func TestPagedSectionLimit(t *testing.T) {
	data := buildPagedFile([]fixtureSection{
		{name: SectionHeader, payload: []byte("ABCD"), maxDecomp: 64},
	})
	s, err := version.Resolve(version.R2004)
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.Parse.MaxSectionBytes = 32
	c, err := Open(data, s, opts)
	require.NoError(t, err)

	_, err = c.SectionByIndex(0)
	require.Error(t, err)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindFormat))
}

func TestOpenPagedTooSmall(t *testing.T) {
	s, err := version.Resolve(version.R2004)
	require.NoError(t, err)
	_, err = Open([]byte("AC1018"), s, DefaultOptions())
	require.Error(t, err)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindFormat))
}

func TestOpenLocator(t *testing.T) {
	data := buildLocatorFile(map[uint8][]byte{
		0: []byte("header"),
		1: []byte("classes"),
		2: []byte("handles"),
	})
	s, err := version.Resolve(version.R2000)
	require.NoError(t, err)

	c, err := Open(data, s, DefaultOptions())
	require.NoError(t, err)
	dir := c.Directory()
	assert.True(t, dir.SentinelOK)
	require.Len(t, dir.Records, 3)
	assert.Equal(t, SectionClasses, dir.Records[1].Name)

	classes, err := c.ClassesData()
	require.NoError(t, err)
	assert.Equal(t, []byte("classes"), classes)

	handles, err := c.ObjectMapData()
	require.NoError(t, err)
	assert.Equal(t, []byte("handles"), handles)

	objs, err := c.ObjectData()
	require.NoError(t, err)
	assert.Len(t, objs, len(data))
}

func TestLocatorRecordOutOfRange(t *testing.T) {
	data := buildLocatorFile(map[uint8][]byte{0: []byte("header")})
	// point record 0 past the end of the file
	binary.LittleEndian.PutUint32(data[locatorTableOffset+4+1:], uint32(len(data)))

	dir, err := ReadLocatorDirectory(data)
	require.NoError(t, err)
	_, err = sliceRecord(data, dir.Records[0], 1<<20)
	require.Error(t, err)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindFormat))
}

func TestLocatorUnnamedRecordLabel(t *testing.T) {
	data := buildLocatorFile(map[uint8][]byte{3: []byte("x")})
	dir, err := ReadLocatorDirectory(data)
	require.NoError(t, err)
	assert.Equal(t, "record3", dir.Records[0].Label())
	_, ok := dir.FindRecordNo(3)
	assert.True(t, ok)
}

func TestOpenR2007Unsupported(t *testing.T) {
	s, err := version.Resolve(version.R2007)
	require.NoError(t, err)
	_, err = Open(make([]byte, 0x200), s, DefaultOptions())
	require.Error(t, err)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindUnsupported))
}

func TestSectionCache(t *testing.T) {
	cache := NewSectionCache(1)
	loads := 0
	load := func() ([]byte, error) {
		loads++
		return []byte{1}, nil
	}

	_, err := cache.GetOrLoad("a", load)
	require.NoError(t, err)
	_, err = cache.GetOrLoad("a", load)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)

	_, err = cache.GetOrLoad("b", load)
	require.NoError(t, err)
	_, err = cache.GetOrLoad("a", load)
	require.NoError(t, err)
	assert.Equal(t, 3, loads)

	stats := cache.Stats()
	assert.Equal(t, CacheStats{Capacity: 1, Size: 1, Hits: 1, Misses: 3}, stats)

	cache.Purge()
	assert.Equal(t, 0, cache.Stats().Size)
}

func TestSectionCacheDoesNotStoreErrors(t *testing.T) {
	cache := NewSectionCache(0)
	_, err := cache.GetOrLoad("a", func() ([]byte, error) {
		return nil, dwgerr.New(dwgerr.KindDecode, "boom")
	})
	require.Error(t, err)
	assert.Equal(t, 0, cache.Stats().Size)
	assert.Equal(t, 8, cache.Stats().Capacity)
}
