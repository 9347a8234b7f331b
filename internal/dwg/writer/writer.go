package writer

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/container"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/objindex"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

// Config controls how a document is written
type Config struct {
	// Strict rejects entities that name an unknown layer instead of putting
	// them on the first layer
	Strict bool
	// PreserveHandles keeps the non-zero handles of the input
	PreserveHandles bool
}

// DefaultConfig preserves input handles and is permissive
func DefaultConfig() Config {
	return Config{PreserveHandles: true}
}

type pendingRecord struct {
	handle uint64
	data   []byte
}

// Write encodes doc. Only R2000 output is supported.
func Write(doc *Document, cfg Config) ([]byte, error) {
	if doc == nil {
		return nil, dwgerr.New(dwgerr.KindFormat, "nil document")
	}
	if doc.Version != version.R2000 {
		return nil, dwgerr.Newf(dwgerr.KindUnsupported, "writer only supports AC1015, got %s", doc.Version)
	}
	s, err := version.Resolve(doc.Version)
	if err != nil {
		return nil, err
	}
	layers := doc.Layers
	if len(layers) == 0 {
		layers = []Layer{DefaultLayer()}
	}

	handles, err := assignHandles(doc.Entities, layers, cfg)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]uint64, len(layers))
	records := make([]pendingRecord, 0, len(layers)+len(doc.Entities))
	for i, l := range layers {
		if _, dup := byName[l.Name]; dup {
			return nil, dwgerr.Newf(dwgerr.KindFormat, "duplicate layer name %q", l.Name)
		}
		h := handles.layers[i]
		byName[l.Name] = h
		data, err := encodeLayer(s, l, h)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %q", l.Name)
		}
		records = append(records, pendingRecord{handle: h, data: data})
	}
	for i, e := range doc.Entities {
		layer, err := layerHandle(byName, handles.layers[0], e.common().Layer, cfg.Strict)
		if err != nil {
			return nil, err
		}
		data, err := encodeEntity(s, e, handles.entities[i], layer)
		if err != nil {
			return nil, err
		}
		records = append(records, pendingRecord{handle: handles.entities[i], data: data})
	}

	cp := doc.CodePage
	if cp == 0 {
		cp = bitstream.DefaultCodePage
	}
	return layout(records, cp)
}

type assigned struct {
	layers   []uint64
	entities []uint64
}

// assignHandles reserves preserved handles first so that allocation never
// hands one of them out again
func assignHandles(ents []Entity, layers []Layer, cfg Config) (assigned, error) {
	a := NewHandleAllocator(FirstHandle)
	out := assigned{layers: make([]uint64, len(layers)), entities: make([]uint64, len(ents))}
	if cfg.PreserveHandles {
		for i, l := range layers {
			if l.Handle == 0 {
				continue
			}
			if err := a.Reserve(l.Handle); err != nil {
				return out, errors.Wrapf(err, "layer %q", l.Name)
			}
			out.layers[i] = l.Handle
		}
		for i, e := range ents {
			h := e.common().Handle
			if h == 0 {
				continue
			}
			if err := a.Reserve(h); err != nil {
				return out, errors.Wrapf(err, "entity %d", i)
			}
			out.entities[i] = h
		}
	}
	for _, hs := range [][]uint64{out.layers, out.entities} {
		for i := range hs {
			if hs[i] != 0 {
				continue
			}
			h, err := a.Allocate()
			if err != nil {
				return out, err
			}
			hs[i] = h
		}
	}
	return out, nil
}

func layerHandle(byName map[string]uint64, first uint64, name string, strict bool) (uint64, error) {
	if name == "" {
		return first, nil
	}
	if h, ok := byName[name]; ok {
		return h, nil
	}
	if strict {
		return 0, dwgerr.Newf(dwgerr.KindResolve, "unknown layer %q", name)
	}
	return first, nil
}

// layout places the locator, the classes section, the records in handle
// order and the object map, each on a 4-byte boundary
func layout(records []pendingRecord, cp bitstream.CodePage) ([]byte, error) {
	sortRecords(records)
	classes := encodeClasses()

	const nSections = 2
	cursor := alignUp(locatorSize(nSections), 4)
	classesAt := cursor
	cursor = alignUp(cursor+len(classes), 4)

	refs := make([]objindex.ObjectRef, len(records))
	for i, r := range records {
		refs[i] = objindex.ObjectRef{Handle: r.handle, Offset: uint64(cursor)}
		cursor += len(r.data)
	}
	cursor = alignUp(cursor, 4)
	objMap, err := EncodeObjectMap(refs)
	if err != nil {
		return nil, err
	}
	mapAt := cursor
	cursor += len(objMap)

	file := make([]byte, cursor)
	putLocator(file, version.R2000.Tag(), cp, []locatorEntry{
		{recordNo: container.RecordClasses, offset: uint32(classesAt), size: uint32(len(classes))},
		{recordNo: container.RecordHandles, offset: uint32(mapAt), size: uint32(len(objMap))},
	})
	copy(file[classesAt:], classes)
	for i, r := range records {
		copy(file[refs[i].Offset:], r.data)
	}
	copy(file[mapAt:], objMap)
	return file, nil
}

func sortRecords(records []pendingRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].handle < records[j].handle })
}
