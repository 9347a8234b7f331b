package decoder

import (
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/entities"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/resolve"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

// decoded pairs a value with the object it came from
type decoded[T any] struct {
	obj   entities.Object
	value T
}

func withObject[T any](fn func(*entities.Decoder, entities.Object) (T, error)) decodeFunc[decoded[T]] {
	return func(ed *entities.Decoder, o entities.Object) result[decoded[T]] {
		v, err := fn(ed, o)
		return ok(decoded[T]{obj: o, value: v}, err)
	}
}

// namePipeline builds the block naming pipeline once per Decoder
func (d *Decoder) namePipeline() (*resolve.Names, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	if d.names != nil {
		return d.names, nil
	}
	d.names = resolve.NewNames(resolve.File{
		Strategy:  d.strategy,
		Decoder:   entities.NewDecoder(d.strategy, d.cont.CodePage()),
		Objects:   d.objs,
		Kind:      d.kind,
		Layers:    d.knownLayers(),
		Types:     d.kinds,
		Sink:      d.opts.Sink,
		Adjacency: d.opts.BlockHandleAdjacency,
	})
	return d.names, nil
}

// knownLayers holds the indexed LAYER handles and the handles the LAYER
// records store for themselves
func (d *Decoder) knownLayers() resolve.HandleSet {
	if d.known != nil {
		return d.known
	}
	set := make(resolve.HandleSet, len(d.layers))
	ed := entities.NewDecoder(d.strategy, d.cont.CodePage())
	for h := range d.layers {
		set[h] = struct{}{}
	}
	for _, o := range d.selectObjects(is(objects.TypeLayer)) {
		var l entities.Layer
		err := d.guard.run("LAYER", func() (err error) {
			l, err = ed.Layer(o)
			return err
		})
		if err == nil && l.Handle != 0 {
			set[l.Handle] = struct{}{}
		}
	}
	d.known = set
	return set
}

// BlockHeaderNames lists the named BLOCK_HEADER handles and their aliases
func (d *Decoder) BlockHeaderNames() ([]resolve.HeaderName, error) {
	n, err := d.namePipeline()
	if err != nil {
		return nil, err
	}
	var out []resolve.HeaderName
	err = d.guard.run("block header names", func() error {
		out = n.HeaderNames()
		return nil
	})
	return limit(out, d.opts.Limit), err
}

// BlockEntityNames names every BLOCK and ENDBLK record
func (d *Decoder) BlockEntityNames() ([]resolve.BlockEntityName, error) {
	n, err := d.namePipeline()
	if err != nil {
		return nil, err
	}
	var out []resolve.BlockEntityName
	err = d.guard.run("block entity names", func() error {
		out = n.BlockEntities()
		return nil
	})
	return limit(out, d.opts.Limit), err
}

// NamedInsert is an INSERT with its resolved block. BlockName is optional:
// it is empty, and omitted from JSON, when neither pass found a name.
type NamedInsert struct {
	entities.Insert
	BlockName      string `json:"block_name,omitempty"`
	NameConfidence uint8  `json:"name_confidence"`
	NamePass       int    `json:"name_pass"`
}

// NamedMInsert is a MINSERT with its resolved block
type NamedMInsert struct {
	entities.MInsert
	BlockName      string `json:"block_name,omitempty"`
	NameConfidence uint8  `json:"name_confidence"`
	NamePass       int    `json:"name_pass"`
}

// Inserts decodes every INSERT and resolves the block it places
func (d *Decoder) Inserts() ([]NamedInsert, error) {
	rows, err := decodeAll(d, "INSERT", is(objects.TypeInsert), true, withObject((*entities.Decoder).Insert))
	if err != nil {
		return nil, err
	}
	names, err := d.nameInserts(len(rows), func(i int) (entities.Object, *entities.Insert) {
		return rows[i].obj, &rows[i].value
	})
	if err != nil {
		return nil, err
	}
	out := make([]NamedInsert, len(rows))
	for i, r := range rows {
		out[i] = NamedInsert{Insert: r.value, BlockName: names[i].Name, NameConfidence: names[i].Confidence, NamePass: names[i].Pass}
	}
	return out, nil
}

// MInserts decodes every MINSERT and resolves the block it places
func (d *Decoder) MInserts() ([]NamedMInsert, error) {
	rows, err := decodeAll(d, "MINSERT", is(objects.TypeMInsert), true, withObject((*entities.Decoder).MInsert))
	if err != nil {
		return nil, err
	}
	names, err := d.nameInserts(len(rows), func(i int) (entities.Object, *entities.Insert) {
		return rows[i].obj, &rows[i].value.Insert
	})
	if err != nil {
		return nil, err
	}
	out := make([]NamedMInsert, len(rows))
	for i, r := range rows {
		out[i] = NamedMInsert{MInsert: r.value, BlockName: names[i].Name, NameConfidence: names[i].Confidence, NamePass: names[i].Pass}
	}
	return out, nil
}

// nameInserts runs the two naming passes over n decoded inserts and writes
// recovered block references back into them
func (d *Decoder) nameInserts(n int, at func(i int) (entities.Object, *entities.Insert)) ([]resolve.InsertName, error) {
	pipeline, err := d.namePipeline()
	if err != nil {
		return nil, err
	}
	refs := make([]resolve.InsertRef, n)
	for i := range n {
		o, ins := at(i)
		refs[i] = resolve.InsertRef{Object: o}
		if ins.BlockHeader != nil {
			refs[i].Parsed = *ins.BlockHeader
		}
	}
	var names []resolve.InsertName
	if err := d.guard.run("insert names", func() error {
		names = pipeline.Inserts(refs)
		return nil
	}); err != nil {
		return nil, err
	}
	for i, name := range names {
		_, ins := at(i)
		if name.BlockHeader == 0 || name.BlockHeader == refs[i].Parsed {
			continue
		}
		bh := name.BlockHeader
		ins.BlockHeader = &bh
		ins.Recovered = true
	}
	return names, nil
}

// NameStats returns the counters of the block naming pipeline
func (d *Decoder) NameStats() (resolve.Stats, error) {
	n, err := d.namePipeline()
	if err != nil {
		return resolve.Stats{}, err
	}
	return n.Stats(), nil
}

// EntityLayer is the layer of one entity
type EntityLayer struct {
	Handle     uint64 `json:"handle"`
	TypeName   string `json:"type_name"`
	Layer      uint64 `json:"layer"`
	Recovered  bool   `json:"recovered,omitempty"`
	Confidence uint8  `json:"confidence"`
}

// EntityLayers lists the layer of every entity. On split-stream revisions
// the layer reference is recovered from the handle stream.
func (d *Decoder) EntityLayers() ([]EntityLayer, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	layers := d.knownLayers()
	return decodeAll(d, "entity layer", entityKind, true, func(ed *entities.Decoder, o entities.Object) result[EntityLayer] {
		s := ed.Strategy()
		parsed, err := parsedLayer(s, o)
		if err != nil {
			return result[EntityLayer]{err: err}
		}
		res := resolve.EntityLayer(s, o, parsed, layers)
		return ok(EntityLayer{
			Handle:     o.Handle,
			TypeName:   d.types.Name(o.Header.TypeCode),
			Layer:      res.Value,
			Recovered:  res.Value != parsed,
			Confidence: res.Confidence,
		}, nil)
	})
}

// parsedLayer reads the layer reference through the canonical layout. A
// handle stream that cannot be read yields zero on revisions that tolerate
// it.
func parsedLayer(s *version.Strategy, o entities.Object) (uint64, error) {
	r := o.Reader()
	ce, err := entities.ReadCommonEntity(r, s, o.Header, 0)
	if err != nil {
		return 0, dwgerr.Wrap(dwgerr.KindDecode, err, "common entity header")
	}
	if s.SplitStreams || ce.Handle == 0 {
		ce.Handle = o.Handle
	}
	if !ce.HasHandleStart {
		return 0, nil
	}
	r.SetBitPos(ce.HandleStart)
	ch, err := entities.ReadCommonHandles(r, s, ce, true)
	if err != nil {
		if s.TolerateHandleErrors {
			return 0, nil
		}
		return 0, dwgerr.Wrap(dwgerr.KindDecode, err, "common entity handles")
	}
	return ch.Layer, nil
}
