// Package decoder decodes one drawing held in memory. A Decoder opens the
// section container, builds the object index and the per-file lookup sets
// once, then answers listing calls such as Lines or BlockHeaderNames. Every
// per-object failure goes through one dwgerr.Policy, which skips it in
// permissive mode and aborts the call in strict mode.
package decoder

import (
	"github.com/pkg/errors"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/container"
	"github.com/a3tai/dwg-reader/internal/dwg/diag"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/entities"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/objindex"
	"github.com/a3tai/dwg-reader/internal/dwg/resolve"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

const component = "decoder"

// Options configures a Decoder
type Options struct {
	Parse dwgerr.ParseOptions
	// Sink receives diagnostics. Nil discards them.
	Sink diag.Sink
	// Workers above one decode independent records in parallel. Output
	// order does not depend on it.
	Workers int
	// BlockHandleAdjacency enables the handle-adjacency fallback when
	// naming BLOCK and ENDBLK records
	BlockHandleAdjacency bool
	// SectionCache is the number of decoded sections kept in memory
	SectionCache int
	// Limit caps the rows a listing call returns; zero means no cap
	Limit int
}

// DefaultOptions returns permissive single-worker options
func DefaultOptions() Options {
	return Options{
		Parse:        dwgerr.DefaultParseOptions(),
		Sink:         diag.Nop(),
		Workers:      1,
		SectionCache: container.DefaultOptions().CacheSize,
	}
}

// Decoder decodes one file. It is not safe for concurrent use.
type Decoder struct {
	data     []byte
	opts     Options
	version  version.Version
	strategy *version.Strategy
	cont     container.Container
	policy   *dwgerr.Policy
	guard    *guard

	// entity decoder shared by sequential calls; it carries the R13/R14
	// LINE delta from record to record
	ent *entities.Decoder

	loaded  bool
	loadErr error
	index   *objindex.Index
	types   objects.DynamicTypeMap
	objs    []entities.Object
	// kinds maps handles to builtin type codes, raw to the stored codes
	kinds  map[uint64]uint16
	raw    map[uint64]uint16
	layers resolve.HandleSet
	// known extends layers with the handles LAYER records store
	known    resolve.HandleSet
	byHandle map[uint64]int
	// skipped counts records the permissive policy dropped
	skipped int

	names *resolve.Names
}

// New detects the revision of data and opens its container. Objects are
// indexed on first use.
func New(data []byte, opts Options) (*Decoder, error) {
	if opts.Sink == nil {
		opts.Sink = diag.Nop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if err := opts.Parse.Validate(); err != nil {
		return nil, err
	}
	v, err := version.Detect(data)
	if err != nil {
		return nil, err
	}
	s, err := version.Resolve(v)
	if err != nil {
		return nil, err
	}
	cont, err := container.Open(data, s, container.Options{Parse: opts.Parse, CacheSize: opts.SectionCache})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s container", v)
	}
	d := &Decoder{
		data:     data,
		opts:     opts,
		version:  v,
		strategy: s,
		cont:     cont,
		policy:   dwgerr.NewPolicy(opts.Parse),
		guard:    newGuard(opts.Sink),
		ent:      entities.NewDecoder(s, cont.CodePage()),
	}
	diag.Emitf(opts.Sink, diag.LevelInfo, component,
		diag.Fields{"version": v.String(), "sections": len(cont.Directory().Records)}, "opened drawing")
	return d, nil
}

// Version returns the detected revision
func (d *Decoder) Version() version.Version { return d.version }

// Strategy returns the layout strategy of the revision
func (d *Decoder) Strategy() *version.Strategy { return d.strategy }

// CodePage returns the code page TV strings are decoded with
func (d *Decoder) CodePage() bitstream.CodePage { return d.cont.CodePage() }

// Errors returns every error the policy has seen so far
func (d *Decoder) Errors() *dwgerr.Collection { return d.policy.Errors }

// Section is one entry of the section directory
type Section struct {
	Name   string `json:"name"`
	Offset uint64 `json:"offset"`
	Size   uint64 `json:"size"`
}

// Sections lists the section directory in file order
func (d *Decoder) Sections() []Section {
	recs := d.cont.Directory().Records
	out := make([]Section, 0, len(recs))
	for _, r := range recs {
		out = append(out, Section{Name: r.Label(), Offset: r.Offset, Size: r.Size})
	}
	return out
}

// SectionBytes returns the reconstructed bytes of a named section
func (d *Decoder) SectionBytes(name string) ([]byte, error) {
	return d.cont.SectionByName(name)
}

// ObjectMapEntries returns the object index in map order
func (d *Decoder) ObjectMapEntries() ([]objindex.ObjectRef, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	return limit(d.index.Refs(), d.opts.Limit), nil
}

// DynamicTypes returns the class-derived type names by code
func (d *Decoder) DynamicTypes() (objects.DynamicTypeMap, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	return d.types, nil
}

// ObjectHeader is the normalized header of one indexed record
type ObjectHeader struct {
	Handle   uint64 `json:"handle"`
	Offset   uint64 `json:"offset"`
	DataSize uint32 `json:"data_size"`
	TypeCode uint16 `json:"type_code"`
	TypeName string `json:"type_name"`
}

// ObjectHeaders lists the header of every record that parsed
func (d *Decoder) ObjectHeaders() ([]ObjectHeader, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	out := make([]ObjectHeader, 0, len(d.objs))
	for _, o := range d.objs {
		out = append(out, ObjectHeader{
			Handle:   o.Handle,
			Offset:   o.Record.Offset,
			DataSize: o.Header.DataSize,
			TypeCode: o.Header.TypeCode,
			TypeName: d.types.Name(o.Header.TypeCode),
		})
	}
	return limit(out, d.opts.Limit), nil
}

// load indexes the objects once. Its error is returned by every later call.
func (d *Decoder) load() error {
	if d.loaded {
		return d.loadErr
	}
	d.loaded = true
	d.loadErr = d.guard.run("load objects", d.loadObjects)
	return d.loadErr
}

func (d *Decoder) loadObjects() error {
	mapData, err := d.cont.ObjectMapData()
	if err != nil {
		return errors.Wrap(err, "object map section")
	}
	index, err := objindex.Parse(mapData, d.opts.Parse)
	if err != nil {
		return errors.Wrap(err, "object map")
	}
	objData, err := d.cont.ObjectData()
	if err != nil {
		return errors.Wrap(err, "object data")
	}
	if within := index.Within(uint64(len(objData))); within.Len() < index.Len() {
		diag.Emitf(d.opts.Sink, diag.LevelWarn, component,
			diag.Fields{"dropped": index.Len() - within.Len()}, "object offsets outside the object data")
		index = within
	}
	d.index = index

	if d.types, err = d.loadTypes(); err != nil {
		return err
	}

	parsed, err := parallelMap(d.opts.Workers, index.Refs(), func(ref objindex.ObjectRef) result[entities.Object] {
		return d.parseObject(objData, ref)
	})
	if err != nil {
		return err
	}
	d.kinds = make(map[uint64]uint16, len(parsed))
	d.raw = make(map[uint64]uint16, len(parsed))
	d.layers = make(resolve.HandleSet)
	d.byHandle = make(map[uint64]int, len(parsed))
	for _, res := range parsed {
		if res.fatal {
			return d.policy.Fatal(res.err)
		}
		outcome, err := d.policy.Decide(res.skipped, res.err)
		switch outcome {
		case dwgerr.Abort:
			return err
		case dwgerr.Skip:
			d.skipped++
			continue
		}
		o := res.value
		d.byHandle[o.Handle] = len(d.objs)
		d.objs = append(d.objs, o)
		kind := d.kind(o.Header.TypeCode)
		d.kinds[o.Handle] = kind
		d.raw[o.Handle] = o.Header.TypeCode
		if kind == objects.TypeLayer {
			d.layers[o.Handle] = struct{}{}
		}
	}
	diag.Emitf(d.opts.Sink, diag.LevelDebug, component,
		diag.Fields{"objects": len(d.objs), "skipped": d.skipped, "layers": len(d.layers)}, "indexed objects")
	return nil
}

// loadTypes builds the dynamic type map. A broken classes section leaves
// the map empty unless the decode is strict.
func (d *Decoder) loadTypes() (objects.DynamicTypeMap, error) {
	if d.strategy.Classes == version.ClassesNone {
		return objects.DynamicTypeMap{}, nil
	}
	classes, err := d.classes()
	if err != nil {
		if d.opts.Parse.Strict {
			return nil, errors.Wrap(err, "classes section")
		}
		d.policy.Errors.Add(err)
		diag.Emitf(d.opts.Sink, diag.LevelWarn, component, diag.Fields{"error": err.Error()}, "classes section unreadable")
		return objects.DynamicTypeMap{}, nil
	}
	return objects.NewDynamicTypeMap(classes, d.strategy.Classes), nil
}

func (d *Decoder) classes() ([]objects.Class, error) {
	data, err := d.cont.ClassesData()
	if err != nil {
		return nil, err
	}
	return objects.ParseClasses(data, d.strategy.Classes, d.cont.CodePage())
}

// parseObject frames and normalizes one indexed record. Framing and header
// failures are fatal in permissive mode too.
func (d *Decoder) parseObject(data []byte, ref objindex.ObjectRef) result[entities.Object] {
	rec, err := objects.ParseRecord(data, ref.Offset)
	if err != nil {
		return fatal[entities.Object](errors.Wrapf(err, "record %s", ref))
	}
	h, err := objects.ParseHeader(rec, d.strategy)
	if err != nil {
		return fatal[entities.Object](errors.Wrapf(err, "header %s", ref))
	}
	return result[entities.Object]{value: entities.Object{Handle: ref.Handle, Record: rec, Header: h}}
}

// kind maps a stored type code to its builtin code. Dynamic codes whose
// class name has no builtin code stay as they are.
func (d *Decoder) kind(code uint16) uint16 {
	if code < objects.FirstDynamicType {
		return code
	}
	if builtin, ok := objects.BuiltinCode(d.types.Name(code)); ok {
		return builtin
	}
	return code
}

func limit[T any](v []T, n int) []T {
	if n > 0 && len(v) > n {
		return v[:n]
	}
	return v
}
