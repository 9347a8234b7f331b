package decoder

import (
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/iter"

	"github.com/a3tai/dwg-reader/internal/dwg/diag"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/entities"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
)

// result is the outcome of decoding one object: a value, a skip that is
// not an error, or an error the policy classifies. A fatal error aborts in
// every mode.
type result[T any] struct {
	value   T
	skipped bool
	fatal   bool
	err     error
}

func ok[T any](v T, err error) result[T] {
	return result[T]{value: v, err: err}
}

func skip[T any]() result[T] {
	return result[T]{skipped: true}
}

func fatal[T any](err error) result[T] {
	return result[T]{fatal: true, err: err}
}

// parallelMap applies fn to every item with up to workers goroutines.
// Results keep the order of items.
func parallelMap[In, Out any](workers int, items []In, fn func(In) Out) ([]Out, error) {
	if workers <= 1 || len(items) < 2 {
		out := make([]Out, len(items))
		for i, it := range items {
			out[i] = fn(it)
		}
		return out, nil
	}
	m := iter.Mapper[In, Out]{MaxGoroutines: workers}
	return m.Map(items, func(it *In) Out { return fn(*it) }), nil
}

// match selects objects by builtin type code
type match func(kind uint16) bool

func is(codes ...uint16) match {
	return func(kind uint16) bool {
		for _, c := range codes {
			if kind == c {
				return true
			}
		}
		return false
	}
}

// decodeFunc decodes one object with the given entity decoder
type decodeFunc[T any] func(ed *entities.Decoder, o entities.Object) result[T]

// plain adapts a decoder method that never skips
func plain[T any](fn func(*entities.Decoder, entities.Object) (T, error)) decodeFunc[T] {
	return func(ed *entities.Decoder, o entities.Object) result[T] {
		return ok(fn(ed, o))
	}
}

// selectObjects returns the indexed objects whose builtin kind sel accepts
func (d *Decoder) selectObjects(sel match) []entities.Object {
	var out []entities.Object
	for _, o := range d.objs {
		if sel(d.kinds[o.Handle]) {
			out = append(out, o)
		}
	}
	return out
}

// decodeAll decodes every object sel accepts and applies the policy to each
// result in index order. stateless decoders may run on several workers,
// each with its own entity decoder; the others share d.ent so that what it
// learns carries from record to record.
func decodeAll[T any](d *Decoder, what string, sel match, stateless bool, fn decodeFunc[T]) ([]T, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	objs := d.selectObjects(sel)
	call := func(ed *entities.Decoder, o entities.Object) (res result[T]) {
		err := d.guard.run(what, func() error {
			res = fn(ed, o)
			return nil
		})
		if err != nil {
			res = result[T]{err: err}
		}
		if res.err != nil {
			res.err = errors.Wrapf(res.err, "%s 0x%X", what, o.Handle)
		}
		return res
	}

	var results []result[T]
	if stateless && d.opts.Workers > 1 {
		results, _ = parallelMap(d.opts.Workers, objs, func(o entities.Object) result[T] {
			return call(entities.NewDecoder(d.strategy, d.cont.CodePage()), o)
		})
	} else {
		results = make([]result[T], 0, len(objs))
		for _, o := range objs {
			results = append(results, call(d.ent, o))
		}
	}
	return collect(d, results)
}

// collect is where the policy turns per-object results into output
func collect[T any](d *Decoder, results []result[T]) ([]T, error) {
	out := make([]T, 0, len(results))
	for _, res := range results {
		if res.fatal {
			return nil, d.policy.Fatal(res.err)
		}
		outcome, err := d.policy.Decide(res.skipped, res.err)
		switch outcome {
		case dwgerr.Abort:
			return nil, err
		case dwgerr.Skip:
			if res.err != nil {
				d.skipped++
				diag.Emitf(d.opts.Sink, diag.LevelInfo, component, diag.Fields{"error": res.err.Error()}, "skipped record")
			}
			continue
		}
		out = append(out, res.value)
		if d.opts.Limit > 0 && len(out) >= d.opts.Limit {
			break
		}
	}
	return out, nil
}

func entityKind(kind uint16) bool { return objects.IsEntityCode(kind) }
