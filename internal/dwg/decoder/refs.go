package decoder

import (
	"github.com/a3tai/dwg-reader/internal/dwg/entities"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/recovery"
)

// HandleRefs are the indexed objects a record's handle stream refers to
type HandleRefs struct {
	Handle     uint64   `json:"handle"`
	Refs       []uint64 `json:"refs"`
	Confidence uint8    `json:"confidence"`
}

// AcisCandidate describes an ACIS-range record and what it refers to
type AcisCandidate struct {
	Handle     uint64   `json:"handle"`
	TypeCode   uint16   `json:"type_code"`
	DataSize   uint32   `json:"data_size"`
	Role       string   `json:"role"`
	Refs       []uint64 `json:"refs"`
	Confidence uint8    `json:"confidence"`
}

// objectsFor returns the objects of handles in the given order, skipping
// handles the index does not know. Nil handles selects every object sel
// accepts.
func (d *Decoder) objectsFor(handles []uint64, sel match) []entities.Object {
	if handles == nil {
		return d.selectObjects(sel)
	}
	out := make([]entities.Object, 0, len(handles))
	for _, h := range handles {
		if i, ok := d.byHandle[h]; ok {
			out = append(out, d.objs[i])
		}
	}
	return out
}

// HandleStreamRefs reads the references to indexed objects from the handle
// streams of the given records. Nil handles reads every record.
func (d *Decoder) HandleStreamRefs(handles []uint64) ([]HandleRefs, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	objs := d.objectsFor(handles, func(uint16) bool { return true })
	results, _ := parallelMap(d.opts.Workers, objs, func(o entities.Object) result[HandleRefs] {
		res := recovery.KnownHandleRefs(o.Record, d.strategy, o.Header, o.Handle, d.index, nil, recovery.DefaultMaxRefs)
		return ok(HandleRefs{Handle: o.Handle, Refs: res.Value, Confidence: res.Confidence}, nil)
	})
	return collect(d, results)
}

// AcisCandidateInfos classifies the given ACIS-range records and reads
// their references, typed through the index. Nil handles selects every
// record in the ACIS range.
func (d *Decoder) AcisCandidateInfos(handles []uint64) ([]AcisCandidate, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	var objs []entities.Object
	if handles != nil {
		objs = d.objectsFor(handles, nil)
	} else {
		for _, o := range d.objs {
			if objects.IsAcisCode(o.Header.TypeCode) || objects.IsAcisCode(d.kinds[o.Handle]) {
				objs = append(objs, o)
			}
		}
	}
	results, _ := parallelMap(d.opts.Workers, objs, func(o entities.Object) result[AcisCandidate] {
		res := recovery.KnownHandleRefs(o.Record, d.strategy, o.Header, o.Handle, d.index, d.raw, recovery.DefaultMaxRefs)
		return ok(AcisCandidate{
			Handle:     o.Handle,
			TypeCode:   o.Header.TypeCode,
			DataSize:   o.Header.DataSize,
			Role:       recovery.RoleHint(o.Header.TypeCode, o.Header.DataSize),
			Refs:       res.Value,
			Confidence: res.Confidence,
		}, nil)
	})
	return collect(d, results)
}
