package entities

import "github.com/a3tai/dwg-reader/internal/dwg/bitstream"

// maxAcisRefs caps the references read after the common handle block
const maxAcisRefs = 8

// Acis decodes the handle side of a 3DSOLID, REGION or BODY record. The
// modeler data is skipped; the references that follow the common handles
// are returned with the layer filtered out.
func (d *Decoder) Acis(o Object) (Acis, error) {
	r, ce, err := d.begin(o)
	if err != nil {
		return Acis{}, err
	}
	a := Acis{Base: d.base(ce), TypeCode: o.Header.TypeCode}
	hr, ch, ok, err := d.handles(r, ce, false)
	if err != nil {
		return a, err
	}
	a.Layer = ch.Layer
	if !ok {
		return a, nil
	}
	for _, h := range hr.ReadHandles(ce.Handle, bitstream.Absolute, maxAcisRefs, o.Record.BitLen()) {
		if h != 0 && h != ch.Layer {
			a.Refs = append(a.Refs, h)
		}
	}
	return a, nil
}
