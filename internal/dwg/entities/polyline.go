package entities

import (
	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

// LWPOLYLINE flag bits
const (
	lwPolyNormal     = 0x001
	lwPolyThickness  = 0x002
	lwPolyConstWidth = 0x004
	lwPolyElevation  = 0x008
	lwPolyBulges     = 0x010
	lwPolyWidths     = 0x020
	lwPolyVertexIDs  = 0x400
)

// LwPolyline decodes an LWPOLYLINE record
func (d *Decoder) LwPolyline(o Object) (LwPolyline, error) {
	r, ce, err := d.begin(o)
	if err != nil {
		return LwPolyline{}, err
	}
	p := LwPolyline{Base: d.base(ce), Normal: Point3{0, 0, 1}}
	if p.Flags, err = r.ReadBS(); err != nil {
		return p, err
	}
	if p.Flags&lwPolyConstWidth != 0 {
		w, err := r.ReadBD()
		if err != nil {
			return p, err
		}
		p.ConstWidth = &w
	}
	if p.Flags&lwPolyElevation != 0 {
		if p.Elevation, err = r.ReadBD(); err != nil {
			return p, err
		}
	}
	if p.Flags&lwPolyThickness != 0 {
		if p.Thickness, err = r.ReadBD(); err != nil {
			return p, err
		}
	}
	if p.Flags&lwPolyNormal != 0 {
		if p.Normal, err = r.Read3BD(); err != nil {
			return p, err
		}
	}

	var nPoints, nBulges, nIDs, nWidths uint32
	if nPoints, err = d.count(r, "points"); err != nil {
		return p, err
	}
	if p.Flags&lwPolyBulges != 0 {
		if nBulges, err = d.count(r, "bulges"); err != nil {
			return p, err
		}
	}
	if p.Flags&lwPolyVertexIDs != 0 && d.s.LwPolyVertexIDs {
		if nIDs, err = d.count(r, "vertex ids"); err != nil {
			return p, err
		}
	}
	if p.Flags&lwPolyWidths != 0 {
		if nWidths, err = d.count(r, "widths"); err != nil {
			return p, err
		}
	}

	p.Points = make([]Point2, 0, nPoints)
	for i := range nPoints {
		var pt Point2
		if i == 0 || !d.s.CompactBodies {
			pt, err = r.Read2RD()
		} else {
			prev := p.Points[i-1]
			if pt[0], err = r.ReadDD(prev[0]); err == nil {
				pt[1], err = r.ReadDD(prev[1])
			}
		}
		if err != nil {
			return p, err
		}
		p.Points = append(p.Points, pt)
	}
	for range nBulges {
		b, err := r.ReadBD()
		if err != nil {
			return p, err
		}
		p.Bulges = append(p.Bulges, b)
	}
	for range nIDs {
		id, err := r.ReadBL()
		if err != nil {
			return p, err
		}
		p.VertexIDs = append(p.VertexIDs, id)
	}
	for range nWidths {
		w, err := r.Read2BD()
		if err != nil {
			return p, err
		}
		p.Widths = append(p.Widths, w)
	}
	p.Layer, err = d.layer(r, ce)
	return p, err
}

// count reads a BL element count and rejects counts that could not fit in
// the rest of the record at one bit per element
func (d *Decoder) count(r *bitstream.Reader, what string) (uint32, error) {
	n, err := r.ReadBL()
	if err != nil {
		return 0, err
	}
	if uint64(n) > r.Remaining() {
		return 0, dwgerr.Newf(dwgerr.KindDecode, "%s count %d exceeds record", what, n).WithOffset(r.TellBits())
	}
	return n, nil
}
