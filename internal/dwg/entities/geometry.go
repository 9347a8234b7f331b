package entities

import (
	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/recovery"
)

// maxPlausibleCoord bounds coordinates of a directly decoded LINE
const maxPlausibleCoord = 1e8

// lineBody is the geometric part of a LINE record
type lineBody struct {
	start, end Point3
	thickness  float64
	extrusion  Point3
}

// readLineCompact reads the R2000+ form: a z-is-zero flag, then raw start
// values each followed by the end value as a DD against it.
func readLineCompact(r *bitstream.Reader) (lineBody, error) {
	var b lineBody
	zZero, err := r.ReadB()
	if err != nil {
		return b, err
	}
	if b.start[0], err = r.ReadRD(); err != nil {
		return b, err
	}
	if b.end[0], err = r.ReadDD(b.start[0]); err != nil {
		return b, err
	}
	if b.start[1], err = r.ReadRD(); err != nil {
		return b, err
	}
	if b.end[1], err = r.ReadDD(b.start[1]); err != nil {
		return b, err
	}
	if zZero == 0 {
		if b.start[2], err = r.ReadRD(); err != nil {
			return b, err
		}
		if b.end[2], err = r.ReadDD(b.start[2]); err != nil {
			return b, err
		}
	}
	return b, readThicknessExtrusion(r, &b)
}

// readLineRaw reads all three coordinate pairs as RD/DD without the z flag
func readLineRaw(r *bitstream.Reader) (lineBody, error) {
	var b lineBody
	var err error
	for i := 0; i < 3; i++ {
		if b.start[i], err = r.ReadRD(); err != nil {
			return b, err
		}
		if b.end[i], err = r.ReadDD(b.start[i]); err != nil {
			return b, err
		}
	}
	return b, readThicknessExtrusion(r, &b)
}

// readLine3BD reads the R13/R14 form of two 3BD points
func readLine3BD(r *bitstream.Reader) (lineBody, error) {
	var b lineBody
	var err error
	if b.start, err = r.Read3BD(); err != nil {
		return b, err
	}
	if b.end, err = r.Read3BD(); err != nil {
		return b, err
	}
	return b, readThicknessExtrusion(r, &b)
}

func readThicknessExtrusion(r *bitstream.Reader, b *lineBody) error {
	var err error
	if b.thickness, err = r.ReadBT(); err != nil {
		return err
	}
	b.extrusion, err = r.ReadBE()
	return err
}

func (b lineBody) plausible() bool {
	vals := []float64{b.start[0], b.start[1], b.start[2], b.end[0], b.end[1], b.end[2]}
	return recovery.Finite(vals...) && recovery.MaxAbs(vals...) <= maxPlausibleCoord
}

func (b lineBody) entity(base Base) Line {
	return Line{Base: base, Start: b.start, End: b.end, Thickness: b.thickness, Extrusion: b.extrusion}
}

// Line decodes a LINE record. R13/R14 records that do not decode to
// plausible geometry under either body layout fall back to a bit scan.
func (d *Decoder) Line(o Object) (Line, error) {
	if d.s.CompactBodies {
		r, ce, err := d.begin(o)
		if err != nil {
			return Line{}, err
		}
		body, err := readLineCompact(r)
		if err != nil {
			return Line{}, err
		}
		line := body.entity(d.base(ce))
		line.Layer, err = d.layer(r, ce)
		return line, err
	}

	for _, read := range []func(*bitstream.Reader) (lineBody, error){readLine3BD, readLineCompact} {
		r, ce, err := d.begin(o)
		if err != nil {
			break
		}
		body, err := read(r)
		if err != nil || !body.plausible() {
			continue
		}
		line := body.entity(d.base(ce))
		if line.Layer, err = d.layer(r, ce); err != nil {
			continue
		}
		return line, nil
	}
	return d.scanLine(o)
}

// Point decodes a POINT record
func (d *Decoder) Point(o Object) (Point, error) {
	r, ce, err := d.begin(o)
	if err != nil {
		return Point{}, err
	}
	p := Point{Base: d.base(ce)}
	if p.Location, err = r.Read3BD(); err != nil {
		return p, err
	}
	if p.Thickness, err = r.ReadBT(); err != nil {
		return p, err
	}
	if p.Extrusion, err = r.ReadBE(); err != nil {
		return p, err
	}
	if p.XAxisAng, err = r.ReadBD(); err != nil {
		return p, err
	}
	p.Layer, err = d.layer(r, ce)
	return p, err
}

// Arc decodes an ARC record
func (d *Decoder) Arc(o Object) (Arc, error) {
	r, ce, err := d.begin(o)
	if err != nil {
		return Arc{}, err
	}
	a := Arc{Base: d.base(ce)}
	if a.Center, err = r.Read3BD(); err != nil {
		return a, err
	}
	if a.Radius, err = r.ReadBD(); err != nil {
		return a, err
	}
	if a.Thickness, err = r.ReadBT(); err != nil {
		return a, err
	}
	if a.Extrusion, err = r.ReadBE(); err != nil {
		return a, err
	}
	if a.StartAngle, err = r.ReadBD(); err != nil {
		return a, err
	}
	if a.EndAngle, err = r.ReadBD(); err != nil {
		return a, err
	}
	a.Layer, err = d.layer(r, ce)
	return a, err
}

// Circle decodes a CIRCLE record
func (d *Decoder) Circle(o Object) (Circle, error) {
	r, ce, err := d.begin(o)
	if err != nil {
		return Circle{}, err
	}
	c := Circle{Base: d.base(ce)}
	if c.Center, err = r.Read3BD(); err != nil {
		return c, err
	}
	if c.Radius, err = r.ReadBD(); err != nil {
		return c, err
	}
	if c.Thickness, err = r.ReadBT(); err != nil {
		return c, err
	}
	if c.Extrusion, err = r.ReadBE(); err != nil {
		return c, err
	}
	c.Layer, err = d.layer(r, ce)
	return c, err
}

// Ellipse decodes an ELLIPSE record
func (d *Decoder) Ellipse(o Object) (Ellipse, error) {
	r, ce, err := d.begin(o)
	if err != nil {
		return Ellipse{}, err
	}
	e := Ellipse{Base: d.base(ce)}
	if e.Center, err = r.Read3BD(); err != nil {
		return e, err
	}
	if e.MajorAxis, err = r.Read3BD(); err != nil {
		return e, err
	}
	if e.Extrusion, err = r.Read3BD(); err != nil {
		return e, err
	}
	if e.AxisRatio, err = r.ReadBD(); err != nil {
		return e, err
	}
	if e.StartAngle, err = r.ReadBD(); err != nil {
		return e, err
	}
	if e.EndAngle, err = r.ReadBD(); err != nil {
		return e, err
	}
	e.Layer, err = d.layer(r, ce)
	return e, err
}

// Ray decodes a RAY or XLINE record; both carry a point and a direction
func (d *Decoder) Ray(o Object) (Ray, error) {
	r, ce, err := d.begin(o)
	if err != nil {
		return Ray{}, err
	}
	ray := Ray{Base: d.base(ce)}
	if ray.Point, err = r.Read3BD(); err != nil {
		return ray, err
	}
	if ray.Vector, err = r.Read3BD(); err != nil {
		return ray, err
	}
	ray.Layer, err = d.layer(r, ce)
	return ray, err
}
