package writer

import (
	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

var unitZ = Point3{0, 0, 1}

func (e *Line) writeBody(w *bitstream.Writer, s *version.Strategy) error {
	if !s.CompactBodies {
		w.Write3BD(e.Start)
		w.Write3BD(e.End)
	} else {
		zZero := e.Start[2] == 0 && e.End[2] == 0
		if zZero {
			w.WriteB(1)
		} else {
			w.WriteB(0)
		}
		w.WriteRD(e.Start[0])
		w.WriteDD(e.Start[0], e.End[0])
		w.WriteRD(e.Start[1])
		w.WriteDD(e.Start[1], e.End[1])
		if !zZero {
			w.WriteRD(e.Start[2])
			w.WriteDD(e.Start[2], e.End[2])
		}
	}
	w.WriteBT(0)
	w.WriteBE(unitZ)
	return nil
}

func (e *Point) writeBody(w *bitstream.Writer, _ *version.Strategy) error {
	w.Write3BD(e.Location)
	w.WriteBT(0)
	w.WriteBE(unitZ)
	w.WriteBD(e.XAxisAng)
	return nil
}

func (e *Ray) writeBody(w *bitstream.Writer, _ *version.Strategy) error {
	w.Write3BD(e.Start)
	w.Write3BD(e.Vector)
	return nil
}

func (e *XLine) writeBody(w *bitstream.Writer, _ *version.Strategy) error {
	w.Write3BD(e.Start)
	w.Write3BD(e.Vector)
	return nil
}

func (e *Arc) writeBody(w *bitstream.Writer, _ *version.Strategy) error {
	w.Write3BD(e.Center)
	w.WriteBD(e.Radius)
	w.WriteBT(0)
	w.WriteBE(unitZ)
	w.WriteBD(e.StartAngle)
	w.WriteBD(e.EndAngle)
	return nil
}

func (e *Circle) writeBody(w *bitstream.Writer, _ *version.Strategy) error {
	w.Write3BD(e.Center)
	w.WriteBD(e.Radius)
	w.WriteBT(0)
	w.WriteBE(unitZ)
	return nil
}

// LWPOLYLINE flag bits the writer sets
const (
	lwClosed     = 0x200
	lwConstWidth = 0x004
	lwBulges     = 0x010
	lwWidths     = 0x020
)

func (e *LwPolyline) writeBody(w *bitstream.Writer, s *version.Strategy) error {
	n := len(e.Vertices)
	if len(e.Bulges) != 0 && len(e.Bulges) != n {
		return dwgerr.Newf(dwgerr.KindFormat, "lwpolyline has %d vertices and %d bulges", n, len(e.Bulges))
	}
	if len(e.Widths) != 0 && len(e.Widths) != n {
		return dwgerr.Newf(dwgerr.KindFormat, "lwpolyline has %d vertices and %d widths", n, len(e.Widths))
	}
	var flags uint16
	if e.Closed {
		flags |= lwClosed
	}
	if e.ConstWidth != nil {
		flags |= lwConstWidth
	}
	if len(e.Bulges) > 0 {
		flags |= lwBulges
	}
	if len(e.Widths) > 0 {
		flags |= lwWidths
	}
	w.WriteBS(flags)
	if e.ConstWidth != nil {
		w.WriteBD(*e.ConstWidth)
	}
	w.WriteBL(uint32(n))
	if len(e.Bulges) > 0 {
		w.WriteBL(uint32(len(e.Bulges)))
	}
	if len(e.Widths) > 0 {
		w.WriteBL(uint32(len(e.Widths)))
	}
	for i, p := range e.Vertices {
		if i == 0 || !s.CompactBodies {
			w.Write2RD(p)
			continue
		}
		prev := e.Vertices[i-1]
		w.WriteDD(prev[0], p[0])
		w.WriteDD(prev[1], p[1])
	}
	for _, b := range e.Bulges {
		w.WriteBD(b)
	}
	for _, wd := range e.Widths {
		w.Write2BD(wd)
	}
	return nil
}

// TEXT data flags; a set bit leaves the field at its default
const (
	textNoElevation = 0x01
	textNoAlignment = 0x02
	textNoOblique   = 0x04
	textNoRotation  = 0x08
	textNoWidth     = 0x10
	textNoGen       = 0x20
	textNoHAlign    = 0x40
	textNoVAlign    = 0x80
)

func (e *Text) writeBody(w *bitstream.Writer, s *version.Strategy) error {
	if !s.CompactBodies {
		return dwgerr.Newf(dwgerr.KindUnsupported, "TEXT layout for %s", s.Version)
	}
	flags := uint8(textNoAlignment | textNoOblique | textNoWidth | textNoGen | textNoHAlign | textNoVAlign)
	if e.Insert[2] == 0 {
		flags |= textNoElevation
	}
	if e.Rotation == 0 {
		flags |= textNoRotation
	}
	w.WriteRC(flags)
	if flags&textNoElevation == 0 {
		w.WriteRD(e.Insert[2])
	}
	w.Write2RD(Point2{e.Insert[0], e.Insert[1]})
	w.WriteBE(unitZ)
	w.WriteBT(0)
	if flags&textNoRotation == 0 {
		w.WriteRD(e.Rotation)
	}
	w.WriteRD(e.Height)
	return w.WriteTV(e.Value)
}

func (e *MText) writeBody(w *bitstream.Writer, s *version.Strategy) error {
	xdir := e.XDirection
	if xdir == (Point3{}) {
		xdir = Point3{1, 0, 0}
	}
	w.Write3BD(e.Insert)
	w.Write3BD(unitZ)
	w.Write3BD(xdir)
	w.WriteBD(e.RectWidth)
	if s.MTextRectHeight {
		w.WriteBD(0)
	}
	w.WriteBD(e.TextHeight)
	w.WriteBS(e.Attachment)
	w.WriteBS(e.DrawingDir)
	w.WriteBD(0) // extents height
	w.WriteBD(0) // extents width
	if err := w.WriteTV(e.Value); err != nil {
		return err
	}
	if s.CompactBodies {
		w.WriteBS(1)   // at least
		w.WriteBD(1.0) // line spacing factor
		w.WriteB(0)
	}
	return nil
}
