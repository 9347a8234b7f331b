package entities

import (
	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/recovery"
)

// TEXT data flags: a set bit means the field is absent and takes its default
const (
	textNoElevation = 1 << iota
	textNoAlignment
	textNoOblique
	textNoRotation
	textNoWidth
	textNoGeneration
	textNoHAlign
	textNoVAlign
)

// Text decodes a TEXT record
func (d *Decoder) Text(o Object) (Text, error) {
	r, ce, err := d.begin(o)
	if err != nil {
		return Text{}, err
	}
	strs := d.texts(r, ce.HandleStart, ce.HasHandleStart)
	t := Text{Base: d.base(ce), Metrics: TextMetrics{Width: 1}}
	if d.s.CompactBodies {
		err = d.readTextCompact(r, strs, &t)
	} else {
		err = d.readTextFull(r, strs, &t)
	}
	if err != nil {
		return t, err
	}

	hr, ch, ok, err := d.handles(r, ce, false)
	if err != nil {
		return t, err
	}
	t.Layer = ch.Layer
	if ok {
		if style, err := hr.ReadHandle(ce.Handle); err == nil {
			t.Style = &style
		}
	}
	return t, nil
}

func (d *Decoder) readTextCompact(r *bitstream.Reader, strs textSource, t *Text) error {
	flags, err := r.ReadRC()
	if err != nil {
		return err
	}
	if flags&textNoElevation == 0 {
		if t.Insertion[2], err = r.ReadRD(); err != nil {
			return err
		}
	}
	ins, err := r.Read2RD()
	if err != nil {
		return err
	}
	t.Insertion[0], t.Insertion[1] = ins[0], ins[1]
	if flags&textNoAlignment == 0 {
		var al Point2
		if al[0], err = r.ReadDD(ins[0]); err != nil {
			return err
		}
		if al[1], err = r.ReadDD(ins[1]); err != nil {
			return err
		}
		t.Alignment = &al
	}
	if t.Extrusion, err = r.ReadBE(); err != nil {
		return err
	}
	if t.Metrics.Thickness, err = r.ReadBT(); err != nil {
		return err
	}
	if flags&textNoOblique == 0 {
		if t.Metrics.Oblique, err = r.ReadRD(); err != nil {
			return err
		}
	}
	if flags&textNoRotation == 0 {
		if t.Metrics.Rotation, err = r.ReadRD(); err != nil {
			return err
		}
	}
	if t.Metrics.Height, err = r.ReadRD(); err != nil {
		return err
	}
	if flags&textNoWidth == 0 {
		if t.Metrics.Width, err = r.ReadRD(); err != nil {
			return err
		}
	}
	if t.Value, err = strs.read(); err != nil {
		return err
	}
	if flags&textNoGeneration == 0 {
		if t.Align.Generation, err = r.ReadBS(); err != nil {
			return err
		}
	}
	if flags&textNoHAlign == 0 {
		if t.Align.HAlign, err = r.ReadBS(); err != nil {
			return err
		}
	}
	if flags&textNoVAlign == 0 {
		if t.Align.VAlign, err = r.ReadBS(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) readTextFull(r *bitstream.Reader, strs textSource, t *Text) error {
	var err error
	if t.Insertion[2], err = r.ReadBD(); err != nil {
		return err
	}
	ins, err := r.Read2RD()
	if err != nil {
		return err
	}
	t.Insertion[0], t.Insertion[1] = ins[0], ins[1]
	al, err := r.Read2RD()
	if err != nil {
		return err
	}
	t.Alignment = &al
	if t.Extrusion, err = r.Read3BD(); err != nil {
		return err
	}
	for _, f := range []*float64{&t.Metrics.Thickness, &t.Metrics.Oblique, &t.Metrics.Rotation, &t.Metrics.Height, &t.Metrics.Width} {
		if *f, err = r.ReadBD(); err != nil {
			return err
		}
	}
	if t.Value, err = strs.read(); err != nil {
		return err
	}
	for _, f := range []*uint16{&t.Align.Generation, &t.Align.HAlign, &t.Align.VAlign} {
		if *f, err = r.ReadBS(); err != nil {
			return err
		}
	}
	return nil
}

// MText decodes an MTEXT record. On split-stream revisions the string stream
// is rescanned when the inline read looks broken.
func (d *Decoder) MText(o Object) (MText, error) {
	r, ce, err := d.begin(o)
	if err != nil {
		return MText{}, err
	}
	strs := d.texts(r, ce.HandleStart, ce.HasHandleStart)
	m := MText{Base: d.base(ce)}
	if err := d.readMText(r, strs, &m); err != nil {
		return m, err
	}
	if d.s.StringStream {
		if res, ok := recovery.RecoverMText(o.Record.Reader(), o.Header, o.Header.PrefixEnd, m.Value); ok {
			m.Value = res.Value
			m.Recovered = true
		}
	}
	m.Layer, err = d.layer(r, ce)
	return m, err
}

func (d *Decoder) readMText(r *bitstream.Reader, strs textSource, m *MText) error {
	var err error
	for _, p := range []*Point3{&m.Insertion, &m.Extrusion, &m.XDirection} {
		if *p, err = r.Read3BD(); err != nil {
			return err
		}
	}
	if m.RectWidth, err = r.ReadBD(); err != nil {
		return err
	}
	if d.s.MTextRectHeight {
		if m.RectHeight, err = r.ReadBD(); err != nil {
			return err
		}
	}
	if m.TextHeight, err = r.ReadBD(); err != nil {
		return err
	}
	if m.Attachment, err = r.ReadBS(); err != nil {
		return err
	}
	if m.DrawingDir, err = r.ReadBS(); err != nil {
		return err
	}
	if m.ExtentsHeight, err = r.ReadBD(); err != nil {
		return err
	}
	if m.ExtentsWidth, err = r.ReadBD(); err != nil {
		return err
	}
	if m.Value, err = strs.read(); err != nil {
		return err
	}
	if !d.s.CompactBodies {
		return nil
	}
	if m.LineSpacing, err = r.ReadBS(); err != nil {
		return err
	}
	if m.LineFactor, err = r.ReadBD(); err != nil {
		return err
	}
	if _, err = r.ReadB(); err != nil {
		return err
	}
	if !d.s.MTextBackground {
		return nil
	}
	if m.Background.Flags, err = r.ReadBL(); err != nil {
		return err
	}
	if m.Background.Flags&1 == 0 {
		return nil
	}
	scale, err := r.ReadBD()
	if err != nil {
		return err
	}
	m.Background.Scale = &scale
	c, _, err := d.readCMC(r)
	if err != nil {
		return err
	}
	m.Background.ColorIndex = &c.Index
	m.Background.TrueColor = c.TrueColor
	tr, err := r.ReadBL()
	if err != nil {
		return err
	}
	m.Background.Transparency = &tr
	return nil
}
