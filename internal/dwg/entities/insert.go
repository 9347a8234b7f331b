package entities

import "github.com/a3tai/dwg-reader/internal/dwg/bitstream"

// INSERT scale flags of the compact encoding
const (
	scaleExplicit = 0
	scaleXIsOne   = 1
	scaleUniform  = 2
	scaleUnit     = 3
)

// Insert decodes an INSERT record
func (d *Decoder) Insert(o Object) (Insert, error) {
	r, ce, err := d.begin(o)
	if err != nil {
		return Insert{}, err
	}
	ins := Insert{Base: d.base(ce)}
	if err := d.readInsertBody(r, &ins); err != nil {
		return ins, err
	}
	return ins, d.readInsertHandles(r, ce, &ins)
}

// MInsert decodes a MINSERT record
func (d *Decoder) MInsert(o Object) (MInsert, error) {
	r, ce, err := d.begin(o)
	if err != nil {
		return MInsert{}, err
	}
	m := MInsert{Insert: Insert{Base: d.base(ce)}}
	if err := d.readInsertBody(r, &m.Insert); err != nil {
		return m, err
	}
	if m.Columns, err = r.ReadBS(); err != nil {
		return m, err
	}
	if m.Rows, err = r.ReadBS(); err != nil {
		return m, err
	}
	if m.ColumnSpacing, err = r.ReadBD(); err != nil {
		return m, err
	}
	if m.RowSpacing, err = r.ReadBD(); err != nil {
		return m, err
	}
	return m, d.readInsertHandles(r, ce, &m.Insert)
}

func (d *Decoder) readInsertBody(r *bitstream.Reader, ins *Insert) error {
	var err error
	if ins.Position, err = r.Read3BD(); err != nil {
		return err
	}
	if d.s.CompactBodies {
		ins.Scale, err = readInsertScale(r)
	} else {
		ins.Scale, err = r.Read3BD()
	}
	if err != nil {
		return err
	}
	if ins.Rotation, err = r.ReadBD(); err != nil {
		return err
	}
	if ins.Extrusion, err = r.Read3BD(); err != nil {
		return err
	}
	if ins.HasAttribs, err = readFlag(r); err != nil {
		return err
	}
	if ins.HasAttribs && d.s.OwnedCounts {
		if ins.OwnedCount, err = d.count(r, "owned object"); err != nil {
			return err
		}
	}
	return nil
}

func readInsertScale(r *bitstream.Reader) (Point3, error) {
	flags, err := r.ReadBB()
	if err != nil {
		return Point3{}, err
	}
	switch flags {
	case scaleUnit:
		return Point3{1, 1, 1}, nil
	case scaleUniform:
		v, err := r.ReadRD()
		return Point3{v, v, v}, err
	}
	x := 1.0
	if flags == scaleExplicit {
		if x, err = r.ReadRD(); err != nil {
			return Point3{}, err
		}
	}
	y, err := r.ReadDD(x)
	if err != nil {
		return Point3{}, err
	}
	z, err := r.ReadDD(x)
	return Point3{x, y, z}, err
}

// readInsertHandles reads the full common handle block followed by the
// block header reference and the attribute chain
func (d *Decoder) readInsertHandles(r *bitstream.Reader, ce CommonEntity, ins *Insert) error {
	hr, ch, ok, err := d.handles(r, ce, false)
	if err != nil {
		return err
	}
	ins.Layer = ch.Layer
	if !ok {
		return nil
	}
	bh, err := hr.ReadHandle(ce.Handle)
	if err != nil {
		// the block reference is recovered later from the handle stream
		return nil
	}
	ins.BlockHeader = &bh
	if !ins.HasAttribs {
		return nil
	}
	n := 2
	if d.s.OwnedCounts {
		n = int(ins.OwnedCount)
	}
	for range n {
		h, err := hr.ReadHandle(ce.Handle)
		if err != nil {
			return nil
		}
		ins.Owned = append(ins.Owned, h)
	}
	if seq, err := hr.ReadHandle(ce.Handle); err == nil {
		ins.SeqEnd = seq
	}
	return nil
}
