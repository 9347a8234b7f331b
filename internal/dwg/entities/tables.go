package entities

import (
	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
)

// DXF-style layer flag bits
const (
	LayerFrozen     = 0x01
	LayerFrozenNew  = 0x02
	LayerLocked     = 0x04
	LayerXRefDep    = 0x10
	LayerReferenced = 0x40
)

const (
	maxPreviewBytes  = 1 << 20
	maxInsertUnitRCs = 1 << 16
)

// readCMC reads a full colour value. Before R2004 it is a plain index; from
// R2004 it carries an RGB value and optional colour and book names.
func (d *Decoder) readCMC(r *bitstream.Reader) (Color, uint8, error) {
	idx, err := r.ReadBS()
	if err != nil || !d.s.EncodedColor {
		return Color{Index: idx}, 0, err
	}
	c := Color{Index: idx}
	rgb, err := r.ReadBL()
	if err != nil {
		return c, 0, err
	}
	c.TrueColor = trueColor(rgb)
	flags, err := r.ReadRC()
	if err != nil {
		return c, 0, err
	}
	if flags&1 != 0 {
		if _, err := r.ReadTV(d.cp); err != nil {
			return c, flags, err
		}
	}
	if flags&2 != 0 {
		if _, err := r.ReadTV(d.cp); err != nil {
			return c, flags, err
		}
	}
	return c, flags, nil
}

// trueColor keeps the 24-bit payload only when the marker byte is set
func trueColor(rgb uint32) *uint32 {
	if rgb == 0 || rgb>>24 == 0 {
		return nil
	}
	v := rgb & 0xFFFFFF
	if v == 0 {
		return nil
	}
	return &v
}

// layerVariant is a set of filler bit widths around the layer state fields.
// Writers disagree on a few bits there, so every variant is tried.
type layerVariant struct {
	preFlag, postFlag, preValues uint
}

var layerVariants = []layerVariant{
	{0, 0, 0},
	{2, 0, 0},
	{0, 2, 0},
	{0, 0, 2},
	{2, 2, 0},
	{2, 0, 2},
	{0, 2, 2},
	{2, 2, 2},
}

type layerColorRead struct {
	flags uint16
	color Color
	byte  uint8
}

func (d *Decoder) readLayerVariant(r *bitstream.Reader, v layerVariant) (layerColorRead, error) {
	var out layerColorRead
	skip := func(n uint) error {
		if n == 0 {
			return nil
		}
		_, err := r.ReadBits(n)
		return err
	}
	if err := skip(v.preFlag); err != nil {
		return out, err
	}
	flag64, err := readFlag(r)
	if err != nil {
		return out, err
	}
	if err := skip(v.postFlag); err != nil {
		return out, err
	}
	if _, err := r.ReadBS(); err != nil {
		return out, err
	}
	bits := make([]bool, 5)
	for i := range bits {
		if bits[i], err = readFlag(r); err != nil {
			return out, err
		}
	}
	if err := skip(v.preValues); err != nil {
		return out, err
	}
	if out.flags, err = r.ReadBS(); err != nil {
		return out, err
	}
	if out.color, out.byte, err = d.readCMC(r); err != nil {
		return out, err
	}
	if flag64 {
		out.flags |= LayerReferenced
	}
	return out, nil
}

// layerColorScore rates a variant read, lower is better
func layerColorScore(c layerColorRead) int64 {
	var score int64
	switch {
	case c.color.Index <= 257:
	case c.color.Index <= 4096:
		score += 1000
	default:
		score += 100000
	}
	if c.byte > 3 {
		score += 10000
	}
	if c.color.TrueColor != nil && (*c.color.TrueColor == 0 || *c.color.TrueColor > 0xFFFFFF) {
		score += 10000
	}
	return score
}

// Layer decodes a LAYER table record. On revisions whose layer layout drifts
// between writers every filler variant is decoded and the most plausible
// colour wins.
func (d *Decoder) Layer(o Object) (Layer, error) {
	r := o.Reader()
	co, err := ReadCommonObject(r, d.s, o.Header)
	if err != nil {
		return Layer{}, dwgerr.Wrap(dwgerr.KindDecode, err, "common object header")
	}
	l := Layer{Handle: co.Handle}
	if l.Handle == 0 {
		l.Handle = o.Handle
	}
	if l.Name, err = d.texts(r, co.HandleStart, co.HasHandleStart).read(); err != nil {
		return l, err
	}

	switch {
	case d.s.LayerColorScan:
		return d.scanLayerColor(r, l)
	case d.s.LayerStateBits:
		return d.readLayerStateBits(r, l)
	default:
		return d.readLayerR2000(r, l)
	}
}

func (d *Decoder) scanLayerColor(r *bitstream.Reader, l Layer) (Layer, error) {
	start := r.TellBits()
	best, bestScore, found := -1, int64(0), false
	var bestRead layerColorRead
	for i, v := range layerVariants {
		r.SetBitPos(start)
		c, err := d.readLayerVariant(r, v)
		if err != nil {
			continue
		}
		score := layerColorScore(c)
		if !found || score < bestScore {
			best, bestScore, bestRead, found = i, score, c, true
		}
	}
	if !found {
		r.SetBitPos(start)
		c, err := d.readLayerVariant(r, layerVariants[0])
		if err != nil {
			return l, dwgerr.Wrap(dwgerr.KindDecode, err, "layer colour")
		}
		best, bestRead = 0, c
	}
	l.Variant = best
	l.Flags = bestRead.flags
	l.ColorIndex = bestRead.color.Index
	l.TrueColor = bestRead.color.TrueColor
	return l, nil
}

func (d *Decoder) readLayerStateBits(r *bitstream.Reader, l Layer) (Layer, error) {
	flag64, err := readFlag(r)
	if err != nil {
		return l, err
	}
	if _, err := r.ReadBS(); err != nil {
		return l, err
	}
	xdep, err := readFlag(r)
	if err != nil {
		return l, err
	}
	var frozen, on, frozenNew, locked bool
	for _, b := range []*bool{&frozen, &on, &frozenNew, &locked} {
		if *b, err = readFlag(r); err != nil {
			return l, err
		}
	}
	for bit, set := range map[uint16]bool{
		LayerReferenced: flag64,
		LayerXRefDep:    xdep,
		LayerFrozen:     frozen,
		LayerFrozenNew:  frozenNew,
		LayerLocked:     locked,
	} {
		if set {
			l.Flags |= bit
		}
	}
	if l.ColorIndex, err = r.ReadBS(); err != nil {
		return l, err
	}
	return l, nil
}

func (d *Decoder) readLayerR2000(r *bitstream.Reader, l Layer) (Layer, error) {
	flag64, err := readFlag(r)
	if err != nil {
		return l, err
	}
	if _, err := r.ReadBS(); err != nil {
		return l, err
	}
	if _, err := readFlag(r); err != nil {
		return l, err
	}
	if l.Flags, err = r.ReadBS(); err != nil {
		return l, err
	}
	if flag64 {
		l.Flags |= LayerReferenced
	}
	c, _, err := d.readCMC(r)
	if err != nil {
		return l, err
	}
	l.ColorIndex = c.Index
	l.TrueColor = c.TrueColor
	return l, nil
}

// BlockHeader decodes a BLOCK_HEADER table record with the canonical layout
func (d *Decoder) BlockHeader(o Object) (BlockHeader, error) {
	r := o.Reader()
	co, err := ReadCommonObject(r, d.s, o.Header)
	if err != nil {
		return BlockHeader{}, dwgerr.Wrap(dwgerr.KindDecode, err, "common object header")
	}
	bh := BlockHeader{Handle: co.Handle}
	if bh.Handle == 0 || d.s.SplitStreams {
		bh.Handle = o.Handle
	}
	strs := d.texts(r, co.HandleStart, co.HasHandleStart)
	if bh.Name, err = strs.read(); err != nil {
		return bh, err
	}
	if err := d.readBlockHeaderBody(r, strs, &bh); err != nil {
		return bh, err
	}
	if co.HasHandleStart {
		hr := r.Clone()
		hr.SetBitPos(co.HandleStart)
		if blk, err := d.blockEntityRef(hr, co); err == nil {
			bh.Block = blk
		}
	}
	return bh, nil
}

func (d *Decoder) readBlockHeaderBody(r *bitstream.Reader, strs textSource, bh *BlockHeader) error {
	if _, err := r.ReadB(); err != nil {
		return err
	}
	if _, err := r.ReadBS(); err != nil {
		return err
	}
	if _, err := r.ReadB(); err != nil {
		return err
	}
	var err error
	for _, b := range []*bool{&bh.Anonymous, &bh.HasAttribs, &bh.IsXRef, &bh.XRefOverlay} {
		if *b, err = readFlag(r); err != nil {
			return err
		}
	}
	if d.s.CompactBodies {
		if _, err := r.ReadB(); err != nil {
			return err
		}
	}
	if d.s.OwnedCounts {
		if bh.OwnedCount, err = d.count(r, "owned object"); err != nil {
			return err
		}
	}
	if bh.BasePoint, err = r.Read3BD(); err != nil {
		return err
	}
	if bh.XRefPath, err = strs.read(); err != nil {
		return err
	}
	if !d.s.CompactBodies {
		return nil
	}
	for i := 0; ; i++ {
		if i >= maxInsertUnitRCs {
			return dwgerr.New(dwgerr.KindDecode, "unterminated insert count list")
		}
		v, err := r.ReadRC()
		if err != nil {
			return err
		}
		if v == 0 {
			break
		}
	}
	if _, err := strs.read(); err != nil {
		return err
	}
	size, err := r.ReadBL()
	if err != nil {
		return err
	}
	if size > maxPreviewBytes || uint64(size)*8 > r.Remaining() {
		return dwgerr.Newf(dwgerr.KindDecode, "preview of %d bytes exceeds record", size)
	}
	r.SetBitPos(r.TellBits() + uint64(size)*8)
	if !d.s.BlockUnits {
		return nil
	}
	if _, err := r.ReadBS(); err != nil {
		return err
	}
	if _, err := r.ReadB(); err != nil {
		return err
	}
	_, err = r.ReadRC()
	return err
}

// blockEntityRef walks the leading handles of a BLOCK_HEADER up to the
// BLOCK entity reference
func (d *Decoder) blockEntityRef(hr *bitstream.Reader, co CommonObject) (uint64, error) {
	if _, err := hr.ReadHandle(co.Handle); err != nil {
		return 0, err
	}
	for range co.NumReactors {
		if _, err := hr.ReadHandle(co.Handle); err != nil {
			return 0, err
		}
	}
	if !d.s.XDicMissingFlag || !co.XDicMissing {
		if _, err := hr.ReadHandle(co.Handle); err != nil {
			return 0, err
		}
	}
	// a null handle precedes the block entity until owned counts appear
	if !d.s.OwnedCounts {
		if _, err := hr.ReadHandle(co.Handle); err != nil {
			return 0, err
		}
	}
	return hr.ReadHandle(co.Handle)
}

// Block decodes a BLOCK or ENDBLK entity. Only BLOCK carries a name.
func (d *Decoder) Block(o Object) (Block, error) {
	r, ce, err := d.begin(o)
	if err != nil {
		return Block{}, err
	}
	b := Block{Base: d.base(ce), TypeCode: o.Header.TypeCode}
	if b.TypeCode == objects.TypeBlock {
		if b.Name, err = d.texts(r, ce.HandleStart, ce.HasHandleStart).read(); err != nil {
			return b, err
		}
	}
	b.Layer, err = d.layer(r, ce)
	return b, err
}
