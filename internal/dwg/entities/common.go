// Package entities decodes the common headers and the bodies of drawing
// objects. Every revision difference is read from the version.Strategy.
package entities

import (
	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

// Encoded colour flag bits (R2004+)
const (
	colorFlagRGB          = 0x8000
	colorFlagBook         = 0x4000
	colorFlagTransparency = 0x2000
	colorIndexMask        = 0x01FF
)

// Color is an entity or layer colour
type Color struct {
	Index        uint16  `json:"index"`
	TrueColor    *uint32 `json:"true_color,omitempty"`
	Transparency *uint32 `json:"transparency,omitempty"`
	// BookRef means a colour book handle follows in the handle stream
	BookRef bool `json:"-"`
}

// CommonEntity is the header shared by every entity record
type CommonEntity struct {
	Handle         uint64  `json:"handle"`
	EntMode        uint8   `json:"entmode"`
	NumReactors    uint32  `json:"num_reactors"`
	XDicMissing    bool    `json:"xdic_missing"`
	HasDSData      bool    `json:"has_ds_data,omitempty"`
	ByLayerLType   bool    `json:"bylayer_ltype,omitempty"`
	NoLinks        bool    `json:"nolinks"`
	Color          Color   `json:"color"`
	LTypeScale     float64 `json:"ltype_scale"`
	LTypeFlags     uint8   `json:"ltype_flags"`
	PlotStyleFlags uint8   `json:"plotstyle_flags"`
	MaterialFlags  uint8   `json:"material_flags"`
	Shadow         uint8   `json:"shadow"`
	VisualStyles   [3]bool `json:"visual_styles"`
	Invisibility   uint16  `json:"invisibility"`
	Lineweight     uint8   `json:"lineweight"`

	// HandleStart is where the handle block begins
	HandleStart    uint64 `json:"-"`
	HasHandleStart bool   `json:"-"`
}

// CommonHandles is the handle block that opens every entity's handle stream
type CommonHandles struct {
	Owner        uint64   `json:"owner,omitempty"`
	Reactors     []uint64 `json:"reactors,omitempty"`
	XDic         uint64   `json:"xdic,omitempty"`
	Layer        uint64   `json:"layer"`
	LType        uint64   `json:"ltype,omitempty"`
	Prev         uint64   `json:"prev,omitempty"`
	Next         uint64   `json:"next,omitempty"`
	ColorBook    uint64   `json:"color_book,omitempty"`
	Material     uint64   `json:"material,omitempty"`
	PlotStyle    uint64   `json:"plotstyle,omitempty"`
	VisualStyles []uint64 `json:"visual_styles,omitempty"`
}

// SkipEED consumes the extended entity data list
func SkipEED(r *bitstream.Reader) error {
	for {
		size, err := r.ReadBS()
		if err != nil {
			return err
		}
		if size == 0 {
			return nil
		}
		if _, err := r.ReadH(); err != nil {
			return err
		}
		if uint64(size)*8 > r.Remaining() {
			return dwgerr.Newf(dwgerr.KindDecode, "EED block of %d bytes exceeds record", size).WithOffset(r.TellBits())
		}
		r.SetBitPos(r.TellBits() + uint64(size)*8)
	}
}

func skipGraphic(r *bitstream.Reader, s *version.Strategy) error {
	present, err := r.ReadB()
	if err != nil || present == 0 {
		return err
	}
	var size uint64
	if s.GraphicSizeBLL {
		size, err = r.ReadBLL()
	} else {
		var rl uint32
		rl, err = r.ReadRL()
		size = uint64(rl)
	}
	if err != nil {
		return err
	}
	if size*8 > r.Remaining() {
		return dwgerr.Newf(dwgerr.KindDecode, "graphic data of %d bytes exceeds record", size).WithOffset(r.TellBits())
	}
	r.SetBitPos(r.TellBits() + size*8)
	return nil
}

func readEntityColor(r *bitstream.Reader, s *version.Strategy) (Color, error) {
	v, err := r.ReadBS()
	if err != nil {
		return Color{}, err
	}
	if !s.EncodedColor {
		return Color{Index: v}, nil
	}
	c := Color{Index: v & colorIndexMask}
	if v&colorFlagRGB != 0 {
		rgb, err := r.ReadBL()
		if err != nil {
			return c, err
		}
		rgb &= 0xFFFFFF
		c.TrueColor = &rgb
	}
	c.BookRef = v&colorFlagBook != 0
	if v&colorFlagTransparency != 0 {
		tr, err := r.ReadBL()
		if err != nil {
			return c, err
		}
		c.Transparency = &tr
	}
	return c, nil
}

// ReadCommonEntity reads the common entity header. r must sit right after
// the type prefix. endBit overrides the handle-stream start of split-stream
// revisions; zero uses the start derived from the object header.
func ReadCommonEntity(r *bitstream.Reader, s *version.Strategy, h objects.ApiObjectHeader, endBit uint64) (CommonEntity, error) {
	var ce CommonEntity
	ref, err := r.ReadH()
	if err != nil {
		return ce, err
	}
	ce.Handle = ref.Value
	if err := SkipEED(r); err != nil {
		return ce, err
	}
	if err := skipGraphic(r, s); err != nil {
		return ce, err
	}

	switch {
	case s.ObjSizeAfterGraphic:
		size, err := r.ReadRL()
		if err != nil {
			return ce, err
		}
		ce.HandleStart, ce.HasHandleStart = uint64(size), true
	case endBit > 0:
		ce.HandleStart, ce.HasHandleStart = endBit, true
	default:
		ce.HandleStart, ce.HasHandleStart = h.HandleStreamStart()
	}

	if ce.EntMode, err = r.ReadBB(); err != nil {
		return ce, err
	}
	if ce.NumReactors, err = r.ReadBL(); err != nil {
		return ce, err
	}
	if s.XDicMissingFlag {
		if ce.XDicMissing, err = readFlag(r); err != nil {
			return ce, err
		}
	}
	if s.DSBinaryFlag {
		if ce.HasDSData, err = readFlag(r); err != nil {
			return ce, err
		}
	}
	if s.ByLayerLTypeFlag {
		if ce.ByLayerLType, err = readFlag(r); err != nil {
			return ce, err
		}
	}
	if ce.NoLinks, err = readFlag(r); err != nil {
		return ce, err
	}
	if ce.Color, err = readEntityColor(r, s); err != nil {
		return ce, err
	}
	if ce.LTypeScale, err = r.ReadBD(); err != nil {
		return ce, err
	}
	if s.LTypePlotFlags {
		if ce.LTypeFlags, err = r.ReadBB(); err != nil {
			return ce, err
		}
		if ce.PlotStyleFlags, err = r.ReadBB(); err != nil {
			return ce, err
		}
	}
	if s.MaterialShadow {
		if ce.MaterialFlags, err = r.ReadBB(); err != nil {
			return ce, err
		}
		if ce.Shadow, err = r.ReadRC(); err != nil {
			return ce, err
		}
	}
	if s.VisualStyles {
		for i := range ce.VisualStyles {
			if ce.VisualStyles[i], err = readFlag(r); err != nil {
				return ce, err
			}
		}
	}
	if ce.Invisibility, err = r.ReadBS(); err != nil {
		return ce, err
	}
	if s.Lineweight {
		if ce.Lineweight, err = r.ReadRC(); err != nil {
			return ce, err
		}
	}
	return ce, nil
}

// ReadCommonHandles reads the common handle block at r's position. With
// layerOnly the read stops after the layer reference.
func ReadCommonHandles(r *bitstream.Reader, s *version.Strategy, ce CommonEntity, layerOnly bool) (CommonHandles, error) {
	var ch CommonHandles
	base := ce.Handle
	var err error
	if ce.EntMode == 0 {
		if ch.Owner, err = r.ReadHandle(base); err != nil {
			return ch, err
		}
	}
	if ce.NumReactors > uint32(r.Remaining()/8) {
		return ch, dwgerr.Newf(dwgerr.KindDecode, "reactor count %d exceeds record", ce.NumReactors)
	}
	for range ce.NumReactors {
		v, err := r.ReadHandle(base)
		if err != nil {
			return ch, err
		}
		ch.Reactors = append(ch.Reactors, v)
	}
	if !s.XDicMissingFlag || !ce.XDicMissing {
		if ch.XDic, err = r.ReadHandle(base); err != nil {
			return ch, err
		}
	}

	if s.ByLayerLTypeFlag {
		if ch.Layer, err = r.ReadHandle(base); err != nil {
			return ch, err
		}
		if layerOnly {
			return ch, nil
		}
		if !ce.ByLayerLType {
			if ch.LType, err = r.ReadHandle(base); err != nil {
				return ch, err
			}
		}
	}
	// prev/next links are gone once colours are encoded (R2004+)
	if !s.EncodedColor && !ce.NoLinks {
		if ch.Prev, err = r.ReadHandle(base); err != nil {
			return ch, err
		}
		if ch.Next, err = r.ReadHandle(base); err != nil {
			return ch, err
		}
	}
	if s.ByLayerLTypeFlag {
		return ch, nil
	}

	if ce.Color.BookRef {
		if ch.ColorBook, err = r.ReadHandle(base); err != nil {
			return ch, err
		}
	}
	if ch.Layer, err = r.ReadHandle(base); err != nil {
		return ch, err
	}
	if layerOnly {
		return ch, nil
	}
	if ce.LTypeFlags == 3 {
		if ch.LType, err = r.ReadHandle(base); err != nil {
			return ch, err
		}
	}
	if s.MaterialShadow && ce.MaterialFlags == 3 {
		if ch.Material, err = r.ReadHandle(base); err != nil {
			return ch, err
		}
	}
	if ce.PlotStyleFlags == 3 {
		if ch.PlotStyle, err = r.ReadHandle(base); err != nil {
			return ch, err
		}
	}
	for _, present := range ce.VisualStyles {
		if !present {
			continue
		}
		v, err := r.ReadHandle(base)
		if err != nil {
			return ch, err
		}
		ch.VisualStyles = append(ch.VisualStyles, v)
	}
	return ch, nil
}

// LayerRefIndex is the position of the layer reference within the common
// handle block of a split-stream entity
func (ce CommonEntity) LayerRefIndex(s *version.Strategy) int {
	idx := 0
	if ce.EntMode == 0 {
		idx++
	}
	idx += int(ce.NumReactors)
	if !s.XDicMissingFlag || !ce.XDicMissing {
		idx++
	}
	return idx
}

// CommonObject is the header shared by non-entity (table and control) records
type CommonObject struct {
	Handle      uint64 `json:"handle"`
	NumReactors uint32 `json:"num_reactors"`
	XDicMissing bool   `json:"xdic_missing"`
	HasDSData   bool   `json:"has_ds_data,omitempty"`

	HandleStart    uint64 `json:"-"`
	HasHandleStart bool   `json:"-"`
}

// ReadCommonObject reads the common header of a non-entity record
func ReadCommonObject(r *bitstream.Reader, s *version.Strategy, h objects.ApiObjectHeader) (CommonObject, error) {
	var co CommonObject
	ref, err := r.ReadH()
	if err != nil {
		return co, err
	}
	co.Handle = ref.Value
	if err := SkipEED(r); err != nil {
		return co, err
	}
	if s.ObjSizeAfterGraphic {
		size, err := r.ReadRL()
		if err != nil {
			return co, err
		}
		co.HandleStart, co.HasHandleStart = uint64(size), true
	} else {
		co.HandleStart, co.HasHandleStart = h.HandleStreamStart()
	}
	if co.NumReactors, err = r.ReadBL(); err != nil {
		return co, err
	}
	if s.XDicMissingFlag {
		if co.XDicMissing, err = readFlag(r); err != nil {
			return co, err
		}
	}
	if s.DSBinaryFlag {
		if co.HasDSData, err = readFlag(r); err != nil {
			return co, err
		}
	}
	return co, nil
}

func readFlag(r *bitstream.Reader) (bool, error) {
	b, err := r.ReadB()
	return b == 1, err
}
