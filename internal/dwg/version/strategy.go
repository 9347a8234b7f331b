package version

import (
	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

// ContainerKind selects how sections are located in the file
type ContainerKind int

const (
	// ContainerLocator is the fixed record table at 0x15 (R13 to R2000)
	ContainerLocator ContainerKind = iota
	// ContainerPaged is the scrambled page/section map (R2004, R2010+)
	ContainerPaged
	// ContainerPagedR2007 is the Reed-Solomon coded variant (R2007)
	ContainerPagedR2007
)

// String returns a string representation of the ContainerKind
func (k ContainerKind) String() string {
	switch k {
	case ContainerLocator:
		return "locator"
	case ContainerPaged:
		return "paged"
	case ContainerPagedR2007:
		return "paged-r2007"
	default:
		return "unknown"
	}
}

// ClassesLayout selects the classes section layout
type ClassesLayout int

const (
	ClassesNone ClassesLayout = iota
	ClassesR13
	ClassesR2004
)

// TypePrefix is what precedes the common header in an object record
type TypePrefix struct {
	TypeCode         uint16
	HandleStreamBits uint64
	HasHandleStream  bool
}

// Strategy describes one revision's layout. Every revision-dependent decision
// in the decoder reads a field of this struct instead of switching on Version.
type Strategy struct {
	Version   Version
	Container ContainerKind
	Supported bool
	Classes   ClassesLayout

	// ObjectOffsetsAbsolute means index offsets are relative to the file
	// start rather than to the object data section.
	ObjectOffsetsAbsolute bool

	// SplitStreams means records end with a separate handle stream whose
	// size is declared in the type prefix.
	SplitStreams bool
	// StringStream means strings live in a trailing string stream as TU.
	StringStream bool

	// Common header layout.
	ObjSizeBeforeHandle bool // RL obj size right after the type (R2000..R2007)
	ObjSizeAfterGraphic bool // RL obj size after the graphic block (R13, R14)
	GraphicSizeBLL      bool
	XDicMissingFlag     bool
	DSBinaryFlag        bool
	ByLayerLTypeFlag    bool // R13/R14 isbylayerlt bit
	EncodedColor        bool // BS with flag bits instead of plain CMC index
	LTypePlotFlags      bool
	MaterialShadow      bool
	VisualStyles        bool
	Lineweight          bool

	// Entity body encodings.
	CompactBodies   bool // LINE z flag, TEXT data flags, INSERT scale flags, DD polyline points
	MTextRectHeight bool
	MTextBackground bool
	LwPolyVertexIDs bool
	OwnedCounts     bool // INSERT and BLOCK_HEADER carry an owned object count

	// Table records.
	LayerStateBits bool // separate frozen/on/locked bits instead of a flags BS
	LayerColorScan bool // the layer colour block drifts by a few bits between writers
	BlockUnits     bool // BLOCK_HEADER ends with insert units, explodable and scaling

	// TolerateHandleErrors lets entity decoders keep body fields when the
	// trailing handle stream cannot be read.
	TolerateHandleErrors bool
	// LayerOnlyHandles reads only the layer from the common handle block.
	LayerOnlyHandles bool

	// ReadTypePrefix consumes the per-record prefix preceding the common
	// header.
	ReadTypePrefix func(r *bitstream.Reader) (TypePrefix, error)
}

func readBSType(r *bitstream.Reader) (TypePrefix, error) {
	code, err := r.ReadBS()
	if err != nil {
		return TypePrefix{}, err
	}
	return TypePrefix{TypeCode: code}, nil
}

func readUMCAndOT(r *bitstream.Reader) (TypePrefix, error) {
	bits, err := r.ReadUMC()
	if err != nil {
		return TypePrefix{}, err
	}
	code, err := r.ReadOT()
	if err != nil {
		return TypePrefix{}, err
	}
	return TypePrefix{TypeCode: code, HandleStreamBits: bits, HasHandleStream: true}, nil
}

var legacy = Strategy{
	Container:             ContainerLocator,
	Supported:             true,
	Classes:               ClassesR13,
	ObjectOffsetsAbsolute: true,
	ObjSizeAfterGraphic:   true,
	ByLayerLTypeFlag:      true,
	LayerStateBits:        true,
	TolerateHandleErrors:  true,
	ReadTypePrefix:        readBSType,
}

var strategies = map[Version]Strategy{
	R13: legacy,
	R14: legacy,
	R2000: {
		Container:             ContainerLocator,
		Supported:             true,
		Classes:               ClassesR13,
		ObjectOffsetsAbsolute: true,
		ObjSizeBeforeHandle:   true,
		LTypePlotFlags:        true,
		Lineweight:            true,
		CompactBodies:         true,
		ReadTypePrefix:        readBSType,
	},
	R2004: {
		Container:           ContainerPaged,
		Supported:           true,
		Classes:             ClassesR2004,
		ObjSizeBeforeHandle: true,
		XDicMissingFlag:     true,
		EncodedColor:        true,
		LTypePlotFlags:      true,
		Lineweight:          true,
		CompactBodies:       true,
		MTextBackground:     true,
		OwnedCounts:         true,
		LayerColorScan:      true,
		ReadTypePrefix:      readBSType,
	},
	R2007: {
		Container:            ContainerPagedR2007,
		Supported:            false,
		Classes:              ClassesNone,
		SplitStreams:         true,
		StringStream:         true,
		ObjSizeBeforeHandle:  true,
		XDicMissingFlag:      true,
		EncodedColor:         true,
		LTypePlotFlags:       true,
		MaterialShadow:       true,
		Lineweight:           true,
		CompactBodies:        true,
		MTextRectHeight:      true,
		MTextBackground:      true,
		OwnedCounts:          true,
		LayerColorScan:       true,
		BlockUnits:           true,
		TolerateHandleErrors: true,
		LayerOnlyHandles:     true,
		ReadTypePrefix:       readBSType,
	},
	R2010: splitStream(false),
	R2013: splitStream(true),
	R2018: splitStream(true),
}

func splitStream(dsFlag bool) Strategy {
	return Strategy{
		Container:            ContainerPaged,
		Supported:            true,
		Classes:              ClassesNone,
		SplitStreams:         true,
		StringStream:         true,
		GraphicSizeBLL:       true,
		XDicMissingFlag:      true,
		DSBinaryFlag:         dsFlag,
		EncodedColor:         true,
		LTypePlotFlags:       true,
		MaterialShadow:       true,
		VisualStyles:         true,
		Lineweight:           true,
		CompactBodies:        true,
		MTextRectHeight:      true,
		MTextBackground:      true,
		LwPolyVertexIDs:      true,
		OwnedCounts:          true,
		LayerColorScan:       true,
		BlockUnits:           true,
		TolerateHandleErrors: true,
		LayerOnlyHandles:     true,
		ReadTypePrefix:       readUMCAndOT,
	}
}

// Resolve returns the layout strategy for v
func Resolve(v Version) (*Strategy, error) {
	s, ok := strategies[v]
	if !ok {
		return nil, dwgerr.Newf(dwgerr.KindUnsupported, "unsupported DWG version: %s", v)
	}
	s.Version = v
	return &s, nil
}

// ResolveSupported is Resolve plus a check that the container can be read
func ResolveSupported(v Version) (*Strategy, error) {
	s, err := Resolve(v)
	if err != nil {
		return nil, err
	}
	if !s.Supported {
		return nil, dwgerr.Newf(dwgerr.KindUnsupported, "%s container is not supported", v)
	}
	return s, nil
}
