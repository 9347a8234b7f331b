// Package writer encodes a small document model as an AC1015 (R2000)
// drawing. It is write-once: every entity is laid out the canonical way and
// nothing is left for the decoder to recover.
package writer

import (
	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

// Point3 is a 3D point or vector
type Point3 = bitstream.Point3

// Point2 is a 2D point
type Point2 = bitstream.Point2

// ColorByLayer is the colour index entities get when none is set
const ColorByLayer uint16 = 256

// Document is what Write encodes
type Document struct {
	Version  version.Version
	Layers   []Layer
	Entities []Entity
	// CodePage is stored in the file header; zero writes ANSI 1252
	CodePage bitstream.CodePage
}

// NewDocument returns an R2000 document with the default layer "0"
func NewDocument() *Document {
	return &Document{Version: version.R2000, Layers: []Layer{DefaultLayer()}}
}

// Add appends entities to the document
func (d *Document) Add(e ...Entity) *Document {
	d.Entities = append(d.Entities, e...)
	return d
}

// Layer is a LAYER table record
type Layer struct {
	Name       string
	ColorIndex uint16
	Flags      uint16
	// Handle is kept when the writer preserves input handles
	Handle uint64
}

// DefaultLayer is layer "0" in white
func DefaultLayer() Layer {
	return Layer{Name: "0", ColorIndex: 7}
}

// Common holds the properties every entity shares
type Common struct {
	// Handle is kept when the writer preserves input handles; zero allocates
	Handle uint64
	// Layer names a document layer; empty means the first layer
	Layer string
	// ColorIndex nil means BYLAYER
	ColorIndex *uint16
}

// Entity is one of the entity types the writer supports
type Entity interface {
	TypeCode() uint16
	common() *Common
	writeBody(w *bitstream.Writer, s *version.Strategy) error
}

// Line is a LINE entity
type Line struct {
	Common
	Start, End Point3
}

// Point is a POINT entity
type Point struct {
	Common
	Location Point3
	XAxisAng float64
}

// Ray is a RAY entity
type Ray struct {
	Common
	Start  Point3
	Vector Point3
}

// XLine is an XLINE entity
type XLine struct {
	Common
	Start  Point3
	Vector Point3
}

// Arc is an ARC entity; angles are in radians
type Arc struct {
	Common
	Center     Point3
	Radius     float64
	StartAngle float64
	EndAngle   float64
}

// Circle is a CIRCLE entity
type Circle struct {
	Common
	Center Point3
	Radius float64
}

// LwPolyline is an LWPOLYLINE entity. Bulges and Widths are written when
// non-empty and must then have one element per vertex.
type LwPolyline struct {
	Common
	Closed     bool
	Vertices   []Point2
	ConstWidth *float64
	Bulges     []float64
	Widths     []Point2
}

// Text is a TEXT entity
type Text struct {
	Common
	Value    string
	Insert   Point3
	Height   float64
	Rotation float64
}

// MText is an MTEXT entity
type MText struct {
	Common
	Value      string
	Insert     Point3
	XDirection Point3
	RectWidth  float64
	TextHeight float64
	Attachment uint16
	DrawingDir uint16
}

func (e *Line) TypeCode() uint16       { return objects.TypeLine }
func (e *Point) TypeCode() uint16      { return objects.TypePoint }
func (e *Ray) TypeCode() uint16        { return objects.TypeRay }
func (e *XLine) TypeCode() uint16      { return objects.TypeXLine }
func (e *Arc) TypeCode() uint16        { return objects.TypeArc }
func (e *Circle) TypeCode() uint16     { return objects.TypeCircle }
func (e *LwPolyline) TypeCode() uint16 { return objects.TypeLwPolyline }
func (e *Text) TypeCode() uint16       { return objects.TypeText }
func (e *MText) TypeCode() uint16      { return objects.TypeMText }

func (c *Common) common() *Common { return c }

// Color returns a pointer to a colour index, for Common.ColorIndex
func Color(index uint16) *uint16 { return &index }
