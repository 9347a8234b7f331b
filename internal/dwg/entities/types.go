package entities

import "github.com/a3tai/dwg-reader/internal/dwg/bitstream"

// Point3 is a 3D point or vector
type Point3 = bitstream.Point3

// Point2 is a 2D point
type Point2 = bitstream.Point2

// Base carries the fields every decoded entity shares. Handle is always
// the first field of a record's flat form; Color, Layer and Recovered are
// extras that the flat form leaves out.
type Base struct {
	Handle uint64 `json:"handle"`
	Color  Color  `json:"color"`
	Layer  uint64 `json:"layer"`
	// Recovered marks values chosen by a scoring heuristic instead of the
	// canonical layout
	Recovered bool `json:"recovered,omitempty"`
}

// Line is a LINE entity. Flat order: handle, start x y z, end x y z.
type Line struct {
	Base
	Start     Point3  `json:"start"`
	End       Point3  `json:"end"`
	Thickness float64 `json:"thickness"`
	Extrusion Point3  `json:"extrusion"`
}

// Point is a POINT entity. Flat order: handle, location x y z, x axis
// angle.
type Point struct {
	Base
	Location  Point3  `json:"location"`
	Thickness float64 `json:"thickness"`
	Extrusion Point3  `json:"extrusion"`
	XAxisAng  float64 `json:"x_axis_angle"`
}

// Arc is an ARC entity. Flat order: handle, center x y z, radius, start
// angle, end angle. Angles are radians.
type Arc struct {
	Base
	Center     Point3  `json:"center"`
	Radius     float64 `json:"radius"`
	Thickness  float64 `json:"thickness"`
	Extrusion  Point3  `json:"extrusion"`
	StartAngle float64 `json:"start_angle"`
	EndAngle   float64 `json:"end_angle"`
}

// Circle is a CIRCLE entity. Flat order: handle, center x y z, radius.
type Circle struct {
	Base
	Center    Point3  `json:"center"`
	Radius    float64 `json:"radius"`
	Thickness float64 `json:"thickness"`
	Extrusion Point3  `json:"extrusion"`
}

// Ellipse is an ELLIPSE entity. Flat order: handle, center, major axis,
// extrusion, axis ratio, start angle, end angle.
type Ellipse struct {
	Base
	Center     Point3  `json:"center"`
	MajorAxis  Point3  `json:"major_axis"`
	Extrusion  Point3  `json:"extrusion"`
	AxisRatio  float64 `json:"axis_ratio"`
	StartAngle float64 `json:"start_angle"`
	EndAngle   float64 `json:"end_angle"`
}

// Ray is a RAY or XLINE entity: a point and a direction
type Ray struct {
	Base
	Point  Point3 `json:"point"`
	Vector Point3 `json:"vector"`
}

// TextMetrics groups the TEXT sizing fields
type TextMetrics struct {
	Thickness float64 `json:"thickness"`
	Oblique   float64 `json:"oblique"`
	Height    float64 `json:"height"`
	Rotation  float64 `json:"rotation"`
	Width     float64 `json:"width_factor"`
}

// TextAlignment groups the TEXT generation and justification flags
type TextAlignment struct {
	Generation uint16 `json:"generation"`
	HAlign     uint16 `json:"halign"`
	VAlign     uint16 `json:"valign"`
}

// Text is a TEXT entity. Flat order is the field order below after the
// handle, with Metrics and Align as nested groups. Alignment and Style are
// nil when the record omits them.
type Text struct {
	Base
	Value     string        `json:"text"`
	Insertion Point3        `json:"insertion"`
	Alignment *Point2       `json:"alignment,omitempty"`
	Extrusion Point3        `json:"extrusion"`
	Metrics   TextMetrics   `json:"metrics"`
	Align     TextAlignment `json:"align"`
	Style     *uint64       `json:"style,omitempty"`
}

// MTextBackground is the R2004+ background fill block of MTEXT
type MTextBackground struct {
	Flags        uint32   `json:"flags"`
	Scale        *float64 `json:"scale,omitempty"`
	ColorIndex   *uint16  `json:"color_index,omitempty"`
	TrueColor    *uint32  `json:"true_color,omitempty"`
	Transparency *uint32  `json:"transparency,omitempty"`
}

// MText is an MTEXT entity. Flat order: handle, text, insertion,
// extrusion, x direction, rect width, text height, attachment, drawing
// direction, background.
type MText struct {
	Base
	Value         string          `json:"text"`
	Insertion     Point3          `json:"insertion"`
	Extrusion     Point3          `json:"extrusion"`
	XDirection    Point3          `json:"x_direction"`
	RectWidth     float64         `json:"rect_width"`
	RectHeight    float64         `json:"rect_height,omitempty"`
	TextHeight    float64         `json:"text_height"`
	Attachment    uint16          `json:"attachment"`
	DrawingDir    uint16          `json:"drawing_direction"`
	ExtentsHeight float64         `json:"extents_height"`
	ExtentsWidth  float64         `json:"extents_width"`
	LineSpacing   uint16          `json:"line_spacing_style"`
	LineFactor    float64         `json:"line_spacing_factor"`
	Background    MTextBackground `json:"background"`
}

// LwPolyline is an LWPOLYLINE entity. Flat order: handle, flags, points,
// bulges, widths, const width. Bulges, VertexIDs and Widths are empty
// unless the flags announce them.
type LwPolyline struct {
	Base
	Flags      uint16    `json:"flags"`
	ConstWidth *float64  `json:"const_width,omitempty"`
	Elevation  float64   `json:"elevation"`
	Thickness  float64   `json:"thickness"`
	Normal     Point3    `json:"normal"`
	Points     []Point2  `json:"points"`
	Bulges     []float64 `json:"bulges,omitempty"`
	VertexIDs  []uint32  `json:"vertex_ids,omitempty"`
	Widths     []Point2  `json:"widths,omitempty"`
}

// Insert is an INSERT entity. Flat order: handle, position x y z, scale
// x y z, rotation, then the block name when one was resolved. The name is
// not part of this type; decoder listings attach it and leave it empty when
// no BLOCK_HEADER name could be found. BlockHeader is nil when the handle
// could not be recovered.
type Insert struct {
	Base
	Position    Point3   `json:"position"`
	Scale       Point3   `json:"scale"`
	Rotation    float64  `json:"rotation"`
	Extrusion   Point3   `json:"extrusion"`
	HasAttribs  bool     `json:"has_attribs"`
	OwnedCount  uint32   `json:"owned_count,omitempty"`
	BlockHeader *uint64  `json:"block_header,omitempty"`
	Owned       []uint64 `json:"owned,omitempty"`
	SeqEnd      uint64   `json:"seqend,omitempty"`
}

// MInsert is a MINSERT entity: an INSERT repeated on a grid. Flat order
// follows Insert without the name, then a group of columns, rows, column
// spacing, row spacing and the optional block name.
type MInsert struct {
	Insert
	Columns       uint16  `json:"columns"`
	Rows          uint16  `json:"rows"`
	ColumnSpacing float64 `json:"column_spacing"`
	RowSpacing    float64 `json:"row_spacing"`
}

// Block is a BLOCK or ENDBLK entity
type Block struct {
	Base
	TypeCode uint16 `json:"type_code"`
	Name     string `json:"name,omitempty"`
}

// Acis is a 3DSOLID, REGION or BODY entity. The modeler payload is not
// decoded; Refs are the handles that follow the common handle block.
type Acis struct {
	Base
	TypeCode uint16   `json:"type_code"`
	Refs     []uint64 `json:"refs"`
}

// Layer is the part of a LAYER table record the decoder exposes
type Layer struct {
	Handle     uint64  `json:"handle"`
	Name       string  `json:"name,omitempty"`
	Flags      uint16  `json:"flags"`
	ColorIndex uint16  `json:"color_index"`
	TrueColor  *uint32 `json:"true_color,omitempty"`
	// Variant is the winning layout variant for R2004+ records
	Variant int `json:"variant"`
}

// BlockHeader is a BLOCK_HEADER table record
type BlockHeader struct {
	Handle      uint64 `json:"handle"`
	Name        string `json:"name"`
	Anonymous   bool   `json:"anonymous"`
	HasAttribs  bool   `json:"has_attribs"`
	IsXRef      bool   `json:"is_xref"`
	XRefOverlay bool   `json:"xref_overlaid"`
	OwnedCount  uint32 `json:"owned_count,omitempty"`
	BasePoint   Point3 `json:"base_point"`
	XRefPath    string `json:"xref_path,omitempty"`
	// Block is the BLOCK entity the record owns, when the handle block parsed
	Block uint64 `json:"block,omitempty"`
}
