package objects

import (
	"fmt"
	"strings"
)

// Fixed type codes
const (
	TypeText           uint16 = 0x01
	TypeAttrib         uint16 = 0x02
	TypeAttdef         uint16 = 0x03
	TypeBlock          uint16 = 0x04
	TypeEndblk         uint16 = 0x05
	TypeSeqend         uint16 = 0x06
	TypeInsert         uint16 = 0x07
	TypeMInsert        uint16 = 0x08
	TypeVertex2D       uint16 = 0x0A
	TypePolyline2D     uint16 = 0x0F
	TypeArc            uint16 = 0x11
	TypeCircle         uint16 = 0x12
	TypeLine           uint16 = 0x13
	TypeDimLinear      uint16 = 0x15
	TypeDimRadius      uint16 = 0x19
	TypeDimDiameter    uint16 = 0x1A
	TypePoint          uint16 = 0x1B
	TypeEllipse        uint16 = 0x23
	TypeRegion         uint16 = 0x25
	Type3DSolid        uint16 = 0x26
	TypeBody           uint16 = 0x27
	TypeRay            uint16 = 0x28
	TypeXLine          uint16 = 0x29
	TypeDictionary     uint16 = 0x2A
	TypeMText          uint16 = 0x2C
	TypeBlockControl   uint16 = 0x30
	TypeBlockHeader    uint16 = 0x31
	TypeLayerControl   uint16 = 0x32
	TypeLayer          uint16 = 0x33
	TypeLwPolyline     uint16 = 0x4D
	FirstDynamicType   uint16 = 500
	AcisLinkTableType  uint16 = 0x214
	AcisHeaderType     uint16 = 0x221
	AcisPayloadMinType uint16 = 0x222
	AcisPayloadMaxType uint16 = 0x225
)

var typeNames = map[uint16]string{
	0x01: "TEXT",
	0x02: "ATTRIB",
	0x03: "ATTDEF",
	0x04: "BLOCK",
	0x05: "ENDBLK",
	0x06: "SEQEND",
	0x07: "INSERT",
	0x08: "MINSERT",
	0x0A: "VERTEX_2D",
	0x0B: "VERTEX_3D",
	0x0C: "VERTEX_MESH",
	0x0D: "VERTEX_PFACE",
	0x0E: "VERTEX_PFACE_FACE",
	0x0F: "POLYLINE_2D",
	0x10: "POLYLINE_3D",
	0x11: "ARC",
	0x12: "CIRCLE",
	0x13: "LINE",
	0x14: "DIM_ORDINATE",
	0x15: "DIM_LINEAR",
	0x16: "DIM_ALIGNED",
	0x17: "DIM_ANG3PT",
	0x18: "DIM_ANG2LN",
	0x19: "DIM_RADIUS",
	0x1A: "DIM_DIAMETER",
	0x1B: "POINT",
	0x1C: "3DFACE",
	0x1D: "POLYLINE_PFACE",
	0x1E: "POLYLINE_MESH",
	0x1F: "SOLID",
	0x20: "TRACE",
	0x21: "SHAPE",
	0x22: "VIEWPORT",
	0x23: "ELLIPSE",
	0x24: "SPLINE",
	0x25: "REGION",
	0x26: "3DSOLID",
	0x27: "BODY",
	0x28: "RAY",
	0x29: "XLINE",
	0x2A: "DICTIONARY",
	0x2B: "OLEFRAME",
	0x2C: "MTEXT",
	0x2D: "LEADER",
	0x2E: "TOLERANCE",
	0x2F: "MLINE",
	0x30: "BLOCK_CONTROL",
	0x31: "BLOCK_HEADER",
	0x32: "LAYER_CONTROL",
	0x33: "LAYER",
	0x34: "STYLE_CONTROL",
	0x35: "STYLE",
	0x38: "LTYPE_CONTROL",
	0x39: "LTYPE",
	0x3C: "VIEW_CONTROL",
	0x3D: "VIEW",
	0x3E: "UCS_CONTROL",
	0x3F: "UCS",
	0x40: "VPORT_CONTROL",
	0x41: "VPORT",
	0x42: "APPID_CONTROL",
	0x43: "APPID",
	0x44: "DIMSTYLE_CONTROL",
	0x45: "DIMSTYLE",
	0x46: "VP_ENT_HDR_CONTROL",
	0x47: "VP_ENT_HDR",
	0x48: "GROUP",
	0x49: "MLINESTYLE",
	0x4A: "OLE2FRAME",
	0x4C: "LONG_TRANSACTION",
	0x4D: "LWPOLYLINE",
	0x4E: "HATCH",
	0x4F: "XRECORD",
	0x50: "ACDBPLACEHOLDER",
	0x51: "VBA_PROJECT",
	0x52: "LAYOUT",
}

// aliases accepted by BuiltinCode in addition to the canonical names
var typeAliases = map[string]uint16{
	"DIMENSION": TypeDimLinear,
}

var builtinCodes = func() map[string]uint16 {
	m := make(map[string]uint16, len(typeNames)+len(typeAliases))
	for code, name := range typeNames {
		m[name] = code
	}
	for name, code := range typeAliases {
		m[name] = code
	}
	return m
}()

// TypeName returns the fixed name of a type code
func TypeName(code uint16) string {
	if name, ok := typeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%X)", code)
}

// BuiltinCode maps a canonical type name to its fixed code
func BuiltinCode(name string) (uint16, bool) {
	code, ok := builtinCodes[strings.ToUpper(name)]
	return code, ok
}

// IsEntityCode reports whether a fixed code denotes a graphical entity
func IsEntityCode(code uint16) bool {
	switch {
	case code >= 0x01 && code <= 0x2F:
		return code != TypeDictionary
	case code == 0x4A, code == 0x4C, code == 0x4D, code == 0x4E:
		return true
	}
	return false
}

// TypeClass returns "E" for entities, "O" for other fixed objects and "" for
// codes without a fixed meaning
func TypeClass(code uint16) string {
	if _, ok := typeNames[code]; !ok {
		return ""
	}
	if IsEntityCode(code) {
		return "E"
	}
	return "O"
}

// IsDimensionCode reports whether the code is one of the dimension records
// whose common handle block carries two extra references
func IsDimensionCode(code uint16) bool {
	return code == TypeDimLinear || code == TypeDimRadius || code == TypeDimDiameter
}

// IsAcisCode reports whether the code is in the ACIS-family range
func IsAcisCode(code uint16) bool {
	return code == TypeRegion || code == Type3DSolid || code == TypeBody ||
		(code >= AcisLinkTableType && code <= AcisPayloadMaxType)
}
