package objects

import (
	"bytes"
	"sort"
	"strings"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

// Classes section sentinels
var (
	ClassesSentinelBefore = []byte{0x8D, 0xA1, 0xC4, 0xB8, 0xC4, 0xA9, 0xF8, 0xC5, 0xC0, 0xDC, 0xF4, 0x5F, 0xE7, 0xCF, 0xB6, 0x8A}
	ClassesSentinelAfter  = []byte{0x72, 0x5E, 0x3B, 0x47, 0x3B, 0x56, 0x07, 0x3A, 0x3F, 0x23, 0x0B, 0xA0, 0x18, 0x30, 0x49, 0x75}
)

// Class is one custom class definition
type Class struct {
	Number        uint16 `json:"number"`
	ProxyFlags    uint16 `json:"proxy_flags"`
	AppName       string `json:"app_name"`
	CppName       string `json:"cpp_name"`
	DXFName       string `json:"dxf_name"`
	WasZombie     bool   `json:"was_zombie"`
	ItemClassID   uint16 `json:"item_class_id"`
	InstanceCount uint32 `json:"instance_count,omitempty"`
}

// ParseClasses decodes a classes section in the given layout
func ParseClasses(data []byte, layout version.ClassesLayout, cp bitstream.CodePage) ([]Class, error) {
	switch layout {
	case version.ClassesR13:
		return parseClassesR13(data, cp)
	case version.ClassesR2004:
		return parseClassesR2004(data, cp)
	default:
		return nil, nil
	}
}

func readSentinel(r *bitstream.Reader, want []byte, which string) error {
	got, err := r.ReadRCs(len(want))
	if err != nil {
		return dwgerr.Wrap(dwgerr.KindFormat, err, "AcDb:Classes sentinel("+which+")")
	}
	if !bytes.Equal(got, want) {
		return dwgerr.New(dwgerr.KindFormat, "AcDb:Classes sentinel("+which+") mismatch")
	}
	return nil
}

func readClassCore(r *bitstream.Reader, cp bitstream.CodePage) (Class, error) {
	var c Class
	var err error
	if c.Number, err = r.ReadBS(); err != nil {
		return c, err
	}
	if c.ProxyFlags, err = r.ReadBS(); err != nil {
		return c, err
	}
	if c.AppName, err = r.ReadTV(cp); err != nil {
		return c, err
	}
	if c.CppName, err = r.ReadTV(cp); err != nil {
		return c, err
	}
	if c.DXFName, err = r.ReadTV(cp); err != nil {
		return c, err
	}
	zombie, err := r.ReadB()
	if err != nil {
		return c, err
	}
	c.WasZombie = zombie == 1
	if c.ItemClassID, err = r.ReadBS(); err != nil {
		return c, err
	}
	return c, nil
}

// parseClassesR13 keeps every entry decoded before the first failure; the
// trailing CRC and sentinel are not required.
func parseClassesR13(data []byte, cp bitstream.CodePage) ([]Class, error) {
	r := bitstream.NewReader(data)
	if err := readSentinel(r, ClassesSentinelBefore, "before"); err != nil {
		return nil, err
	}
	size, err := r.ReadRL()
	if err != nil {
		return nil, dwgerr.Wrap(dwgerr.KindFormat, err, "AcDb:Classes size")
	}
	end := r.TellBits() + uint64(size)*8

	var classes []Class
	// the last byte may hold padding bits only
	for r.TellBits()+8 <= end {
		c, err := readClassCore(r, cp)
		if err != nil {
			switch dwgerr.KindOf(err) {
			case dwgerr.KindIo, dwgerr.KindFormat, dwgerr.KindDecode:
				return classes, nil
			}
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, nil
}

func parseClassesR2004(data []byte, cp bitstream.CodePage) ([]Class, error) {
	r := bitstream.NewReader(data)
	if err := readSentinel(r, ClassesSentinelBefore, "before"); err != nil {
		return nil, err
	}
	size, err := r.ReadRL()
	if err != nil {
		return nil, err
	}
	maxNumber, err := r.ReadBS()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadRCs(2); err != nil {
		return nil, err
	}
	if _, err := r.ReadB(); err != nil {
		return nil, err
	}

	var classes []Class
	for r.TellBits()/8 <= uint64(size) {
		c, err := readClassCore(r, cp)
		if err != nil {
			return nil, err
		}
		if c.InstanceCount, err = r.ReadBL(); err != nil {
			return nil, err
		}
		// dwg version, maintenance version, two unknown longs
		if _, err = r.ReadBS(); err != nil {
			return nil, err
		}
		if _, err = r.ReadBS(); err != nil {
			return nil, err
		}
		if _, err = r.ReadBL(); err != nil {
			return nil, err
		}
		if _, err = r.ReadBL(); err != nil {
			return nil, err
		}
		classes = append(classes, c)
		if c.Number == maxNumber {
			break
		}
	}

	if _, err := r.ReadCRC(); err != nil {
		return nil, err
	}
	if err := readSentinel(r, ClassesSentinelAfter, "after"); err != nil {
		return nil, err
	}
	return classes, nil
}

// DynamicTypeMap maps file-specific type codes to canonical names
type DynamicTypeMap map[uint16]string

// NewDynamicTypeMap numbers classes from 500 in section order. In the R13
// layout explicit class numbers win when any of them reaches 500.
func NewDynamicTypeMap(classes []Class, layout version.ClassesLayout) DynamicTypeMap {
	m := make(DynamicTypeMap, len(classes))
	explicit := false
	if layout == version.ClassesR13 {
		for _, c := range classes {
			if c.Number >= FirstDynamicType {
				explicit = true
				break
			}
		}
	}
	for i, c := range classes {
		code := int(FirstDynamicType) + i
		if explicit {
			code = int(c.Number)
		}
		if code > 0xFFFF || c.DXFName == "" {
			continue
		}
		m[uint16(code)] = strings.ToUpper(c.DXFName)
	}
	return m
}

// Name resolves a type code through the map and then the fixed table
func (m DynamicTypeMap) Name(code uint16) string {
	if name, ok := m[code]; ok {
		return name
	}
	return TypeName(code)
}

// Class resolves the entity/object class of a type code, using the
// resolved name for dynamic codes
func (m DynamicTypeMap) Class(code uint16) string {
	if c := TypeClass(code); c != "" {
		return c
	}
	if builtin, ok := BuiltinCode(m.Name(code)); ok && IsEntityCode(builtin) {
		return "E"
	}
	return ""
}

// Matches reports whether code is the builtin type or a dynamic alias of it
func (m DynamicTypeMap) Matches(code, builtin uint16) bool {
	if code == builtin {
		return true
	}
	name, ok := m[code]
	return ok && name == TypeName(builtin)
}

// Codes returns the sorted dynamic codes
func (m DynamicTypeMap) Codes() []uint16 {
	out := make([]uint16, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
