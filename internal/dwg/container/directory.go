package container

import "fmt"

// Well-known section names
const (
	SectionHeader   = "AcDb:Header"
	SectionClasses  = "AcDb:Classes"
	SectionHandles  = "AcDb:Handles"
	SectionObjects  = "AcDb:AcDbObjects"
	SectionTemplate = "AcDb:Template"
)

// SectionRecord is one entry of the section directory
type SectionRecord struct {
	RecordNo uint8  `json:"record_no"`
	Name     string `json:"name"`
	Offset   uint64 `json:"offset"`
	Size     uint64 `json:"size"`
}

// Label returns the section name or a synthetic label for unnamed records
func (r SectionRecord) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("record%d", r.RecordNo)
}

// Directory is the ordered list of sections in a file
type Directory struct {
	Records    []SectionRecord `json:"records"`
	CRC        uint16          `json:"crc"`
	SentinelOK bool            `json:"sentinel_ok"`
}

// Find returns the index of the first record with the given name
func (d Directory) Find(name string) (int, bool) {
	for i, r := range d.Records {
		if r.Name == name {
			return i, true
		}
	}
	return -1, false
}

// FindRecordNo returns the index of the first record with the given number
func (d Directory) FindRecordNo(no uint8) (int, bool) {
	for i, r := range d.Records {
		if r.RecordNo == no {
			return i, true
		}
	}
	return -1, false
}
