// Package version detects the drawing revision and resolves it to a single
// Strategy describing every layout difference the decoder cares about.
package version

import (
	"bytes"
	"fmt"

	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

// Version is a drawing format revision
type Version int

const (
	Unknown Version = iota
	R13
	R14
	R2000
	R2004
	R2007
	R2010
	R2013
	R2018
)

var tags = []struct {
	tag     string
	version Version
	name    string
}{
	{"AC1012", R13, "R13"},
	{"AC1014", R14, "R14"},
	{"AC1015", R2000, "R2000"},
	{"AC1018", R2004, "R2004"},
	{"AC1021", R2007, "R2007"},
	{"AC1024", R2010, "R2010"},
	{"AC1027", R2013, "R2013"},
	{"AC1032", R2018, "R2018"},
}

// String returns a string representation of the Version
func (v Version) String() string {
	for _, t := range tags {
		if t.version == v {
			return t.name
		}
	}
	return "unknown"
}

// Tag returns the six-byte file tag, e.g. "AC1015"
func (v Version) Tag() string {
	for _, t := range tags {
		if t.version == v {
			return t.tag
		}
	}
	return ""
}

// AtLeast reports whether v is the same as or newer than other
func (v Version) AtLeast(other Version) bool {
	return v >= other
}

// Detect reads the version tag at offset 0
func Detect(data []byte) (Version, error) {
	if len(data) < 6 {
		return Unknown, dwgerr.New(dwgerr.KindFormat, "file too short for version tag")
	}
	head := data[:6]
	for _, t := range tags {
		if bytes.Equal(head, []byte(t.tag)) {
			return t.version, nil
		}
	}
	return Unknown, dwgerr.Newf(dwgerr.KindUnsupported, "unsupported DWG version: %q", string(head))
}

// ParseTag maps a tag or a release name ("AC1015", "R2000") to a Version
func ParseTag(s string) (Version, error) {
	for _, t := range tags {
		if s == t.tag || s == t.name {
			return t.version, nil
		}
	}
	return Unknown, fmt.Errorf("unknown DWG version %q", s)
}
