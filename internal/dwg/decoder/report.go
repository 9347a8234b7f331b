package decoder

import (
	"sort"

	"github.com/a3tai/dwg-reader/internal/dwg/container"
	"github.com/a3tai/dwg-reader/internal/dwg/objindex"
	"github.com/a3tai/dwg-reader/internal/dwg/resolve"
)

// TypeCount is one row of the type histogram
type TypeCount struct {
	TypeCode uint16 `json:"type_code"`
	TypeName string `json:"type_name"`
	Count    int    `json:"count"`
}

// Report summarizes what a Decoder has seen
type Report struct {
	Version      string               `json:"version"`
	CodePage     uint16               `json:"code_page"`
	Sections     []Section            `json:"sections"`
	Objects      int                  `json:"objects"`
	Skipped      int                  `json:"skipped"`
	Types        []TypeCount          `json:"types"`
	Index        objindex.Stats       `json:"index"`
	Cache        container.CacheStats `json:"cache"`
	Names        resolve.Stats        `json:"names"`
	ErrorCount   int                  `json:"error_count"`
	WarningCount int                  `json:"warning_count"`
	Summary      string               `json:"summary"`
	Panics       []PanicRecord        `json:"panics,omitempty"`
}

// Report indexes the file if needed and summarizes the decode so far. A
// load failure still yields the container part of the report.
func (d *Decoder) Report() (*Report, error) {
	r := &Report{
		Version:  d.version.String(),
		CodePage: uint16(d.CodePage()),
		Sections: d.Sections(),
	}
	err := d.load()
	if err == nil {
		r.Objects = len(d.objs)
		r.Skipped = d.skipped
		r.Index = d.index.Stats()
		r.Types = d.histogram()
		if d.names != nil {
			r.Names = d.names.Stats()
		}
	}
	r.Cache = d.cont.CacheStats()
	r.ErrorCount, r.WarningCount = d.policy.Errors.Count()
	r.Summary = d.policy.Errors.Summary()
	r.Panics = d.guard.Panics()
	return r, err
}

func (d *Decoder) histogram() []TypeCount {
	counts := make(map[uint16]int)
	for _, o := range d.objs {
		counts[o.Header.TypeCode]++
	}
	out := make([]TypeCount, 0, len(counts))
	for code, n := range counts {
		out = append(out, TypeCount{TypeCode: code, TypeName: d.types.Name(code), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].TypeCode < out[j].TypeCode
	})
	return out
}
