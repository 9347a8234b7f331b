package main

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/a3tai/dwg-reader/internal/dwg/decoder"
)

type listFunc func(*decoder.Decoder) (interface{}, error)

var listings = map[string]listFunc{
	"sections":      func(d *decoder.Decoder) (interface{}, error) { return d.Sections(), nil },
	"objects":       func(d *decoder.Decoder) (interface{}, error) { return d.ObjectMapEntries() },
	"headers":       func(d *decoder.Decoder) (interface{}, error) { return d.ObjectHeaders() },
	"classes":       func(d *decoder.Decoder) (interface{}, error) { return d.DynamicTypes() },
	"lines":         func(d *decoder.Decoder) (interface{}, error) { return d.Lines() },
	"arcs":          func(d *decoder.Decoder) (interface{}, error) { return d.Arcs() },
	"circles":       func(d *decoder.Decoder) (interface{}, error) { return d.Circles() },
	"points":        func(d *decoder.Decoder) (interface{}, error) { return d.Points() },
	"ellipses":      func(d *decoder.Decoder) (interface{}, error) { return d.Ellipses() },
	"rays":          func(d *decoder.Decoder) (interface{}, error) { return d.Rays() },
	"xlines":        func(d *decoder.Decoder) (interface{}, error) { return d.XLines() },
	"texts":         func(d *decoder.Decoder) (interface{}, error) { return d.Texts() },
	"mtexts":        func(d *decoder.Decoder) (interface{}, error) { return d.MTexts() },
	"lwpolylines":   func(d *decoder.Decoder) (interface{}, error) { return d.LwPolylines() },
	"solids":        func(d *decoder.Decoder) (interface{}, error) { return d.Solids() },
	"inserts":       func(d *decoder.Decoder) (interface{}, error) { return d.Inserts() },
	"minserts":      func(d *decoder.Decoder) (interface{}, error) { return d.MInserts() },
	"block-headers": func(d *decoder.Decoder) (interface{}, error) { return d.BlockHeaderNames() },
	"block-names":   func(d *decoder.Decoder) (interface{}, error) { return d.BlockEntityNames() },
	"block-records": func(d *decoder.Decoder) (interface{}, error) { return d.BlockRecords() },
	"layers":        func(d *decoder.Decoder) (interface{}, error) { return d.LayerColors() },
	"entity-layers": func(d *decoder.Decoder) (interface{}, error) { return d.EntityLayers() },
	"handle-refs":   func(d *decoder.Decoder) (interface{}, error) { return d.HandleStreamRefs(nil) },
	"acis":          func(d *decoder.Decoder) (interface{}, error) { return d.AcisCandidateInfos(nil) },
}

var defaultListings = []string{
	"lines", "arcs", "circles", "points", "ellipses", "texts", "mtexts", "lwpolylines", "layers",
}

func listingNames() []string {
	out := make([]string, 0, len(listings))
	for name := range listings {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type listing struct {
	Name string      `json:"name"`
	Rows interface{} `json:"rows"`
}

// collectListings runs the named listings in order. An unknown name fails
// before anything is decoded.
func collectListings(d *decoder.Decoder, names []string) ([]listing, error) {
	for _, name := range names {
		if _, ok := listings[name]; !ok {
			return nil, errors.Errorf("unknown listing %q (available: %s)", name, strings.Join(listingNames(), ", "))
		}
	}
	out := make([]listing, 0, len(names))
	for _, name := range names {
		rows, err := listings[name](d)
		if err != nil {
			return nil, errors.Wrap(err, name)
		}
		out = append(out, listing{Name: name, Rows: rows})
	}
	return out, nil
}

type document struct {
	File     string    `json:"file"`
	Version  string    `json:"version"`
	Listings []listing `json:"listings"`
}

func writeListings(w io.Writer, format, file, ver string, results []listing) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(document{File: file, Version: ver, Listings: results})
	}
	fmt.Fprintf(w, "%s (%s)\n", file, ver)
	for _, l := range results {
		rows := reflect.ValueOf(l.Rows)
		if rows.Kind() != reflect.Slice {
			fmt.Fprintf(w, "\n%s:\n  %+v\n", l.Name, l.Rows)
			continue
		}
		fmt.Fprintf(w, "\n%s (%d):\n", l.Name, rows.Len())
		for i := 0; i < rows.Len(); i++ {
			fmt.Fprintf(w, "  %+v\n", rows.Index(i).Interface())
		}
	}
	return nil
}
