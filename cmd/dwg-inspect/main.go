package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/a3tai/dwg-reader/internal/config"
	"github.com/a3tai/dwg-reader/internal/dwg/decoder"
	"github.com/a3tai/dwg-reader/internal/dwg/diag"
)

// InspectionResult is the complete output of one inspection
type InspectionResult struct {
	FilePath    string          `json:"file_path"`
	Success     bool            `json:"success"`
	Report      *decoder.Report `json:"report,omitempty"`
	Diagnostics map[string]int  `json:"diagnostics,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func main() {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		fmt.Println("dwg-inspect", config.DefaultConfig().Version)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(os.Stderr, "[inspect] ", log.LstdFlags)
	result, err := inspect(cfg, diag.NewLogSink(logger, cfg.Level()))
	if err != nil {
		logger.Printf("Error inspecting drawing: %v", err)
		os.Exit(1)
	}
	if err := outputResults(os.Stdout, cfg.Format, result); err != nil {
		logger.Printf("Error outputting results: %v", err)
		os.Exit(1)
	}
	if !result.Success {
		os.Exit(2)
	}
}

// inspect opens the drawing and walks every listing once so that the report
// covers the whole file. Decode failures end up in the result rather than
// the returned error.
func inspect(cfg *config.Config, sink diag.Sink) (*InspectionResult, error) {
	data, err := os.ReadFile(cfg.Input)
	if err != nil {
		return nil, errors.Wrap(err, "read drawing")
	}
	result := &InspectionResult{FilePath: cfg.Input}

	rec := diag.NewRecorder(diag.LevelDebug)
	d, err := decoder.New(data, cfg.DecoderOptions(diag.Tee(sink, rec)))
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	if err := walk(d); err != nil {
		result.Error = err.Error()
	}
	report, err := d.Report()
	result.Report = report
	if err != nil && result.Error == "" {
		result.Error = err.Error()
	}
	result.Diagnostics = rec.CountByComponent()
	result.Success = result.Error == ""
	return result, nil
}

func walk(d *decoder.Decoder) error {
	steps := []func() error{
		func() error { _, err := d.ObjectHeaders(); return err },
		func() error { _, err := d.LayerColors(); return err },
		func() error { _, err := d.EntityLayers(); return err },
		func() error { _, err := d.Inserts(); return err },
		func() error { _, err := d.BlockEntityNames(); return err },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func outputResults(w io.Writer, format string, result *InspectionResult) error {
	switch format {
	case config.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case config.FormatText:
		outputText(w, result)
		return nil
	default:
		return errors.Errorf("unsupported output format: %s", format)
	}
}

func outputText(w io.Writer, result *InspectionResult) {
	fmt.Fprintf(w, "File: %s\n", result.FilePath)
	if result.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", result.Error)
	}
	r := result.Report
	if r == nil {
		return
	}
	fmt.Fprintf(w, "Version: %s (code page %d)\n", r.Version, r.CodePage)

	fmt.Fprintf(w, "\nSections (%d):\n", len(r.Sections))
	for _, s := range r.Sections {
		fmt.Fprintf(w, "  %-24s offset=0x%X size=%d\n", s.Name, s.Offset, s.Size)
	}

	fmt.Fprintf(w, "\nObjects: %d indexed, %d skipped\n", r.Objects, r.Skipped)
	fmt.Fprintf(w, "Object map: %d blocks, %d entries, %d recovered, %d dropped\n",
		r.Index.Blocks, r.Index.Entries, r.Index.Recovered, r.Index.Dropped)
	for _, tc := range r.Types {
		fmt.Fprintf(w, "  %5d  %-20s %d\n", tc.TypeCode, tc.TypeName, tc.Count)
	}

	fmt.Fprintf(w, "\nBlock names: %d recovered header names, %d targeted searches, %d by adjacency (%d conflicts)\n",
		r.Names.RecoveredHeaderNames, r.Names.TargetedSearches, r.Names.AdjacencyNames, r.Names.AdjacencyConflicts)
	fmt.Fprintf(w, "Section cache: %d/%d, %d hits, %d misses\n", r.Cache.Size, r.Cache.Capacity, r.Cache.Hits, r.Cache.Misses)
	fmt.Fprintf(w, "Errors: %d, warnings: %d\n", r.ErrorCount, r.WarningCount)
	fmt.Fprintf(w, "%s\n", r.Summary)

	if len(result.Diagnostics) > 0 {
		components := make([]string, 0, len(result.Diagnostics))
		for c := range result.Diagnostics {
			components = append(components, c)
		}
		sort.Strings(components)
		fmt.Fprintf(w, "\nDiagnostics:\n")
		for _, c := range components {
			fmt.Fprintf(w, "  %-12s %d\n", c, result.Diagnostics[c])
		}
	}
	for _, p := range r.Panics {
		fmt.Fprintf(w, "\nRecovered panic in %s: %s\n", p.Context, p.Message)
	}
}
