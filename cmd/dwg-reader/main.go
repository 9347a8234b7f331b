package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/pkg/errors"

	"github.com/a3tai/dwg-reader/internal/config"
	"github.com/a3tai/dwg-reader/internal/dwg/decoder"
	"github.com/a3tai/dwg-reader/internal/dwg/diag"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging sends diagnostics to stderr so that stdout carries only the
// decoded listings
func setupLogging(cfg *config.Config, w io.Writer) (*log.Logger, diag.Sink) {
	flags := log.LstdFlags
	if cfg.IsDebug() {
		flags |= log.Lmicroseconds
	}
	logger := log.New(w, "[dwg] ", flags)
	return logger, diag.NewLogSink(logger, cfg.Level())
}

func main() {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion()
		return
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if version != "dev" {
		cfg.Version = version
	}

	logger, sink := setupLogging(cfg, os.Stderr)
	if cfg.IsDebug() {
		logger.Printf("Starting with configuration: %s", cfg.String())
	}

	if err := run(cfg, sink, os.Stdout); err != nil {
		logger.Printf("Decode failed: %v", err)
		os.Exit(1)
	}
}

// run decodes cfg.Input and writes the requested listings to out
func run(cfg *config.Config, sink diag.Sink, out io.Writer) error {
	data, err := os.ReadFile(cfg.Input)
	if err != nil {
		return errors.Wrap(err, "read drawing")
	}
	d, err := decoder.New(data, cfg.DecoderOptions(sink))
	if err != nil {
		return errors.Wrapf(err, "open %s", cfg.Input)
	}

	names := cfg.Listings
	if len(names) == 0 {
		names = defaultListings
	}
	results, err := collectListings(d, names)
	if err != nil {
		return err
	}
	return writeListings(out, cfg.Format, cfg.Input, d.Version().String(), results)
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("DWG Reader\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
