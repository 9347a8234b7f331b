package decoder

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/a3tai/dwg-reader/internal/dwg/diag"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

const maxPanicRecords = 32

// PanicRecord stores information about a panic raised while decoding
type PanicRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
	StackTrace string    `json:"stack_trace"`
	Context    string    `json:"context"`
}

// guard turns panics in decode code into decode errors and keeps the most
// recent ones for the report
type guard struct {
	sink   diag.Sink
	mu     sync.Mutex
	panics []PanicRecord
	total  int
}

func newGuard(sink diag.Sink) *guard {
	return &guard{sink: sink}
}

// run calls fn, converting a panic into a KindDecode error
func (g *guard) run(operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			g.record(operation, r, debug.Stack())
			err = dwgerr.Newf(dwgerr.KindDecode, "%s panicked: %v", operation, r)
		}
	}()
	return fn()
}

func (g *guard) record(operation string, value interface{}, stack []byte) {
	rec := PanicRecord{
		Timestamp:  time.Now(),
		Message:    dwgerr.Newf(dwgerr.KindDecode, "%v", value).Message,
		StackTrace: string(stack),
		Context:    operation,
	}
	g.mu.Lock()
	g.total++
	g.panics = append(g.panics, rec)
	if len(g.panics) > maxPanicRecords {
		g.panics = g.panics[len(g.panics)-maxPanicRecords:]
	}
	g.mu.Unlock()

	diag.Emitf(g.sink, diag.LevelError, component, diag.Fields{"operation": operation}, "recovered panic: %v", value)
}

// Panics returns a copy of the recent panic records
func (g *guard) Panics() []PanicRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]PanicRecord, len(g.panics))
	copy(out, g.panics)
	return out
}

// Count returns the number of panics recovered since creation
func (g *guard) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.total
}
