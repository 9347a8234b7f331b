// Package diag carries decoder diagnostics through an explicit sink instead of
// process-wide switches.
package diag

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// Level is the verbosity of a diagnostic event
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns a string representation of the Level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name to a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// Fields are key/value pairs attached to an event
type Fields map[string]interface{}

// Event is a single diagnostic record
type Event struct {
	Level     Level
	Component string
	Message   string
	Fields    Fields
}

// String formats the event as "[component] message key=value ..."
func (e Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Component, e.Message)
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	return b.String()
}

// Sink receives diagnostic events. Implementations must be safe for
// concurrent use since the per-object loop may run in parallel.
type Sink interface {
	Enabled(level Level) bool
	Emit(event Event)
}

// Emitf sends a formatted event to sink if the level is enabled
func Emitf(sink Sink, level Level, component string, fields Fields, format string, args ...interface{}) {
	if sink == nil || !sink.Enabled(level) {
		return
	}
	sink.Emit(Event{
		Level:     level,
		Component: component,
		Message:   fmt.Sprintf(format, args...),
		Fields:    fields,
	})
}

type nopSink struct{}

func (nopSink) Enabled(Level) bool { return false }
func (nopSink) Emit(Event)         {}

// Nop returns a sink that discards everything
func Nop() Sink {
	return nopSink{}
}

// LogSink writes events at or above a level to a log.Logger
type LogSink struct {
	logger *log.Logger
	level  Level
}

// NewLogSink creates a sink writing to logger
func NewLogSink(logger *log.Logger, level Level) *LogSink {
	return &LogSink{logger: logger, level: level}
}

// Enabled reports whether events at level are written
func (s *LogSink) Enabled(level Level) bool {
	return s.logger != nil && level >= s.level
}

// Emit writes the event
func (s *LogSink) Emit(event Event) {
	if !s.Enabled(event.Level) {
		return
	}
	s.logger.Printf("%s %s", strings.ToUpper(event.Level.String()), event)
}

// Recorder keeps events in memory
type Recorder struct {
	mu     sync.Mutex
	level  Level
	events []Event
}

// NewRecorder creates a recorder keeping events at or above level
func NewRecorder(level Level) *Recorder {
	return &Recorder{level: level}
}

// Enabled reports whether events at level are kept
func (r *Recorder) Enabled(level Level) bool {
	return level >= r.level
}

// Emit stores the event
func (r *Recorder) Emit(event Event) {
	if !r.Enabled(event.Level) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// CountByComponent returns the number of recorded events per component
func (r *Recorder) CountByComponent() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range r.events {
		counts[e.Component]++
	}
	return counts
}

// Tee fans events out to several sinks
func Tee(sinks ...Sink) Sink {
	return teeSink(sinks)
}

type teeSink []Sink

func (t teeSink) Enabled(level Level) bool {
	for _, s := range t {
		if s != nil && s.Enabled(level) {
			return true
		}
	}
	return false
}

func (t teeSink) Emit(event Event) {
	for _, s := range t {
		if s != nil && s.Enabled(event.Level) {
			s.Emit(event)
		}
	}
}
