package dwgerr

import (
	"errors"
	"fmt"
)

// Kind represents the category of a decode failure
type Kind int

const (
	KindIo Kind = iota
	KindFormat
	KindDecode
	KindResolve
	KindUnsupported
	KindNotImplemented
)

// Severity indicates how critical an error is
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityFatal
)

// Error is the error value returned by every decode layer
type Error struct {
	Kind    Kind
	Message string
	Offset  *uint64
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Offset != nil {
		msg = fmt.Sprintf("%s (offset %d)", msg, *e.Offset)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// String returns a string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindIo:
		return "IO"
	case KindFormat:
		return "FORMAT"
	case KindDecode:
		return "DECODE"
	case KindResolve:
		return "RESOLVE"
	case KindUnsupported:
		return "UNSUPPORTED"
	case KindNotImplemented:
		return "NOT_IMPLEMENTED"
	default:
		return "UNKNOWN"
	}
}

// IsRecoverable reports whether a per-object failure of this kind may be
// skipped in permissive mode
func (k Kind) IsRecoverable() bool {
	switch k {
	case KindDecode, KindFormat, KindNotImplemented:
		return true
	default:
		return false
	}
}

// Severity returns the severity level for a given kind
func (k Kind) Severity() Severity {
	switch k {
	case KindIo, KindUnsupported:
		return SeverityFatal
	case KindNotImplemented, KindResolve:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// New creates a new Error
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new Error with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err as an Error of the given kind
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// WithOffset attaches a byte or bit offset to the error
func (e *Error) WithOffset(offset uint64) *Error {
	e.Offset = &offset
	return e
}

// KindOf extracts the Kind of err, looking through wrapping layers.
// Errors that did not originate here are reported as KindIo.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindIo
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}

// IsRecoverable reports whether err may be skipped in permissive mode
func IsRecoverable(err error) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Kind.IsRecoverable()
}

// Collection gathers the errors seen during one decode call
type Collection struct {
	Errors   []*Error `json:"errors"`
	Warnings []*Error `json:"warnings"`
}

// NewCollection creates an empty error collection
func NewCollection() *Collection {
	return &Collection{
		Errors:   make([]*Error, 0),
		Warnings: make([]*Error, 0),
	}
}

// Add files err under warnings or errors according to its severity
func (c *Collection) Add(err error) {
	var de *Error
	if !errors.As(err, &de) {
		de = Wrap(KindIo, err, "unclassified error")
	}
	if de.Kind.Severity() == SeverityWarning || de.Kind.IsRecoverable() {
		c.Warnings = append(c.Warnings, de)
		return
	}
	c.Errors = append(c.Errors, de)
}

// AddFatal records err as an error whatever its kind
func (c *Collection) AddFatal(err error) {
	var de *Error
	if !errors.As(err, &de) {
		de = Wrap(KindIo, err, "unclassified error")
	}
	c.Errors = append(c.Errors, de)
}

// Count returns the number of errors and warnings
func (c *Collection) Count() (errs, warnings int) {
	return len(c.Errors), len(c.Warnings)
}

// Summary returns a text summary of all errors and warnings
func (c *Collection) Summary() string {
	errorCount, warningCount := c.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}
	return fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)
}
