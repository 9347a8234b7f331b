package dwgerr

import "fmt"

// ParseOptions configures decoding limits and the permissive/strict policy
type ParseOptions struct {
	Strict          bool   `json:"strict"`
	MaxObjects      uint32 `json:"max_objects"`
	MaxSectionBytes uint64 `json:"max_section_bytes"`
}

// DefaultParseOptions returns sensible default parsing options
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		Strict:          false,
		MaxObjects:      5_000_000,
		MaxSectionBytes: 512 * 1024 * 1024, // 512MB
	}
}

// Validate checks the resource limits
func (o ParseOptions) Validate() error {
	if o.MaxObjects == 0 {
		return New(KindFormat, "max objects must be positive")
	}
	if o.MaxSectionBytes == 0 {
		return New(KindFormat, "max section bytes must be positive")
	}
	return nil
}

// Outcome is what the policy decided to do with one decoded object
type Outcome int

const (
	Emit Outcome = iota
	Skip
	Abort
)

// String returns a string representation of the Outcome
func (o Outcome) String() string {
	switch o {
	case Emit:
		return "emit"
	case Skip:
		return "skip"
	case Abort:
		return "abort"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Policy turns a per-object decode result into an outcome. Decoders return
// (value, skipped, err): skipped means the object was not applicable and
// carries no error; err is a real failure the policy has to classify.
type Policy struct {
	Strict bool
	Errors *Collection
}

// NewPolicy creates a policy for the given options
func NewPolicy(opts ParseOptions) *Policy {
	return &Policy{Strict: opts.Strict, Errors: NewCollection()}
}

// Decide classifies the result of decoding one object
func (p *Policy) Decide(skipped bool, err error) (Outcome, error) {
	if err == nil {
		if skipped {
			return Skip, nil
		}
		return Emit, nil
	}
	if p.Errors != nil {
		p.Errors.Add(err)
	}
	if p.Strict || !IsRecoverable(err) {
		return Abort, err
	}
	return Skip, nil
}

// Fatal records err and returns it. Callers abort regardless of mode.
func (p *Policy) Fatal(err error) error {
	if p.Errors != nil {
		p.Errors.AddFatal(err)
	}
	return err
}
