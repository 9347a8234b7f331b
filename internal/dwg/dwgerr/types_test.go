package dwgerr

import (
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindIo, "IO"},
		{KindFormat, "FORMAT"},
		{KindDecode, "DECODE"},
		{KindResolve, "RESOLVE"},
		{KindUnsupported, "UNSUPPORTED"},
		{KindNotImplemented, "NOT_IMPLEMENTED"},
		{Kind(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(KindFormat, "bad signature").WithOffset(0x80)
	assert.Equal(t, "[FORMAT] bad signature (offset 128)", err.Error())

	wrapped := Wrap(KindIo, fmt.Errorf("disk gone"), "read failed")
	assert.Equal(t, "[IO] read failed: disk gone", wrapped.Error())
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := Newf(KindDecode, "ran out of bits at %d", 17)
	wrapped := pkgerrors.Wrapf(base, "object 0x%X", 0x10)

	assert.Equal(t, KindDecode, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindDecode))
	assert.False(t, IsKind(wrapped, KindFormat))
	assert.True(t, IsRecoverable(wrapped))

	assert.Equal(t, KindIo, KindOf(fmt.Errorf("plain")))
	assert.False(t, IsRecoverable(fmt.Errorf("plain")))
}

func TestCollection(t *testing.T) {
	c := NewCollection()
	assert.Equal(t, "No errors or warnings", c.Summary())

	c.Add(New(KindDecode, "skipped"))
	c.Add(New(KindUnsupported, "encrypted"))
	c.Add(fmt.Errorf("foreign"))

	errs, warnings := c.Count()
	assert.Equal(t, 2, errs)
	assert.Equal(t, 1, warnings)
	assert.Equal(t, "Found 2 error(s) and 1 warning(s)", c.Summary())
}

func TestPolicyDecide(t *testing.T) {
	tests := []struct {
		name    string
		strict  bool
		skipped bool
		err     error
		want    Outcome
		wantErr bool
	}{
		{"clean emit", false, false, nil, Emit, false},
		{"not applicable", false, true, nil, Skip, false},
		{"permissive decode failure", false, false, New(KindDecode, "x"), Skip, false},
		{"permissive fatal kind", false, false, New(KindUnsupported, "x"), Abort, true},
		{"strict decode failure", true, false, New(KindDecode, "x"), Abort, true},
		{"strict clean", true, false, nil, Emit, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(ParseOptions{Strict: tt.strict})
			got, err := p.Decide(tt.skipped, tt.err)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPolicyFatalIgnoresMode(t *testing.T) {
	for _, strict := range []bool{false, true} {
		p := NewPolicy(ParseOptions{Strict: strict})
		cause := pkgerrors.Wrap(New(KindFormat, "object record size"), "record 0x101")
		err := p.Fatal(cause)
		assert.Same(t, cause, err)
		errs, warnings := p.Errors.Count()
		assert.Equal(t, 1, errs)
		assert.Zero(t, warnings)
	}
}

func TestDefaultParseOptions(t *testing.T) {
	opts := DefaultParseOptions()
	assert.False(t, opts.Strict)
	assert.Equal(t, uint32(5_000_000), opts.MaxObjects)
	assert.Equal(t, uint64(512*1024*1024), opts.MaxSectionBytes)
	require.NoError(t, opts.Validate())

	opts.MaxObjects = 0
	assert.Error(t, opts.Validate())
}
