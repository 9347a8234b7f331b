package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/dwg-reader/internal/dwg/diag"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

func TestGuardRecoversPanic(t *testing.T) {
	rec := diag.NewRecorder(diag.LevelDebug)
	g := newGuard(rec)

	err := g.run("LINE 0x10", func() error {
		var s []int
		_ = s[3]
		return nil
	})
	require.Error(t, err)
	assert.True(t, dwgerr.IsKind(err, dwgerr.KindDecode))
	assert.Contains(t, err.Error(), "LINE 0x10 panicked")

	assert.Equal(t, 1, g.Count())
	panics := g.Panics()
	require.Len(t, panics, 1)
	assert.Equal(t, "LINE 0x10", panics[0].Context)
	assert.Contains(t, panics[0].Message, "index out of range")
	assert.NotEmpty(t, panics[0].StackTrace)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, diag.LevelError, events[0].Level)
}

func TestGuardPassesErrorsThrough(t *testing.T) {
	g := newGuard(diag.Nop())
	want := dwgerr.New(dwgerr.KindFormat, "bad size")
	assert.Same(t, want, g.run("ARC", func() error { return want }))
	assert.NoError(t, g.run("ARC", func() error { return nil }))
	assert.Zero(t, g.Count())
}

func TestGuardKeepsRecentPanics(t *testing.T) {
	g := newGuard(diag.Nop())
	for i := 0; i < maxPanicRecords+5; i++ {
		_ = g.run("loop", func() error { panic(i) })
	}
	assert.Equal(t, maxPanicRecords+5, g.Count())
	panics := g.Panics()
	require.Len(t, panics, maxPanicRecords)
	assert.Equal(t, "5", panics[0].Message)
}
