// Package dwgtest synthesizes object records for package tests. Records are
// laid out the way a writer of the given revision frames them, including the
// split data, string and handle streams of R2010 and later.
package dwgtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

// Record assembles one object record. W is the data stream and H the
// handle stream; Text routes strings to the string stream on revisions that
// have one.
type Record struct {
	T       *testing.T
	S       *version.Strategy
	Code    uint16
	W       *bitstream.Writer
	H       *bitstream.Writer
	Strings []string

	sizeAt  uint64
	hasSize bool
}

// Strategy resolves v or fails the test
func Strategy(t *testing.T, v version.Version) *version.Strategy {
	t.Helper()
	s, err := version.Resolve(v)
	require.NoError(t, err)
	return s
}

// NewRecord starts a record of type code. Revisions with an inline type
// code get it written here, followed by a size placeholder where the
// revision keeps the object size in front of the handles.
func NewRecord(t *testing.T, s *version.Strategy, code uint16) *Record {
	t.Helper()
	b := &Record{T: t, S: s, Code: code, W: bitstream.NewWriter(), H: bitstream.NewWriter()}
	if !s.SplitStreams {
		b.W.WriteBS(code)
		if s.ObjSizeBeforeHandle {
			b.MarkSize()
		}
	}
	return b
}

// MarkSize writes an RL placeholder the final data size is patched into
func (b *Record) MarkSize() {
	b.sizeAt, b.hasSize = b.W.TellBits(), true
	b.W.WriteRL(0)
}

// Handle appends a reference to the handle stream
func (b *Record) Handle(code uint8, v uint64) {
	require.NoError(b.T, b.H.WriteH(code, v))
}

// Text writes s inline, or queues it for the string stream
func (b *Record) Text(s string) {
	if b.S.StringStream {
		b.Strings = append(b.Strings, s)
		return
	}
	require.NoError(b.T, b.W.WriteTV(s))
}

// Entity writes a common entity header with no reactors, no xdictionary
// and a by-layer linetype, then the handle block up to layer. color writes
// the colour field; nil writes BYLAYER.
func (b *Record) Entity(handle, layer uint64, color func(w *bitstream.Writer)) {
	w := b.W
	require.NoError(b.T, w.WriteH(0, handle))
	w.WriteBS(0) // no EED
	w.WriteB(0)  // no graphic
	if b.S.ObjSizeAfterGraphic {
		b.MarkSize()
	}
	w.WriteBB(2)
	w.WriteBL(0)
	if b.S.XDicMissingFlag {
		w.WriteB(1)
	}
	if b.S.DSBinaryFlag {
		w.WriteB(0)
	}
	if b.S.ByLayerLTypeFlag {
		w.WriteB(1)
	}
	w.WriteB(1) // nolinks
	if color == nil {
		w.WriteBS(256)
	} else {
		color(w)
	}
	w.WriteBD(1)
	if b.S.LTypePlotFlags {
		w.WriteBB(0)
		w.WriteBB(0)
	}
	if b.S.MaterialShadow {
		w.WriteBB(0)
		w.WriteRC(0)
	}
	if b.S.VisualStyles {
		w.Write3B(0)
	}
	w.WriteBS(0)
	if b.S.Lineweight {
		w.WriteRC(0)
	}

	if !b.S.XDicMissingFlag {
		b.Handle(3, 0)
	}
	b.Handle(5, layer)
}

// Object writes a common non-entity header with no reactors
func (b *Record) Object(handle uint64) {
	w := b.W
	require.NoError(b.T, w.WriteH(0, handle))
	w.WriteBS(0)
	if b.S.ObjSizeAfterGraphic {
		b.MarkSize()
	}
	w.WriteBL(0)
	if b.S.XDicMissingFlag {
		w.WriteB(1)
	}
	if b.S.DSBinaryFlag {
		w.WriteB(0)
	}
}

// AppendBits copies every bit of src to dst
func AppendBits(t *testing.T, dst, src *bitstream.Writer) {
	t.Helper()
	r := bitstream.NewReader(src.Bytes())
	for range src.LenBits() {
		bit, err := r.ReadB()
		require.NoError(t, err)
		dst.WriteB(bit)
	}
}

// Bytes frames the record: MS size, body and a zero CRC
func (b *Record) Bytes() []byte {
	t := b.T
	t.Helper()
	var data *bitstream.Writer
	if b.S.SplitStreams {
		stream := bitstream.NewWriter()
		AppendBits(t, stream, b.W)
		if len(b.Strings) > 0 {
			start := stream.TellBits()
			for _, s := range b.Strings {
				require.NoError(t, stream.WriteTU(s))
			}
			stream.WriteRS(uint16(stream.TellBits() - start))
			stream.WriteB(1)
		} else {
			stream.WriteB(0)
		}
		// the prefix carries the handle stream size, which depends on
		// the prefix length through the byte padding
		hbits := uint64(0)
		for i := 0; ; i++ {
			require.Less(t, i, 8, "handle stream size did not settle")
			prefix := bitstream.NewWriter()
			prefix.WriteUMC(hbits)
			prefix.WriteOT(b.Code)
			start := prefix.TellBits() + stream.LenBits()
			total := (start + b.H.LenBits() + 7) / 8 * 8
			if total-start == hbits {
				AppendBits(t, prefix, stream)
				AppendBits(t, prefix, b.H)
				data = prefix
				break
			}
			hbits = total - start
		}
	} else {
		data = b.W
		end := data.TellBits()
		if b.hasSize {
			data.SetBitPos(b.sizeAt)
			data.WriteRL(uint32(end))
			data.SetBitPos(end)
		}
		AppendBits(t, data, b.H)
	}

	body := data.Bytes()
	mw := bitstream.NewWriter()
	require.NoError(t, mw.WriteMS(uint32(len(body))))
	raw := append(mw.Bytes(), body...)
	return append(raw, 0, 0)
}

// Build frames the record and parses it back
func (b *Record) Build() (objects.ObjectRecord, objects.ApiObjectHeader) {
	t := b.T
	t.Helper()
	rec, err := objects.ParseRecord(b.Bytes(), 0)
	require.NoError(t, err)
	h, err := objects.ParseHeader(rec, b.S)
	require.NoError(t, err)
	return rec, h
}
