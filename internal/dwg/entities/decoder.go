package entities

import (
	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/recovery"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

// Object is one indexed record ready for decoding
type Object struct {
	Handle uint64
	Record objects.ObjectRecord
	Header objects.ApiObjectHeader
}

// Reader returns a reader positioned after the type prefix
func (o Object) Reader() *bitstream.Reader {
	r := o.Record.Reader()
	r.SetBitPos(o.Header.PrefixEnd)
	return r
}

const defaultLineDelta = 64

// Decoder decodes entity and table records of one file. It keeps the small
// amount of state the R13/R14 LINE scan learns between records, so a
// Decoder must not be shared between goroutines.
type Decoder struct {
	s  *version.Strategy
	cp bitstream.CodePage

	lineDelta uint64
}

// NewDecoder creates a decoder for one file
func NewDecoder(s *version.Strategy, cp bitstream.CodePage) *Decoder {
	return &Decoder{s: s, cp: cp, lineDelta: defaultLineDelta}
}

// Strategy returns the layout strategy the decoder uses
func (d *Decoder) Strategy() *version.Strategy { return d.s }

// begin reads the common entity header and fixes up the handle
func (d *Decoder) begin(o Object) (*bitstream.Reader, CommonEntity, error) {
	r := o.Reader()
	ce, err := ReadCommonEntity(r, d.s, o.Header, 0)
	if err != nil {
		return nil, ce, dwgerr.Wrap(dwgerr.KindDecode, err, "common entity header")
	}
	if d.s.SplitStreams || ce.Handle == 0 {
		ce.Handle = o.Handle
	}
	return r, ce, nil
}

func (d *Decoder) base(ce CommonEntity) Base {
	return Base{Handle: ce.Handle, Color: ce.Color}
}

// handles reads the common handle block. ok is false when the block could
// not be read and the strategy tolerates that; the returned reader is then
// not positioned usefully.
func (d *Decoder) handles(r *bitstream.Reader, ce CommonEntity, layerOnly bool) (*bitstream.Reader, CommonHandles, bool, error) {
	hr := r.Clone()
	if !ce.HasHandleStart {
		if d.s.TolerateHandleErrors {
			return hr, CommonHandles{}, false, nil
		}
		return hr, CommonHandles{}, false, dwgerr.New(dwgerr.KindDecode, "entity has no handle stream position")
	}
	hr.SetBitPos(ce.HandleStart)
	ch, err := ReadCommonHandles(hr, d.s, ce, layerOnly)
	if err != nil {
		if d.s.TolerateHandleErrors && dwgerr.IsRecoverable(err) {
			return hr, CommonHandles{}, false, nil
		}
		return hr, ch, false, dwgerr.Wrap(dwgerr.KindDecode, err, "common entity handles")
	}
	return hr, ch, true, nil
}

// layer reads just enough of the handle block to find the layer
func (d *Decoder) layer(r *bitstream.Reader, ce CommonEntity) (uint64, error) {
	_, ch, _, err := d.handles(r, ce, d.s.LayerOnlyHandles)
	return ch.Layer, err
}

// textSource reads strings either inline as code-page text or from the
// trailing UTF-16 string stream
type textSource struct {
	r       *bitstream.Reader
	wide    bool
	missing bool
	cp      bitstream.CodePage
}

func (t textSource) read() (string, error) {
	switch {
	case t.missing:
		return "", nil
	case t.wide:
		return t.r.ReadTU()
	default:
		return t.r.ReadTV(t.cp)
	}
}

// texts returns the string source for a record whose data ends at end.
// Split-stream records keep their strings in a stream that ends just before
// the data end, sized in bits.
func (d *Decoder) texts(r *bitstream.Reader, end uint64, hasEnd bool) textSource {
	if !d.s.StringStream {
		return textSource{r: r, cp: d.cp}
	}
	if !hasEnd {
		return textSource{missing: true}
	}
	ranges := recovery.StringStreamRanges(r, end)
	if len(ranges) == 0 {
		return textSource{missing: true}
	}
	sr := r.Clone()
	sr.SetBitPos(ranges[len(ranges)-1].Start)
	return textSource{r: sr, wide: true}
}
