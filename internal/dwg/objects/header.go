package objects

import (
	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

// ApiObjectHeader is the normalized object header shared by every revision
type ApiObjectHeader struct {
	DataSize uint32 `json:"data_size"`
	TypeCode uint16 `json:"type_code"`

	// HandleStreamBits is set for split-stream revisions only
	HandleStreamBits uint32 `json:"handle_stream_size_bits,omitempty"`
	HasHandleStream  bool   `json:"-"`

	// ObjSizeBits is the RL object size read right after the type code
	ObjSizeBits uint32 `json:"-"`
	HasObjSize  bool   `json:"-"`

	// PrefixEnd is the body bit position after the type prefix
	PrefixEnd uint64 `json:"-"`
}

// TotalBits is the data size in bits
func (h ApiObjectHeader) TotalBits() uint64 {
	return uint64(h.DataSize) * 8
}

// HandleStreamStart returns the nominal start bit of the handle sub-stream
func (h ApiObjectHeader) HandleStreamStart() (uint64, bool) {
	switch {
	case h.HasHandleStream:
		if uint64(h.HandleStreamBits) > h.TotalBits() {
			return 0, false
		}
		return h.TotalBits() - uint64(h.HandleStreamBits), true
	case h.HasObjSize:
		return uint64(h.ObjSizeBits), true
	}
	return 0, false
}

// ParseHeader consumes the revision's type prefix from the record body
func ParseHeader(rec ObjectRecord, s *version.Strategy) (ApiObjectHeader, error) {
	return readHeader(rec.Reader(), rec.Size, s)
}

// ParseHeaderReader is ParseHeader for callers that keep reading the body
func ParseHeaderReader(rec ObjectRecord, s *version.Strategy) (ApiObjectHeader, *bitstream.Reader, error) {
	r := rec.Reader()
	h, err := readHeader(r, rec.Size, s)
	if err != nil {
		return ApiObjectHeader{}, nil, err
	}
	return h, r, nil
}

func readHeader(r *bitstream.Reader, size uint32, s *version.Strategy) (ApiObjectHeader, error) {
	prefix, err := s.ReadTypePrefix(r)
	if err != nil {
		return ApiObjectHeader{}, dwgerr.Wrap(dwgerr.KindFormat, err, "object type prefix")
	}
	if prefix.TypeCode == 0 {
		return ApiObjectHeader{}, dwgerr.New(dwgerr.KindFormat, "object type code is zero")
	}
	h := ApiObjectHeader{DataSize: size, TypeCode: prefix.TypeCode}
	if prefix.HasHandleStream {
		if prefix.HandleStreamBits > h.TotalBits() {
			return ApiObjectHeader{}, dwgerr.Newf(dwgerr.KindFormat,
				"handle stream size %d exceeds object data size %d", prefix.HandleStreamBits, h.TotalBits())
		}
		h.HandleStreamBits = uint32(prefix.HandleStreamBits)
		h.HasHandleStream = true
	}
	if s.ObjSizeBeforeHandle && !s.SplitStreams {
		bits, err := r.ReadRL()
		if err != nil {
			return ApiObjectHeader{}, dwgerr.Wrap(dwgerr.KindFormat, err, "object size field")
		}
		h.ObjSizeBits = bits
		h.HasObjSize = true
	}
	h.PrefixEnd = r.TellBits()
	return h, nil
}
