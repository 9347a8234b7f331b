package bitstream

import (
	"bytes"
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// CodePage is the drawing code page id stored in the file header
type CodePage uint16

var codePages = map[CodePage]encoding.Encoding{
	0:  charmap.Windows1252,
	2:  charmap.ISO8859_1,
	3:  charmap.ISO8859_1,
	28: charmap.Windows1250,
	29: charmap.Windows1251,
	30: charmap.Windows1252,
	31: charmap.Windows1253,
	32: charmap.Windows1254,
	33: charmap.Windows1255,
	34: charmap.Windows1256,
	35: charmap.Windows1257,
	36: charmap.Windows874,
	37: japanese.ShiftJIS,
	38: simplifiedchinese.GBK,
	39: korean.EUCKR,
	40: traditionalchinese.Big5,
	44: charmap.Windows1258,
}

// DefaultCodePage is ANSI 1252
const DefaultCodePage CodePage = 30

// Encoding returns the text encoding for the code page, falling back to
// Windows-1252 for unknown ids.
func (c CodePage) Encoding() encoding.Encoding {
	if enc, ok := codePages[c]; ok {
		return enc
	}
	return charmap.Windows1252
}

// Decode converts raw code-page bytes to UTF-8. Trailing NULs are dropped.
func (c CodePage) Decode(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if isASCII(raw) {
		return string(raw)
	}
	out, err := c.Encoding().NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}
	return string(out)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

// ReadTV reads a BS-length-prefixed code-page string
func (r *Reader) ReadTV(cp CodePage) (string, error) {
	n, err := r.ReadBS()
	if err != nil {
		return "", err
	}
	raw, err := r.ReadRCs(int(n))
	if err != nil {
		return "", err
	}
	return cp.Decode(raw), nil
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// ReadTU reads a BS-length-prefixed UTF-16LE string. Invalid surrogates decode
// to U+FFFD so callers can score them.
func (r *Reader) ReadTU() (string, error) {
	n, err := r.ReadBS()
	if err != nil {
		return "", err
	}
	raw, err := r.ReadRCs(int(n) * 2)
	if err != nil {
		return "", err
	}
	return DecodeUTF16LE(raw), nil
}

// DecodeUTF16LE converts UTF-16LE bytes to UTF-8, stopping at the first NUL unit
func DecodeUTF16LE(raw []byte) string {
	for i := 0; i+1 < len(raw); i += 2 {
		if binary.LittleEndian.Uint16(raw[i:]) == 0 {
			raw = raw[:i]
			break
		}
	}
	out, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return string(utf8.RuneError)
	}
	return string(out)
}

// EncodeUTF16LE converts a string to UTF-16LE bytes
func EncodeUTF16LE(s string) []byte {
	out, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil
	}
	return out
}
