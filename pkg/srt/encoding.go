package srt

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/wlynxg/chardet"
	"github.com/wlynxg/chardet/consts"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const bom = "\uFEFF"

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// WithBOM prepends the UTF-8 byte order mark, unless already present.
func WithBOM(data []byte) []byte {
	if bytes.HasPrefix(data, utf8BOM) {
		return data
	}
	out := make([]byte, 0, len(data)+len(utf8BOM))
	out = append(out, utf8BOM...)
	return append(out, data...)
}

// Decode converts a downloaded subtitle payload to a UTF-8 string.
func Decode(data []byte) string {
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		return string(data[len(utf8BOM):])
	case bytes.HasPrefix(data, utf16LEBOM):
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), data)
	case bytes.HasPrefix(data, utf16BEBOM):
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.UseBOM), data)
	}

	if utf8.Valid(data) {
		return string(data)
	}

	switch chardet.Detect(data).Encoding {
	case consts.ISO88591:
		return decodeWith(charmap.ISO8859_1, data)
	default:
		// Most non-UTF-8 English subtitles are Windows-1252.
		return decodeWith(charmap.Windows1252, data)
	}
}

func decodeWith(e encoding.Encoding, data []byte) string {
	out, err := e.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return strings.TrimPrefix(string(out), bom)
}
