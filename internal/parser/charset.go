package parser

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeToUTF8 returns subtitle bytes as a UTF-8 string.
//
// Valid UTF-8 is returned as-is (minus a BOM). Anything else goes through
// charset detection: UTF-16 byte order marks are honoured, and legacy 8-bit
// files fall back to Windows-1252, the usual encoding of older SRT releases.
// The returned name is the detected encoding label.
func DecodeToUTF8(data []byte) (string, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	enc, name, _ := charset.DetermineEncoding(data, "text/plain")
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", name, err
	}
	return string(bytes.TrimPrefix(decoded, utf8BOM)), name, nil
}
