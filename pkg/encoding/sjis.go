// Package encoding provides text encoding utilities for MMD bone and morph
// names. Model and motion files store names in Shift-JIS.
package encoding

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// ShiftJISToUTF8 converts Shift-JIS encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func ShiftJISToUTF8(data []byte) string {
	decoder := japanese.ShiftJIS.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// UTF8ToShiftJIS converts a UTF-8 string to Shift-JIS encoded bytes.
// Returns the original bytes if conversion fails.
func UTF8ToShiftJIS(s string) []byte {
	encoder := japanese.ShiftJIS.NewEncoder()
	result, _, err := transform.Bytes(encoder, []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// TrimNullBytes removes trailing null bytes from a byte slice.
func TrimNullBytes(data []byte) []byte {
	return bytes.TrimRight(data, "\x00")
}

// FixedStringToUTF8 converts a fixed-size Shift-JIS name field to UTF-8.
// Everything after the first null byte is padding and is dropped.
func FixedStringToUTF8(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return ShiftJISToUTF8(data)
}

// UTF8ToFixedString encodes s as Shift-JIS into a null-padded field of
// the given size. Names longer than the field are truncated.
func UTF8ToFixedString(s string, size int) []byte {
	result := make([]byte, size)
	copy(result, UTF8ToShiftJIS(s))
	return result
}

// NormalizeName returns the lookup key for a bone or morph name. Names
// that are not valid UTF-8 are assumed to be raw Shift-JIS.
func NormalizeName(name string) string {
	name = strings.TrimRight(name, "\x00")
	if !utf8.ValidString(name) {
		name = ShiftJISToUTF8([]byte(name))
	}
	return strings.TrimSpace(name)
}
