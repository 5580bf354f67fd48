package native

import (
	"unicode/utf16"
)

// UTF16 returns the UTF-16 code units of s, the unit Java strings index by.
func UTF16(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// FromUTF16 converts code units back to a Go string.
func FromUTF16(units []uint16) string {
	return string(utf16.Decode(units))
}

// StringBuilder backs a java.lang.StringBuilder.
type StringBuilder struct {
	units []uint16
}

// NewStringBuilder creates a builder holding s.
func NewStringBuilder(s string) *StringBuilder {
	return &StringBuilder{units: UTF16(s)}
}

func (sb *StringBuilder) Append(s string) {
	sb.units = append(sb.units, UTF16(s)...)
}

func (sb *StringBuilder) AppendChar(c uint16) {
	sb.units = append(sb.units, c)
}

func (sb *StringBuilder) Len() int { return len(sb.units) }

// CharAt returns the code unit at i; ok is false when i is out of range.
func (sb *StringBuilder) CharAt(i int) (c uint16, ok bool) {
	if i < 0 || i >= len(sb.units) {
		return 0, false
	}
	return sb.units[i], true
}

// Reverse reverses the builder in place, keeping surrogate pairs in order.
func (sb *StringBuilder) Reverse() {
	rs := []rune(sb.String())
	for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
		rs[i], rs[j] = rs[j], rs[i]
	}
	sb.units = utf16.Encode(rs)
}

func (sb *StringBuilder) String() string {
	return FromUTF16(sb.units)
}
