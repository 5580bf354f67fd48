package native

import (
	"math"
	"strconv"
	"strings"
)

// FormatBoolean renders a boolean stored as an int the way Java prints it.
func FormatBoolean(v int32) string {
	if v != 0 {
		return "true"
	}
	return "false"
}

// FormatChar renders one UTF-16 code unit.
func FormatChar(c uint16) string {
	return FromUTF16([]uint16{c})
}

// FormatDouble follows Double.toString: plain notation for magnitudes in
// [1e-3, 1e7), computerized scientific notation otherwise, and always at
// least one fractional digit.
func FormatDouble(v float64) string {
	return formatDecimal(v, 64)
}

// FormatFloat is FormatDouble for float values.
func FormatFloat(v float32) string {
	return formatDecimal(float64(v), 32)
}

func formatDecimal(v float64, bits int) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}
	if abs := math.Abs(v); abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(v, 'f', -1, bits)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(v, 'e', -1, bits)
	mant, exp, _ := strings.Cut(s, "e")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	n, _ := strconv.Atoi(exp)
	return mant + "E" + strconv.Itoa(n)
}
