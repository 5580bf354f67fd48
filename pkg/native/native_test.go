package native

import (
	"bytes"
	"math"
	"testing"
)

func TestHashMap(t *testing.T) {
	t.Run("put and get", func(t *testing.T) {
		hm := NewHashMap()
		hm.Put("key1", "value1")

		got := hm.Get("key1")
		if got != "value1" {
			t.Errorf("Get(key1): got %v, want %q", got, "value1")
		}
	})

	t.Run("get missing key returns nil", func(t *testing.T) {
		hm := NewHashMap()

		got := hm.Get("nonexistent")
		if got != nil {
			t.Errorf("Get(nonexistent): got %v, want nil", got)
		}
	})

	t.Run("put returns previous value", func(t *testing.T) {
		hm := NewHashMap()
		hm.Put("key", "old")
		old := hm.Put("key", "new")

		if old != "old" {
			t.Errorf("Put over existing key: got %v, want %q", old, "old")
		}
		if got := hm.Get("key"); got != "new" {
			t.Errorf("Get(key) after overwrite: got %v, want %q", got, "new")
		}
	})

	t.Run("boxed keys compare by value", func(t *testing.T) {
		hm := NewHashMap()
		hm.Put(IntegerValueOf(1000), "a")

		if got := hm.Get(IntegerValueOf(1000)); got != "a" {
			t.Errorf("Get(1000): got %v, want %q", got, "a")
		}
		if !hm.ContainsKey(IntegerValueOf(1000)) {
			t.Error("ContainsKey(1000): got false")
		}
	})

	t.Run("remove", func(t *testing.T) {
		hm := NewHashMap()
		hm.Put("a", "1")
		hm.Put("b", "2")

		if got := hm.Remove("a"); got != "1" {
			t.Errorf("Remove(a): got %v, want %q", got, "1")
		}
		if hm.Size() != 1 {
			t.Errorf("Size: got %d, want 1", hm.Size())
		}
	})
}

func TestIntegerValueOf(t *testing.T) {
	tests := []struct {
		name string
		v    int32
		same bool
	}{
		{"zero", 0, true},
		{"low end of cache", -128, true},
		{"high end of cache", 127, true},
		{"above cache", 128, false},
		{"negative above cache", -129, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := IntegerValueOf(tt.v), IntegerValueOf(tt.v)
			if a.Value != tt.v {
				t.Errorf("Value: got %d, want %d", a.Value, tt.v)
			}
			if (a == b) != tt.same {
				t.Errorf("identity of two boxes of %d: got %v, want %v", tt.v, a == b, tt.same)
			}
		})
	}
}

func TestStringBuilder(t *testing.T) {
	sb := NewStringBuilder("ab")
	sb.Append("cd")
	sb.AppendChar('e')

	if got := sb.String(); got != "abcde" {
		t.Errorf("String: got %q, want %q", got, "abcde")
	}
	if c, ok := sb.CharAt(1); !ok || c != 'b' {
		t.Errorf("CharAt(1): got %q %v, want 'b' true", c, ok)
	}
	if _, ok := sb.CharAt(5); ok {
		t.Error("CharAt(5): got ok, want out of range")
	}
	sb.Reverse()
	if got := sb.String(); got != "edcba" {
		t.Errorf("Reverse: got %q, want %q", got, "edcba")
	}

	wide := NewStringBuilder("a\U0001F600")
	if wide.Len() != 3 {
		t.Errorf("Len with surrogate pair: got %d, want 3", wide.Len())
	}
}

func TestFormatDouble(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1.0"},
		{-2.5, "-2.5"},
		{0.1, "0.1"},
		{1e7, "1.0E7"},
		{1.5e10, "1.5E10"},
		{1e-4, "1.0E-4"},
		{0.001, "0.001"},
		{math.Copysign(0, -1), "-0.0"},
		{math.NaN(), "NaN"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		if got := FormatDouble(tt.in); got != tt.want {
			t.Errorf("FormatDouble(%v): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	if got := FormatFloat(0.1); got != "0.1" {
		t.Errorf("FormatFloat(0.1): got %q, want %q", got, "0.1")
	}
	if got := FormatFloat(3); got != "3.0" {
		t.Errorf("FormatFloat(3): got %q, want %q", got, "3.0")
	}
}

func TestPrintStream(t *testing.T) {
	var buf bytes.Buffer
	ps := &PrintStream{Writer: &buf}
	if err := ps.Print("a"); err != nil {
		t.Fatal(err)
	}
	if err := ps.Println("b"); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "ab\n" {
		t.Errorf("output: got %q, want %q", got, "ab\n")
	}
}
