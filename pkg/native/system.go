package native

import (
	"io"
)

// PrintStream backs a java.io.PrintStream. Callers format values with the
// Format helpers before printing.
type PrintStream struct {
	Writer io.Writer
}

// Print writes s.
func (ps *PrintStream) Print(s string) error {
	_, err := io.WriteString(ps.Writer, s)
	return err
}

// Println writes s followed by a newline.
func (ps *PrintStream) Println(s string) error {
	return ps.Print(s + "\n")
}
