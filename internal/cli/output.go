package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func newFormatter(opts *RootOptions, w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: w}
}

// Print writes v as indented JSON in json mode, and the text produced by
// render otherwise.
func (f *OutputFormatter) Print(v any, render func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	render(f.Writer)
	return nil
}

func (f *OutputFormatter) Linef(format string, args ...any) {
	fmt.Fprintf(f.Writer, format+"\n", args...)
}
