// Package output renders command results as tables, JSON or YAML,
// selected by the global -o flag.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format selects how a command renders its result.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses the -o flag value. The empty string means table, and
// "yml" is accepted as an alias for yaml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

func (f Format) String() string {
	return string(f)
}

// Printer writes command output in a fixed format, with optional ANSI
// color for status messages.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

// NewPrinter creates a Printer writing to out in the given format.
func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{
		out:    out,
		format: format,
		color:  color,
	}
}

// Format returns the configured output format.
func (p *Printer) Format() Format {
	return p.format
}

// ColorEnabled reports whether status messages are colorized.
func (p *Printer) ColorEnabled() bool {
	return p.color
}

// Print renders data in the configured format. Table format requires data
// to implement TableRenderer; anything else falls back to JSON.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatTable:
		if renderer, ok := data.(TableRenderer); ok {
			return PrintTable(p.out, renderer)
		}
		return PrintJSON(p.out, data)
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintYAML(p.out, data)
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

// Println writes a plain line of output.
func (p *Printer) Println(args ...any) {
	_, _ = fmt.Fprintln(p.out, args...)
}

// Success writes msg, in green when color is on.
func (p *Printer) Success(msg string) {
	p.status("\033[32m", msg)
}

// Warning writes msg, in yellow when color is on.
func (p *Printer) Warning(msg string) {
	p.status("\033[33m", msg)
}

// Error writes msg, in red when color is on.
func (p *Printer) Error(msg string) {
	p.status("\033[31m", msg)
}

func (p *Printer) status(escape, msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "%s%s\033[0m\n", escape, msg)
		return
	}
	_, _ = fmt.Fprintln(p.out, msg)
}
