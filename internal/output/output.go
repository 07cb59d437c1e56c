// Package output renders command results as JSON or human-readable tables.
// JSON output is reshaped before printing: OData envelopes are unwrapped and
// @-prefixed metadata keys are stripped so scripts see clean documents.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/term"
)

// Format selects how results are rendered.
type Format string

const (
	// FormatAuto picks table on a terminal and JSON otherwise.
	FormatAuto  Format = "auto"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat validates a --output flag value.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatAuto, FormatJSON, FormatTable:
		return Format(value), nil
	case "":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want auto, json or table)", value)
	}
}

// Printer writes command results to stdout and status messages to stderr.
type Printer struct {
	stdout io.Writer
	stderr io.Writer
	format Format
	query  string
	isTTY  func() bool
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithWriters redirects output, for tests.
func WithWriters(stdout, stderr io.Writer) PrinterOption {
	return func(p *Printer) {
		p.stdout = stdout
		p.stderr = stderr
	}
}

// WithQuery applies a gjson path to every JSON result before printing.
func WithQuery(query string) PrinterOption {
	return func(p *Printer) { p.query = query }
}

// WithTerminal overrides terminal detection, for tests.
func WithTerminal(isTTY bool) PrinterOption {
	return func(p *Printer) { p.isTTY = func() bool { return isTTY } }
}

// NewPrinter creates a Printer with the given format.
func NewPrinter(format Format, opts ...PrinterOption) *Printer {
	p := &Printer{
		stdout: os.Stdout,
		stderr: os.Stderr,
		format: format,
		isTTY: func() bool {
			return term.IsTerminal(int(os.Stdout.Fd()))
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// tableMode reports whether results should render as tables.
func (p *Printer) tableMode() bool {
	switch p.format {
	case FormatTable:
		return true
	case FormatJSON:
		return false
	default:
		return p.isTTY()
	}
}

// JSON prints a raw JSON document, reshaped and indented. A gjson query, when
// set, is applied after reshaping.
func (p *Printer) JSON(raw json.RawMessage) error {
	doc := Reshape(raw)
	if p.query != "" {
		result := gjson.GetBytes(doc, p.query)
		if !result.Exists() {
			return fmt.Errorf("query %q matched nothing", p.query)
		}
		doc = []byte(result.Raw)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "  "); err != nil {
		// Scalar gjson results are not indentable documents.
		fmt.Fprintln(p.stdout, string(doc))
		return nil
	}
	fmt.Fprintln(p.stdout, buf.String())
	return nil
}

// Value marshals any value and prints it as JSON.
func (p *Printer) Value(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return p.JSON(data)
}

// Table prints rows as a rounded table, or falls back to JSON output when the
// format resolves to JSON.
func (p *Printer) Table(header []string, rows [][]string, jsonFallback any) error {
	if !p.tableMode() {
		return p.Value(jsonFallback)
	}

	w := table.NewWriter()
	w.SetOutputMirror(p.stdout)
	w.SetStyle(table.StyleRounded)

	headerRow := make(table.Row, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	w.AppendHeader(headerRow)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		w.AppendRow(r)
	}

	w.Render()
	return nil
}

// Success prints a green confirmation line to stderr.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.stderr, p.colorize(text.FgGreen, "✓ "+fmt.Sprintf(format, args...)))
}

// Warning prints a yellow notice to stderr.
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.stderr, p.colorize(text.FgYellow, "! "+fmt.Sprintf(format, args...)))
}

// Error prints a red error line to stderr.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.stderr, p.colorize(text.FgRed, "✗ "+fmt.Sprintf(format, args...)))
}

// Info prints a plain status line to stderr.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.stderr, fmt.Sprintf(format, args...))
}

func (p *Printer) colorize(color text.Color, s string) string {
	if !p.isTTY() {
		return s
	}
	return color.Sprint(s)
}

// Reshape cleans a service response for display: the OData "value" envelope is
// unwrapped to its array and @-prefixed metadata keys are dropped recursively.
// The document is edited in its raw form so key order and number precision
// survive untouched.
func Reshape(raw json.RawMessage) json.RawMessage {
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() && !doc.IsArray() {
		return raw
	}

	out := []byte(raw)
	if doc.IsObject() {
		value := doc.Get("value")
		if value.IsArray() {
			keys := 0
			doc.ForEach(func(key, _ gjson.Result) bool {
				if !strings.HasPrefix(key.String(), "@") {
					keys++
				}
				return true
			})
			// Only unwrap pure envelopes; objects with siblings keep their shape.
			if keys == 1 {
				out = []byte(value.Raw)
			}
		}
	}
	return stripMetadata(out)
}

// stripMetadata deletes every object key starting with "@" from a raw JSON
// document, one deletion at a time since each edit shifts later paths.
func stripMetadata(doc []byte) []byte {
	for {
		path, found := metadataKeyPath(gjson.ParseBytes(doc), "")
		if !found {
			return doc
		}
		cleaned, err := sjson.DeleteBytes(doc, path)
		if err != nil {
			return doc
		}
		doc = cleaned
	}
}

// metadataKeyPath returns the path of the first @-prefixed key, depth first.
func metadataKeyPath(result gjson.Result, prefix string) (string, bool) {
	var path string
	var found bool
	switch {
	case result.IsObject():
		result.ForEach(func(key, value gjson.Result) bool {
			child := escapeKey(key.String())
			if prefix != "" {
				child = prefix + "." + child
			}
			if strings.HasPrefix(key.String(), "@") {
				path, found = child, true
				return false
			}
			path, found = metadataKeyPath(value, child)
			return !found
		})
	case result.IsArray():
		index := 0
		result.ForEach(func(_, value gjson.Result) bool {
			child := strconv.Itoa(index)
			if prefix != "" {
				child = prefix + "." + child
			}
			path, found = metadataKeyPath(value, child)
			index++
			return !found
		})
	}
	return path, found
}

// keyEscaper quotes the characters sjson treats as path syntax.
var keyEscaper = strings.NewReplacer(`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`)

func escapeKey(key string) string { return keyEscaper.Replace(key) }
