// Package cliutil provides shared output formatting for nomadd's admin
// subcommands (table/json/yaml), grounded on dittofsctl's
// internal/cli/output package but rendering tables with the standard
// library's text/tabwriter instead of an extra table-drawing dependency.
package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format is an admin CLI output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses s into a Format, defaulting to table on empty input.
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

// TableRenderer is implemented by types that can render themselves as a
// table of columns.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes data as a tab-aligned table to w.
func PrintTable(w io.Writer, data TableRenderer) error {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(data.Headers(), "\t"))
	for _, row := range data.Rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// PrintJSON writes data as indented JSON to w.
func PrintJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintYAML writes data as YAML to w.
func PrintYAML(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(data)
}

// BoolToYesNo renders b as "yes"/"no" for table columns.
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// EmptyOr returns value if non-empty, otherwise fallback.
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// PrintOutput writes data in the requested format. JSON/YAML marshal data
// directly; table format renders tableRenderer, falling back to emptyMsg
// when isEmpty.
func PrintOutput(w io.Writer, format Format, data any, isEmpty bool, emptyMsg string, tableRenderer TableRenderer) error {
	switch format {
	case FormatJSON:
		return PrintJSON(w, data)
	case FormatYAML:
		return PrintYAML(w, data)
	default:
		if isEmpty {
			fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return PrintTable(w, tableRenderer)
	}
}
