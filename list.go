package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/luki/hwsensors/internal/chart"
	"github.com/luki/hwsensors/internal/sensor"
)

// listEntry is one sensor in json and yaml output.
type listEntry struct {
	ID    string   `json:"id" yaml:"id"`
	Chip  string   `json:"chip" yaml:"chip"`
	Label string   `json:"label" yaml:"label"`
	Kind  string   `json:"kind" yaml:"kind"`
	Unit  string   `json:"unit" yaml:"unit"`
	Value *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Low   *float64 `json:"low,omitempty" yaml:"low,omitempty"`
	High  *float64 `json:"high,omitempty" yaml:"high,omitempty"`
	Error string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func entryOf(r sensor.Reading) listEntry {
	return listEntry{
		ID:    r.ID,
		Chip:  r.Chip,
		Label: r.Label,
		Kind:  r.Kind.String(),
		Unit:  r.Unit.String(),
		Value: optional(r.Value, r.HasValue),
		Low:   optional(r.Low, r.HasLow),
		High:  optional(r.High, r.HasHigh),
		Error: r.Err,
	}
}

func writeReadings(w io.Writer, readings []sensor.Reading, format string) error {
	switch format {
	case "json":
		entries := make([]listEntry, 0, len(readings))
		for _, r := range readings {
			entries = append(entries, entryOf(r))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(entries), "encode json")
	case "yaml":
		entries := make([]listEntry, 0, len(readings))
		for _, r := range readings {
			entries = append(entries, entryOf(r))
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return errors.Wrap(enc.Close(), "encode yaml")
	case "text", "":
		_, err := fmt.Fprintln(w, renderTable(readings))
		return err
	}
	return errors.Errorf("unknown format %q", format)
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func renderTable(readings []sensor.Reading) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "LABEL", "VALUE", "LOW", "HIGH").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range readings {
		value := "-"
		if r.HasValue {
			value = chart.FormatValue(r.Value, r.Kind)
		}
		if r.Err != "" {
			value = "ERR"
		}
		t.Row(r.ID, r.Label, value, bound(r.Low, r.HasLow), bound(r.High, r.HasHigh))
	}
	return t.String()
}

func bound(v float64, ok bool) string {
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatLine is one reading in watch output.
func formatLine(r sensor.Reading) string {
	value := chart.FormatValue(r.Value, r.Kind)
	if r.Err != "" {
		value += "  (" + r.Err + ")"
	}
	return fmt.Sprintf("%-28s %-18s %s", r.ID, r.Label, value)
}
