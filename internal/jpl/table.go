package jpl

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// table is the column-oriented payload of fireball.api and cad.api: a list
// of field names and rows of values in the same order.
type table struct {
	Count  json.RawMessage `json:"count"`
	Fields []string        `json:"fields"`
	Data   [][]any         `json:"data"`
}

// row reads cells of one data row by field name.
type row struct {
	index map[string]int
	cells []any
}

func (t table) rows() []row {
	index := make(map[string]int, len(t.Fields))
	for i, f := range t.Fields {
		index[f] = i
	}
	out := make([]row, len(t.Data))
	for i, cells := range t.Data {
		out[i] = row{index: index, cells: cells}
	}
	return out
}

func (t table) require(fields ...string) error {
	var missing []string
	for _, f := range fields {
		if !slices.Contains(t.Fields, f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("payload missing fields %s", strings.Join(missing, ", "))
	}
	return nil
}

// str returns the cell as text; null or absent cells are "".
func (r row) str(field string) string {
	i, ok := r.index[field]
	if !ok || i >= len(r.cells) {
		return ""
	}
	switch v := r.cells[i].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func (r row) float(field string) (float64, bool) {
	return parseFloat(r.str(field))
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func optFloat(s string) *float64 {
	f, ok := parseFloat(s)
	if !ok {
		return nil
	}
	return &f
}

// flexString accepts a JSON string, number or null. The object-shaped feeds
// mix quoted and bare numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	switch {
	case string(b) == "null":
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
	default:
		*f = flexString(b)
	}
	return nil
}

func (f flexString) float() (float64, bool) { return parseFloat(string(f)) }
