package features

import (
	"encoding/json"
	"strings"
)

// ColumnSeparator joins a categorical attribute name and one of its values
// into an indicator column name, e.g. day_of_week=Monday.
const ColumnSeparator = "="

func IndicatorColumn(attribute, value string) string {
	return attribute + ColumnSeparator + value
}

// Schema is the immutable ordered list of feature-vector column names.
// The zero value is an empty schema and is rejected by Align.
type Schema struct {
	columns []string
	index   map[string]int
}

// NewSchema validates and copies columns. Names must be non-empty and unique.
func NewSchema(columns []string) (Schema, error) {
	if len(columns) == 0 {
		return Schema{}, schemaMismatch("schema has no columns")
	}
	cols := make([]string, len(columns))
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if strings.TrimSpace(name) == "" {
			return Schema{}, schemaMismatch("column %d has an empty name", i)
		}
		if prev, dup := index[name]; dup {
			return Schema{}, schemaMismatch("column %q repeated at positions %d and %d", name, prev, i)
		}
		index[name] = i
		cols[i] = name
	}
	return Schema{columns: cols, index: index}, nil
}

func (s Schema) Len() int {
	return len(s.columns)
}

// Columns returns a copy of the column names in schema order.
func (s Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Index returns the position of a column, or -1.
func (s Schema) Index(column string) int {
	if i, ok := s.index[column]; ok {
		return i
	}
	return -1
}

func (s Schema) Equal(other Schema) bool {
	if len(s.columns) != len(other.columns) {
		return false
	}
	for i := range s.columns {
		if s.columns[i] != other.columns[i] {
			return false
		}
	}
	return true
}

func (s Schema) MarshalJSON() ([]byte, error) {
	if s.columns == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.columns)
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	var columns []string
	if err := json.Unmarshal(data, &columns); err != nil {
		return schemaMismatch("decoding columns: %v", err)
	}
	parsed, err := NewSchema(columns)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
