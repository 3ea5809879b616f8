package features

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Record is one raw patient visit keyed by attribute name. Numeric attributes
// hold Go numbers (or json.Number), categorical attributes hold strings.
type Record map[string]interface{}

// Validate checks that every declared attribute is present and that the
// record carries no undeclared names. Value types are checked by the encoder.
func (s AttributeSet) Validate(record Record) error {
	for _, attr := range s.Attributes {
		if value, ok := record[attr.Name]; !ok || value == nil {
			return missingAttribute(attr.Name)
		}
	}
	if len(record) == len(s.Attributes) {
		return nil
	}
	unknown := make([]string, 0)
	for name := range record {
		if _, ok := s.lookup(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return unknownAttribute(strings.Join(unknown, ","))
	}
	return nil
}

func numericValue(attr Attribute, value interface{}) (float64, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, invalidType(attr.Name, fmt.Sprintf("not a number: %q", v.String()))
		}
		f = parsed
	default:
		return 0, invalidType(attr.Name, fmt.Sprintf("expected number, got %T", value))
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalidType(attr.Name, "not a finite number")
	}
	if attr.Integer && math.Trunc(f) != f {
		return 0, invalidType(attr.Name, fmt.Sprintf("expected integer, got %v", f))
	}
	if attr.Min != nil && f < *attr.Min {
		return 0, invalidType(attr.Name, fmt.Sprintf("%v below minimum %v", f, *attr.Min))
	}
	if attr.Max != nil && f > *attr.Max {
		return 0, invalidType(attr.Name, fmt.Sprintf("%v above maximum %v", f, *attr.Max))
	}
	return f, nil
}

func categoricalValue(attr Attribute, value interface{}) (string, error) {
	label, ok := value.(string)
	if !ok {
		return "", invalidType(attr.Name, fmt.Sprintf("expected string, got %T", value))
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return "", invalidType(attr.Name, "empty label")
	}
	return label, nil
}
