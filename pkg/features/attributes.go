package features

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
)

// Attribute declares one field of a raw record and how it is encoded.
type Attribute struct {
	Name    string   `yaml:"name" json:"name"`
	Kind    Kind     `yaml:"kind" json:"kind"`
	Integer bool     `yaml:"integer,omitempty" json:"integer,omitempty"`
	Min     *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// AttributeSet is the ordered, fixed set of attributes every record must carry.
// Declaration order drives schema column order.
type AttributeSet struct {
	Attributes []Attribute `yaml:"attributes" json:"attributes"`
}

const (
	AttrArrivalHour = "arrival_hour"
	AttrDayOfWeek   = "day_of_week"
	AttrDoctorType  = "doctor_type"
	AttrPatientType = "patient_type"
)

func DefaultAttributes() AttributeSet {
	minHour, maxHour := 0.0, 23.0
	return AttributeSet{Attributes: []Attribute{
		{Name: AttrArrivalHour, Kind: KindNumeric, Integer: true, Min: &minHour, Max: &maxHour},
		{Name: AttrDayOfWeek, Kind: KindCategorical},
		{Name: AttrDoctorType, Kind: KindCategorical},
		{Name: AttrPatientType, Kind: KindCategorical},
	}}
}

// LoadAttributes reads attribute declarations from a YAML file. An empty path
// yields DefaultAttributes.
func LoadAttributes(path string) (AttributeSet, error) {
	if path == "" {
		return DefaultAttributes(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return AttributeSet{}, err
	}

	var set AttributeSet
	if err := yaml.Unmarshal(content, &set); err != nil {
		return AttributeSet{}, fmt.Errorf("parsing attribute declarations: %w", err)
	}
	if err := set.Check(); err != nil {
		return AttributeSet{}, err
	}
	return set, nil
}

// Check verifies the declarations themselves are usable.
func (s AttributeSet) Check() error {
	if len(s.Attributes) == 0 {
		return errors.New("no attributes declared")
	}
	seen := make(map[string]struct{}, len(s.Attributes))
	for _, attr := range s.Attributes {
		name := strings.TrimSpace(attr.Name)
		if name == "" {
			return errors.New("attribute name required")
		}
		if strings.Contains(name, ColumnSeparator) {
			return fmt.Errorf("attribute name %q must not contain %q", name, ColumnSeparator)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate attribute %q", name)
		}
		seen[name] = struct{}{}
		switch attr.Kind {
		case KindNumeric:
			if attr.Min != nil && attr.Max != nil && *attr.Min > *attr.Max {
				return fmt.Errorf("attribute %q: min greater than max", name)
			}
		case KindCategorical:
		default:
			return fmt.Errorf("attribute %q: unknown kind %q", name, attr.Kind)
		}
	}
	return nil
}

func (s AttributeSet) Names() []string {
	names := make([]string, len(s.Attributes))
	for i, attr := range s.Attributes {
		names[i] = attr.Name
	}
	return names
}

func (s AttributeSet) lookup(name string) (Attribute, bool) {
	for _, attr := range s.Attributes {
		if attr.Name == name {
			return attr, true
		}
	}
	return Attribute{}, false
}
