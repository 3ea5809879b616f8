package features

// Encoder turns raw records into schema-agnostic column/value pairs.
type Encoder struct {
	attrs AttributeSet
}

func NewEncoder(attrs AttributeSet) *Encoder {
	return &Encoder{attrs: attrs}
}

func (e *Encoder) Attributes() AttributeSet {
	return e.attrs
}

// Encode emits one pair per attribute: (name, value) for numeric attributes
// and (name=label, 1) for categorical ones. The result has as many entries as
// the record has attributes, regardless of any schema.
func (e *Encoder) Encode(record Record) (map[string]float64, error) {
	out := make(map[string]float64, len(e.attrs.Attributes))
	for _, attr := range e.attrs.Attributes {
		raw, ok := record[attr.Name]
		if !ok || raw == nil {
			return nil, missingAttribute(attr.Name)
		}
		switch attr.Kind {
		case KindNumeric:
			value, err := numericValue(attr, raw)
			if err != nil {
				return nil, err
			}
			out[attr.Name] = value
		case KindCategorical:
			label, err := categoricalValue(attr, raw)
			if err != nil {
				return nil, err
			}
			out[IndicatorColumn(attr.Name, label)] = 1
		default:
			return nil, invalidType(attr.Name, "undeclared kind "+string(attr.Kind))
		}
	}
	return out, nil
}

// categoryOf returns the label a categorical attribute took in record.
func (e *Encoder) categoryOf(attr Attribute, record Record) (string, error) {
	raw, ok := record[attr.Name]
	if !ok || raw == nil {
		return "", missingAttribute(attr.Name)
	}
	return categoricalValue(attr, raw)
}
