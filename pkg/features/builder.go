package features

import "sort"

// BuildSchema derives the canonical schema from a historical dataset and
// returns every row aligned to it. Numeric attributes become one column each;
// categorical attributes expand to one indicator column per distinct observed
// value. Attributes keep declaration order and values within an attribute are
// sorted lexicographically, so the result does not depend on row order.
func BuildSchema(attrs AttributeSet, records []Record) (Schema, [][]float64, error) {
	if len(records) == 0 {
		return Schema{}, nil, ErrEmptyDataset
	}

	encoder := NewEncoder(attrs)
	partials := make([]map[string]float64, len(records))
	observed := make(map[string]map[string]struct{})
	for i, record := range records {
		partial, err := encoder.Encode(record)
		if err != nil {
			return Schema{}, nil, err
		}
		partials[i] = partial

		for _, attr := range attrs.Attributes {
			if attr.Kind != KindCategorical {
				continue
			}
			label, err := encoder.categoryOf(attr, record)
			if err != nil {
				return Schema{}, nil, err
			}
			if observed[attr.Name] == nil {
				observed[attr.Name] = make(map[string]struct{})
			}
			observed[attr.Name][label] = struct{}{}
		}
	}

	var columns []string
	for _, attr := range attrs.Attributes {
		if attr.Kind == KindNumeric {
			columns = append(columns, attr.Name)
			continue
		}
		values := make([]string, 0, len(observed[attr.Name]))
		for value := range observed[attr.Name] {
			values = append(values, value)
		}
		sort.Strings(values)
		for _, value := range values {
			columns = append(columns, IndicatorColumn(attr.Name, value))
		}
	}

	schema, err := NewSchema(columns)
	if err != nil {
		return Schema{}, nil, err
	}

	rows := make([][]float64, len(partials))
	for i, partial := range partials {
		row, err := Align(partial, schema)
		if err != nil {
			return Schema{}, nil, err
		}
		rows[i] = row
	}
	return schema, rows, nil
}
