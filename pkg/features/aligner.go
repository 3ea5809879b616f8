package features

import "sort"

// Align projects a partial encoding onto schema. Columns the schema names but
// the encoding lacks become 0; columns the encoding has but the schema lacks
// (category values never seen at training time) are dropped, which leaves no
// indicator active for that attribute. The result always has schema.Len()
// entries in schema order.
func Align(partial map[string]float64, schema Schema) ([]float64, error) {
	if schema.Len() == 0 {
		return nil, schemaMismatch("schema has no columns")
	}
	vector := make([]float64, schema.Len())
	for i, column := range schema.columns {
		if value, ok := partial[column]; ok {
			vector[i] = value
		}
	}
	return vector, nil
}

// Unmatched lists the encoded columns that Align would drop for schema.
func Unmatched(partial map[string]float64, schema Schema) []string {
	var dropped []string
	for column := range partial {
		if schema.Index(column) < 0 {
			dropped = append(dropped, column)
		}
	}
	sort.Strings(dropped)
	return dropped
}
