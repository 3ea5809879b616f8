package artifact

import (
	"fmt"
	"strings"
	"time"

	"github.com/clinicflow/waittime/pkg/features"
	"github.com/clinicflow/waittime/pkg/ml/linear"
	"github.com/google/uuid"
)

const AlgorithmLinearRegression = "linear_regression"

// Bundle couples a feature schema with the model trained against it. The two
// are persisted as one document so neither can be replaced without the other.
type Bundle struct {
	Version    uuid.UUID             `json:"version"`
	CreatedAt  time.Time             `json:"created_at"`
	JobID      string                `json:"job_id,omitempty"`
	Attributes features.AttributeSet `json:"attributes"`
	Schema     features.Schema       `json:"feature_columns"`
	Model      Model                 `json:"model"`
	Metrics    map[string]float64    `json:"metrics,omitempty"`
}

type Model struct {
	Algorithm string         `json:"algorithm"`
	Weights   linear.Weights `json:"weights"`
}

// InputWidth is the vector length the model was trained on.
func (m Model) InputWidth() int {
	return len(m.Weights.Coefficients)
}

// Validate checks the pair is internally consistent: a well-formed schema and
// attribute set, and every schema column derivable from the attributes with
// each numeric attribute present. Linear weights must also match the schema
// length; other algorithms are checked by the predictor's model factory.
func (b Bundle) Validate() error {
	if b.Schema.Len() == 0 {
		return fmt.Errorf("%w: bundle %s has no feature columns", features.ErrSchemaMismatch, b.Version)
	}
	if err := b.Attributes.Check(); err != nil {
		return fmt.Errorf("%w: %v", features.ErrSchemaMismatch, err)
	}
	if b.Model.Algorithm == AlgorithmLinearRegression {
		if width := b.Model.InputWidth(); width != b.Schema.Len() {
			return fmt.Errorf("%w: schema has %d columns but model expects %d inputs",
				features.ErrSchemaMismatch, b.Schema.Len(), width)
		}
	}
	return checkColumns(b.Attributes, b.Schema)
}

func checkColumns(attrs features.AttributeSet, schema features.Schema) error {
	kinds := make(map[string]features.Kind, len(attrs.Attributes))
	for _, attr := range attrs.Attributes {
		kinds[attr.Name] = attr.Kind
		if attr.Kind == features.KindNumeric && schema.Index(attr.Name) < 0 {
			return fmt.Errorf("%w: numeric attribute %q has no schema column",
				features.ErrSchemaMismatch, attr.Name)
		}
	}
	for _, column := range schema.Columns() {
		if kind, ok := kinds[column]; ok && kind == features.KindNumeric {
			continue
		}
		name, _, found := strings.Cut(column, features.ColumnSeparator)
		if !found || kinds[name] != features.KindCategorical {
			return fmt.Errorf("%w: column %q does not match any declared attribute",
				features.ErrSchemaMismatch, column)
		}
	}
	return nil
}
