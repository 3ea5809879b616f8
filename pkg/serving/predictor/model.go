package predictor

import (
	"fmt"

	"github.com/clinicflow/waittime/pkg/artifact"
	"github.com/clinicflow/waittime/pkg/ml/linear"
)

// Regressor maps an aligned feature vector to a scalar.
type Regressor interface {
	Predict(vector []float64) (float64, error)
	InputWidth() int
}

// ModelFactory builds a Regressor from the model half of a bundle.
type ModelFactory func(model artifact.Model) (Regressor, error)

type linearRegressor struct {
	weights linear.Weights
}

func (r linearRegressor) Predict(vector []float64) (float64, error) {
	if len(vector) != len(r.weights.Coefficients) {
		return 0, fmt.Errorf("vector has %d values, model expects %d", len(vector), len(r.weights.Coefficients))
	}
	return linear.Predict(r.weights, vector), nil
}

func (r linearRegressor) InputWidth() int {
	return len(r.weights.Coefficients)
}

func DefaultModelFactory(model artifact.Model) (Regressor, error) {
	switch model.Algorithm {
	case artifact.AlgorithmLinearRegression:
		return linearRegressor{weights: model.Weights}, nil
	default:
		return nil, fmt.Errorf("unsupported model algorithm %q", model.Algorithm)
	}
}
