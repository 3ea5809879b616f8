package predictor

import "errors"

var (
	// ErrPredictorUnavailable means no valid schema/model pair is loaded.
	ErrPredictorUnavailable = errors.New("predictor unavailable")
	ErrModelInvocation      = errors.New("model invocation failed")
)
