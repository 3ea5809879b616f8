package linear

import (
	"errors"
	"fmt"
	"math"
)

var ErrSingular = errors.New("normal equations are singular")

type Options struct {
	// Ridge is the L2 penalty applied to coefficients (not the bias). One-hot
	// columns are collinear with the bias, so a small positive value is needed.
	Ridge float64
}

type Weights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

type Metrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// TrainRegression fits an ordinary least-squares model with ridge penalty by
// solving the normal equations.
func TrainRegression(samples [][]float64, targets []float64, opts Options) (Weights, error) {
	if opts.Ridge <= 0 {
		opts.Ridge = 1e-3
	}
	n := len(samples)
	if n == 0 {
		return Weights{}, errors.New("no training samples")
	}
	if len(targets) != n {
		return Weights{}, fmt.Errorf("sample/target count mismatch: %d vs %d", n, len(targets))
	}
	featureCount := len(samples[0])

	// Column 0 is the bias term.
	dim := featureCount + 1
	gram := make([][]float64, dim)
	for i := range gram {
		gram[i] = make([]float64, dim)
	}
	moment := make([]float64, dim)

	row := make([]float64, dim)
	for i, sample := range samples {
		if len(sample) != featureCount {
			return Weights{}, fmt.Errorf("sample %d has %d features, expected %d", i, len(sample), featureCount)
		}
		row[0] = 1
		copy(row[1:], sample)
		for a := 0; a < dim; a++ {
			if row[a] == 0 {
				continue
			}
			moment[a] += row[a] * targets[i]
			for b := 0; b < dim; b++ {
				gram[a][b] += row[a] * row[b]
			}
		}
	}
	for j := 1; j < dim; j++ {
		gram[j][j] += opts.Ridge
	}

	solution, err := solve(gram, moment)
	if err != nil {
		return Weights{}, err
	}
	return Weights{Bias: solution[0], Coefficients: solution[1:]}, nil
}

func Predict(weights Weights, sample []float64) float64 {
	return dot(weights.Coefficients, sample) + weights.Bias
}

func Evaluate(weights Weights, samples [][]float64, targets []float64) Metrics {
	if len(samples) == 0 {
		return Metrics{}
	}
	var absSum, sqSum, mean float64
	for _, y := range targets {
		mean += y
	}
	mean /= float64(len(targets))

	var total float64
	for i, sample := range samples {
		diff := Predict(weights, sample) - targets[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
		dev := targets[i] - mean
		total += dev * dev
	}
	n := float64(len(samples))
	metrics := Metrics{MAE: absSum / n, RMSE: math.Sqrt(sqSum / n)}
	if total > 0 {
		metrics.R2 = 1 - sqSum/total
	}
	return metrics
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

// solve runs Gaussian elimination with partial pivoting. a and b are modified.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, ErrSingular
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			if factor == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}
