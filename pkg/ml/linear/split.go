package linear

import "math/rand"

// TrainTestSplit shuffles with a fixed seed and holds out testRatio of the
// rows. The same inputs and seed always produce the same split.
func TrainTestSplit(samples [][]float64, targets []float64, testRatio float64, seed int64) (xTrain, xTest [][]float64, yTrain, yTest []float64) {
	n := len(samples)
	indices := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(float64(n) * testRatio)
	if nTest >= n && n > 1 {
		nTest = n - 1
	}
	for i, idx := range indices {
		if i < nTest {
			xTest = append(xTest, samples[idx])
			yTest = append(yTest, targets[idx])
		} else {
			xTrain = append(xTrain, samples[idx])
			yTrain = append(yTrain, targets[idx])
		}
	}
	return
}
