package training

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicflow/waittime/pkg/artifact"
	"github.com/clinicflow/waittime/pkg/features"
	"github.com/clinicflow/waittime/pkg/ml/linear"
	"github.com/google/uuid"
)

const splitSeed = 42

type Trainer struct {
	attrs     features.AttributeSet
	store     artifact.Store
	modelName string
	defaults  TrainOptions
}

func NewTrainer(attrs features.AttributeSet, store artifact.Store, modelName string, defaults TrainOptions) *Trainer {
	if defaults.TestRatio <= 0 || defaults.TestRatio >= 1 {
		defaults.TestRatio = 0.2
	}
	return &Trainer{attrs: attrs, store: store, modelName: modelName, defaults: defaults}
}

type Result struct {
	Bundle       artifact.Bundle
	Location     string
	TrainSamples int
	TestSamples  int
	SkippedRows  int
	FeatureCount int
}

// Train builds the feature schema from the whole dataset, fits the model on
// the training split, evaluates it on the holdout, and saves schema and model
// as one bundle.
func (t *Trainer) Train(ctx context.Context, jobID string, ds Dataset, opts TrainOptions) (Result, error) {
	if opts.Ridge <= 0 {
		opts.Ridge = t.defaults.Ridge
	}
	if opts.TestRatio <= 0 || opts.TestRatio >= 1 {
		opts.TestRatio = t.defaults.TestRatio
	}

	schema, rows, err := features.BuildSchema(t.attrs, ds.Records)
	if err != nil {
		return Result{}, fmt.Errorf("building feature schema: %w", err)
	}

	xTrain, xTest, yTrain, yTest := linear.TrainTestSplit(rows, ds.Targets, opts.TestRatio, splitSeed)
	weights, err := linear.TrainRegression(xTrain, yTrain, linear.Options{Ridge: opts.Ridge})
	if err != nil {
		return Result{}, fmt.Errorf("fitting model: %w", err)
	}

	evalX, evalY := xTest, yTest
	if len(evalX) == 0 {
		evalX, evalY = xTrain, yTrain
	}
	metrics := linear.Evaluate(weights, evalX, evalY)

	bundle := artifact.Bundle{
		Version:    uuid.New(),
		CreatedAt:  time.Now().UTC(),
		JobID:      jobID,
		Attributes: t.attrs,
		Schema:     schema,
		Model: artifact.Model{
			Algorithm: artifact.AlgorithmLinearRegression,
			Weights:   weights,
		},
		Metrics: map[string]float64{
			"mae":  metrics.MAE,
			"rmse": metrics.RMSE,
			"r2":   metrics.R2,
		},
	}

	location, err := t.store.Save(ctx, t.modelName, bundle)
	if err != nil {
		return Result{}, fmt.Errorf("saving bundle: %w", err)
	}
	return Result{
		Bundle:       bundle,
		Location:     location,
		TrainSamples: len(xTrain),
		TestSamples:  len(xTest),
		SkippedRows:  ds.Skipped,
		FeatureCount: schema.Len(),
	}, nil
}
