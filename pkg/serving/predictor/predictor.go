package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/clinicflow/waittime/pkg/artifact"
	"github.com/clinicflow/waittime/pkg/common/logger"
	"github.com/clinicflow/waittime/pkg/features"
	"github.com/google/uuid"
)

// Precision is the number of decimals kept in presented predictions.
const Precision = 2

type Prediction struct {
	Minutes        float64
	Raw            float64
	ModelVersion   uuid.UUID
	UnseenCategory []string
}

type Info struct {
	Name      string             `json:"name"`
	Version   uuid.UUID          `json:"version"`
	CreatedAt time.Time          `json:"created_at"`
	Columns   []string           `json:"feature_columns"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	LoadedAt  time.Time          `json:"loaded_at"`
}

// state is one loaded schema/model pair. It is never mutated after
// construction and is swapped as a whole.
type state struct {
	bundle   artifact.Bundle
	encoder  *features.Encoder
	model    Regressor
	loadedAt time.Time
}

type Predictor struct {
	store   artifact.Store
	name    string
	factory ModelFactory
	current atomic.Pointer[state]
}

type Option func(*Predictor)

func WithModelFactory(factory ModelFactory) Option {
	return func(p *Predictor) {
		p.factory = factory
	}
}

func NewPredictor(store artifact.Store, name string, opts ...Option) *Predictor {
	p := &Predictor{
		store:   store,
		name:    name,
		factory: DefaultModelFactory,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load reads and validates the bundle. Callers treat an error at startup as
// fatal; the error wraps ErrPredictorUnavailable and, for incompatible pairs,
// features.ErrSchemaMismatch.
func (p *Predictor) Load(ctx context.Context) error {
	next, err := p.build(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPredictorUnavailable, err)
	}
	p.current.Store(next)
	logger.Log.WithFields(map[string]interface{}{
		"model":   p.name,
		"version": next.bundle.Version.String(),
		"columns": next.bundle.Schema.Len(),
	}).Info("model bundle loaded")
	return nil
}

// Reload swaps in a freshly loaded pair. On failure the previous pair stays
// in service.
func (p *Predictor) Reload(ctx context.Context) error {
	previous := p.current.Load()
	next, err := p.build(ctx)
	if err != nil {
		return fmt.Errorf("reloading %s: %w", p.name, err)
	}
	if previous != nil && previous.bundle.Version == next.bundle.Version {
		return nil
	}
	p.current.Store(next)
	fields := map[string]interface{}{
		"model":   p.name,
		"version": next.bundle.Version.String(),
		"columns": next.bundle.Schema.Len(),
	}
	if previous != nil {
		fields["previous_version"] = previous.bundle.Version.String()
	}
	logger.Log.WithFields(fields).Info("model bundle reloaded")
	return nil
}

func (p *Predictor) build(ctx context.Context) (*state, error) {
	bundle, err := p.store.Load(ctx, p.name)
	if err != nil {
		return nil, err
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	model, err := p.factory(bundle.Model)
	if err != nil {
		return nil, err
	}
	if model.InputWidth() != bundle.Schema.Len() {
		return nil, fmt.Errorf("%w: schema has %d columns but model expects %d inputs",
			features.ErrSchemaMismatch, bundle.Schema.Len(), model.InputWidth())
	}
	return &state{
		bundle:   bundle,
		encoder:  features.NewEncoder(bundle.Attributes),
		model:    model,
		loadedAt: time.Now().UTC(),
	}, nil
}

func (p *Predictor) Ready() bool {
	return p.current.Load() != nil
}

func (p *Predictor) Info() (Info, error) {
	cur := p.current.Load()
	if cur == nil {
		return Info{}, ErrPredictorUnavailable
	}
	return Info{
		Name:      p.name,
		Version:   cur.bundle.Version,
		CreatedAt: cur.bundle.CreatedAt,
		Columns:   cur.bundle.Schema.Columns(),
		Metrics:   cur.bundle.Metrics,
		LoadedAt:  cur.loadedAt,
	}, nil
}

// Attributes returns the declarations of the loaded bundle.
func (p *Predictor) Attributes() (features.AttributeSet, error) {
	cur := p.current.Load()
	if cur == nil {
		return features.AttributeSet{}, ErrPredictorUnavailable
	}
	return cur.bundle.Attributes, nil
}

// Encoded is a record that passed validation and encoding against one loaded
// pair. Columns holds the schema-agnostic column/value pairs.
type Encoded struct {
	ModelVersion uuid.UUID
	Columns      map[string]float64
}

// Encode validates and encodes record against the loaded pair without running
// the model. It fails exactly when Predict would fail before invoking it.
func (p *Predictor) Encode(record features.Record) (Encoded, error) {
	cur := p.current.Load()
	if cur == nil {
		return Encoded{}, ErrPredictorUnavailable
	}
	partial, err := cur.encode(record)
	if err != nil {
		return Encoded{}, err
	}
	return Encoded{ModelVersion: cur.bundle.Version, Columns: partial}, nil
}

// Predict validates, encodes and aligns record against the loaded schema and
// runs the model. Every step reads the same loaded pair.
func (p *Predictor) Predict(record features.Record) (Prediction, error) {
	cur := p.current.Load()
	if cur == nil {
		return Prediction{}, ErrPredictorUnavailable
	}

	partial, err := cur.encode(record)
	if err != nil {
		return Prediction{}, err
	}
	vector, err := features.Align(partial, cur.bundle.Schema)
	if err != nil {
		return Prediction{}, err
	}

	raw, err := invoke(cur.model, vector)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{
		Minutes:        Round(raw),
		Raw:            raw,
		ModelVersion:   cur.bundle.Version,
		UnseenCategory: features.Unmatched(partial, cur.bundle.Schema),
	}, nil
}

func (s *state) encode(record features.Record) (map[string]float64, error) {
	if err := s.bundle.Attributes.Validate(record); err != nil {
		return nil, err
	}
	return s.encoder.Encode(record)
}

func invoke(model Regressor, vector []float64) (raw float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrModelInvocation, r)
		}
	}()
	raw, err = model.Predict(vector)
	if err != nil {
		if errors.Is(err, ErrModelInvocation) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", ErrModelInvocation, err)
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("%w: non-finite result %v", ErrModelInvocation, raw)
	}
	return raw, nil
}

// Round keeps Precision decimals for presentation.
func Round(value float64) float64 {
	scale := math.Pow(10, Precision)
	return math.Round(value*scale) / scale
}
