package domain

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Predictor turns a property into a price estimate.
type Predictor interface {
	Predict(ctx context.Context, in PropertyInput) (PredictionResult, error)
	Source() Source
}

// BatchPredictor prices many inputs in one call. Only prices come back.
type BatchPredictor interface {
	PredictBatch(ctx context.Context, ins []PropertyInput) ([]float64, error)
}

type PredictionRepository interface {
	SavePrediction(ctx context.Context, rec PredictionRecord) error
	GetPrediction(ctx context.Context, id string) (PredictionRecord, error)
	ListPredictions(ctx context.Context, limit int) ([]PredictionRecord, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Locker is a best-effort, expiring mutual exclusion keyed by name.
type Locker interface {
	TryLock(ctx context.Context, key string, ttlSec int) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// SessionStore keeps form sessions.
type SessionStore interface {
	Cache
	Locker
}
