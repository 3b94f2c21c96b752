package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"house_price/internal/adapters/observability"
	"house_price/internal/domain"
)

var ErrEmptyBatch = errors.New("no input data provided")

type PredictionService struct {
	predictor domain.Predictor
	repo      domain.PredictionRepository // optional
	cache     domain.Cache                // optional
	cacheTTL  time.Duration
	workers   int64
	delay     time.Duration
	now       func() time.Time
}

type PredictionOption func(*PredictionService)

// WithHistory persists every fresh prediction.
func WithHistory(r domain.PredictionRepository) PredictionOption {
	return func(s *PredictionService) { s.repo = r }
}

// WithCache serves repeated identical inputs from c for ttl.
func WithCache(c domain.Cache, ttl time.Duration) PredictionOption {
	return func(s *PredictionService) { s.cache, s.cacheTTL = c, ttl }
}

// WithWorkers bounds batch concurrency.
func WithWorkers(n int) PredictionOption {
	return func(s *PredictionService) {
		if n > 0 {
			s.workers = int64(n)
		}
	}
}

// WithDelay adds an artificial latency before each prediction, as the demo
// form does.
func WithDelay(d time.Duration) PredictionOption {
	return func(s *PredictionService) { s.delay = d }
}

func NewPredictionService(p domain.Predictor, opts ...PredictionOption) *PredictionService {
	s := &PredictionService{predictor: p, workers: 4, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *PredictionService) Source() domain.Source { return s.predictor.Source() }

func (s *PredictionService) Predict(ctx context.Context, in domain.PropertyInput) (domain.PredictionResult, error) {
	src := string(s.predictor.Source())
	key := cacheKey(in)

	if s.cache != nil {
		var cached domain.PredictionResult
		if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("prediction cache get failed")
		} else if ok {
			observability.ObservePrediction(src, "cached")
			return cached, nil
		}
	}

	if s.delay > 0 && !sleepCtx(ctx, s.delay) {
		return domain.PredictionResult{}, ctx.Err()
	}

	res, err := s.predictor.Predict(ctx, in)
	if err != nil {
		observability.ObservePrediction(src, "error")
		return domain.PredictionResult{}, fmt.Errorf("predict (%s): %w", src, err)
	}
	observability.ObservePrediction(src, "ok")
	observability.ObservePrice(string(in.City), res.PredictedPrice)

	s.remember(ctx, in, res)
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, res, int(s.cacheTTL.Seconds())); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("prediction cache set failed")
		}
	}
	return res, nil
}

// PredictBatch predicts every input with bounded concurrency. Output order
// matches input order; any failure fails the whole batch.
func (s *PredictionService) PredictBatch(ctx context.Context, ins []domain.PropertyInput) ([]domain.PredictionResult, error) {
	if len(ins) == 0 {
		return nil, ErrEmptyBatch
	}

	if bp, ok := s.predictor.(domain.BatchPredictor); ok {
		return s.predictBatchUpstream(ctx, bp, ins)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]domain.PredictionResult, len(ins))
	sem := semaphore.NewWeighted(s.workers)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for i, in := range ins {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break // ctx canceled: a worker failed or the caller gave up
		}
		wg.Add(1)
		go func(i int, in domain.PropertyInput) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := s.Predict(ctx, in)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("item %d: %w", i, err)
					cancel()
				}
				mu.Unlock()
				return
			}
			out[i] = res
		}(i, in)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// predictBatchUpstream sends the whole batch in one request. The results
// carry no confidence band.
func (s *PredictionService) predictBatchUpstream(ctx context.Context, bp domain.BatchPredictor, ins []domain.PropertyInput) ([]domain.PredictionResult, error) {
	src := string(s.predictor.Source())
	prices, err := bp.PredictBatch(ctx, ins)
	if err != nil {
		observability.ObservePrediction(src, "error")
		return nil, fmt.Errorf("predict batch (%s): %w", src, err)
	}
	out := make([]domain.PredictionResult, len(prices))
	for i, p := range prices {
		out[i] = domain.PredictionResult{PredictedPrice: p}
		observability.ObservePrediction(src, "ok")
		observability.ObservePrice(string(ins[i].City), p)
		s.remember(ctx, ins[i], out[i])
	}
	return out, nil
}

// remember writes a history record. History is best-effort; a failed write
// never fails the prediction.
func (s *PredictionService) remember(ctx context.Context, in domain.PropertyInput, res domain.PredictionResult) {
	if s.repo == nil {
		return
	}
	rec := domain.PredictionRecord{
		ID:        uuid.NewString(),
		Input:     in,
		Result:    res,
		Source:    s.predictor.Source(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.SavePrediction(ctx, rec); err != nil {
		log.Error().Err(err).Str("id", rec.ID).Msg("save prediction failed")
	}
}

// Recent lists stored predictions, newest first.
func (s *PredictionService) Recent(ctx context.Context, limit int) ([]domain.PredictionRecord, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListPredictions(ctx, limit)
}

func (s *PredictionService) Get(ctx context.Context, id string) (domain.PredictionRecord, error) {
	if s.repo == nil {
		return domain.PredictionRecord{}, domain.ErrNotFound
	}
	return s.repo.GetPrediction(ctx, id)
}

func cacheKey(in domain.PropertyInput) string {
	b, _ := json.Marshal(in)
	sum := sha1.Sum(b)
	return "predict:" + hex.EncodeToString(sum[:])
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
