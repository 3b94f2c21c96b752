package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"house_price/internal/domain"
	"house_price/internal/form"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionService keeps form.Collector state between requests. The lock key
// stands in for the disabled form: while it is held, edits and submits fail
// with form.ErrBusy.
type SessionService struct {
	store   domain.SessionStore
	submit  form.SubmitFunc
	ttl     time.Duration
	timeout time.Duration
	rules   []form.Rule
}

func NewSessionService(store domain.SessionStore, submit form.SubmitFunc, ttl, timeout time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SessionService{store: store, submit: submit, ttl: ttl, timeout: timeout, rules: form.DefaultRules()}
}

func sessionKey(id string) string { return "session:" + id }
func lockKey(id string) string    { return "session:" + id + ":lock" }

func (s *SessionService) Create(ctx context.Context) (string, form.State, error) {
	id := uuid.NewString()
	st := form.New(s.rules...).State()
	if err := s.save(ctx, id, st); err != nil {
		return "", form.State{}, err
	}
	return id, st, nil
}

func (s *SessionService) Get(ctx context.Context, id string) (form.State, error) {
	return s.load(ctx, id)
}

func (s *SessionService) Change(ctx context.Context, id, field, value string) (form.State, error) {
	var out form.State
	err := s.withLock(ctx, id, 5*time.Second, func(c *form.Collector) error {
		if err := c.Change(field, value); err != nil {
			return err
		}
		out = c.State()
		return s.save(ctx, id, out)
	})
	return out, err
}

func (s *SessionService) Reset(ctx context.Context, id string) (form.State, error) {
	var out form.State
	err := s.withLock(ctx, id, 5*time.Second, func(c *form.Collector) error {
		c.Reset()
		out = c.State()
		return s.save(ctx, id, out)
	})
	return out, err
}

// Submit runs the estimate for the session's record under a timeout. A
// failed estimate still returns the updated state (with the generic message)
// alongside the error.
func (s *SessionService) Submit(ctx context.Context, id string) (form.State, error) {
	var (
		out       form.State
		submitErr error
	)
	err := s.withLock(ctx, id, s.timeout+5*time.Second, func(c *form.Collector) error {
		_, submitErr = c.Submit(ctx, func(ctx context.Context, in domain.PropertyInput) (domain.PredictionResult, error) {
			// publish the busy state for readers polling the session
			if err := s.save(ctx, id, c.State()); err != nil {
				return domain.PredictionResult{}, err
			}
			ctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			return s.submit(ctx, in)
		})
		if submitErr != nil {
			log.Warn().Err(submitErr).Str("session", id).Msg("session submit failed")
		}
		out = c.State()
		// the outcome must land even if the caller went away mid-submit
		return s.save(context.WithoutCancel(ctx), id, out)
	})
	if err != nil {
		return out, err
	}
	return out, submitErr
}

func (s *SessionService) withLock(ctx context.Context, id string, hold time.Duration, fn func(c *form.Collector) error) error {
	ok, err := s.store.TryLock(ctx, lockKey(id), int(hold.Seconds()))
	if err != nil {
		return fmt.Errorf("lock session %s: %w", id, err)
	}
	if !ok {
		return form.ErrBusy
	}
	defer func() {
		if err := s.store.Unlock(context.WithoutCancel(ctx), lockKey(id)); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("session unlock failed")
		}
	}()

	st, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	// holding the lock means no submit is in flight; a stored busy flag is stale
	st.Busy = false
	return fn(form.Restore(st, s.rules...))
}

func (s *SessionService) load(ctx context.Context, id string) (form.State, error) {
	var st form.State
	ok, err := s.store.Get(ctx, sessionKey(id), &st)
	if err != nil {
		return form.State{}, fmt.Errorf("load session %s: %w", id, err)
	}
	if !ok {
		return form.State{}, ErrSessionNotFound
	}
	return st, nil
}

func (s *SessionService) save(ctx context.Context, id string, st form.State) error {
	if err := s.store.Set(ctx, sessionKey(id), st, int(s.ttl.Seconds())); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}
