package shared_test

import (
	"testing"
	"time"

	"house_price/internal/shared"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PREDICTOR", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("SIMULATED_DELAY_MS", "")
	t.Setenv("PREDICT_API_ATTEMPTS", "")

	c := shared.Load()
	if c.Predictor != "local" || c.HTTPAddr != ":8000" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.SimulatedDelay != time.Second {
		t.Fatalf("simulated delay: got %v", c.SimulatedDelay)
	}
	if c.PredictAttempts != 1 {
		t.Fatalf("remote calls must not retry by default, got %d attempts", c.PredictAttempts)
	}
	if len(c.CORSOrigins) != 4 || c.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected origins: %v", c.CORSOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PREDICTOR", "REMOTE")
	t.Setenv("PREDICT_TIMEOUT_SECONDS", "3")
	t.Setenv("JITTER_SEED", "42")
	t.Setenv("PREDICT_WORKERS", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	c := shared.Load()
	if c.Predictor != "remote" || c.PredictTimeout != 3*time.Second || c.JitterSeed != 42 {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.Workers != 4 {
		t.Fatalf("invalid int should fall back to default, got %d", c.Workers)
	}
	if len(c.CORSOrigins) != 2 || c.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", c.CORSOrigins)
	}
}

func TestLoad_UnknownPredictorFallsBack(t *testing.T) {
	t.Setenv("PREDICTOR", "quantum")
	if c := shared.Load(); c.Predictor != "local" {
		t.Fatalf("got %q", c.Predictor)
	}
}
