package domain

import "time"

type ConfidenceInterval struct {
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

// PredictionResult is the wire shape of POST /predict. The interval is
// optional: remote predictors may omit it.
type PredictionResult struct {
	PredictedPrice     float64             `json:"predicted_price"`
	ConfidenceInterval *ConfidenceInterval `json:"confidence_interval,omitempty"`
}

type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// PredictionRecord is one stored estimate.
type PredictionRecord struct {
	ID        string           `json:"id"`
	Input     PropertyInput    `json:"input"`
	Result    PredictionResult `json:"result"`
	Source    Source           `json:"source"`
	CreatedAt time.Time        `json:"created_at"`
}

type HealthStatus struct {
	Status string `json:"status"`
}
