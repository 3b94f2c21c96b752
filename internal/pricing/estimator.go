package pricing

import (
	"context"
	"errors"
	"math"

	"house_price/internal/domain"
)

const (
	depreciationPerYear = 0.01
	maxDepreciation     = 0.3
	floorFactorMin      = 0.9
	floorFactorSpan     = 0.2
	bandLow             = 0.85
	bandHigh            = 1.15
)

// ErrPriceOutOfRange means the inputs are finite but the price is not.
var ErrPriceOutOfRange = errors.New("pricing: estimated price out of range")

type Estimator struct {
	tables Tables
	jitter Jitter
}

func NewEstimator(t Tables, j Jitter) *Estimator {
	if j == nil {
		j = FixedJitter(1)
	}
	return &Estimator{tables: t, jitter: j}
}

func (e *Estimator) Tables() Tables { return e.tables }

// AgeFactor is 1 minus 1% per year, floored at 0.7.
func AgeFactor(ageYears float64) float64 {
	return 1 - math.Min(maxDepreciation, ageYears*depreciationPerYear)
}

// FloorFactor scales linearly from 0.9 on the ground floor to 1.1 on the top
// floor. totalFloors below 1 counts as 1.
func FloorFactor(floor, totalFloors int) float64 {
	if totalFloors < 1 {
		totalFloors = 1
	}
	return floorFactorMin + floorFactorSpan*(float64(floor)/float64(totalFloors))
}

// Base is the price before jitter and rounding.
func (e *Estimator) Base(in domain.PropertyInput) float64 {
	price := e.tables.BasePerSqft(in.City) * in.AreaSqft *
		e.tables.TypeMultiplier(in.PropertyType) *
		e.tables.FurnishingMultiplier(in.Furnishing)
	price *= AgeFactor(in.AgeYears)
	price *= FloorFactor(in.Floor, in.TotalFloors)
	price += float64(in.AmenitiesCount)*e.tables.AmenityAddOn() + float64(in.ParkingSpots)*e.tables.ParkingAddOn()
	return price
}

// Estimate never fails; the confidence band is always present.
func (e *Estimator) Estimate(in domain.PropertyInput) domain.PredictionResult {
	price := math.Round(e.Base(in) * e.jitter.Factor())
	if price < 0 {
		price = 0
	}
	return domain.PredictionResult{
		PredictedPrice: price,
		ConfidenceInterval: &domain.ConfidenceInterval{
			LowerBound: math.Round(price * bandLow),
			UpperBound: math.Round(price * bandHigh),
		},
	}
}

// Predict adapts the estimator to domain.Predictor.
func (e *Estimator) Predict(ctx context.Context, in domain.PropertyInput) (domain.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.PredictionResult{}, err
	}
	res := e.Estimate(in)
	if p := res.PredictedPrice; math.IsInf(p, 0) || math.IsNaN(p) {
		return domain.PredictionResult{}, ErrPriceOutOfRange
	}
	return res, nil
}

func (e *Estimator) Source() domain.Source { return domain.SourceLocal }
