// Package form holds the state of one property form session: field edits,
// dependent-field resets, and the submit/busy/error lifecycle.
package form

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"house_price/internal/domain"
)

// FailureMessage is the only error text a user ever sees for a failed submit.
const FailureMessage = "Failed to get prediction. Please try again."

var (
	ErrBusy         = errors.New("form: submission already in progress")
	ErrUnknownField = errors.New("form: unknown field")
)

// SubmitFunc estimates a price for a completed record.
type SubmitFunc func(ctx context.Context, in domain.PropertyInput) (domain.PredictionResult, error)

// Rule clears dependent fields whenever Parent changes.
type Rule struct {
	Parent string
	Clears []string
}

// DefaultRules: a new city invalidates the chosen locality.
func DefaultRules() []Rule {
	return []Rule{{Parent: "city", Clears: []string{"locality"}}}
}

// State is a serializable snapshot of a collector.
type State struct {
	Input               domain.PropertyInput     `json:"input"`
	Busy                bool                     `json:"busy"`
	Result              *domain.PredictionResult `json:"result,omitempty"`
	Error               string                   `json:"error,omitempty"`
	AvailableLocalities []string                 `json:"available_localities"`
}

type Collector struct {
	mu     sync.Mutex
	input  domain.PropertyInput
	rules  map[string][]string
	busy   bool
	result *domain.PredictionResult
	errMsg string
}

// New starts a collector on the default record. With no rules given,
// DefaultRules apply.
func New(rules ...Rule) *Collector {
	return Restore(State{Input: domain.DefaultInput()}, rules...)
}

// Restore rebuilds a collector from a snapshot.
func Restore(s State, rules ...Rule) *Collector {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	c := &Collector{
		input:  s.Input,
		rules:  make(map[string][]string, len(rules)),
		busy:   s.Busy,
		result: s.Result,
		errMsg: s.Error,
	}
	for _, r := range rules {
		c.rules[r.Parent] = append(c.rules[r.Parent], r.Clears...)
	}
	return c
}

func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Input:               c.input,
		Busy:                c.busy,
		Result:              c.result,
		Error:               c.errMsg,
		AvailableLocalities: domain.Localities(c.input.City),
	}
}

func (c *Collector) Input() domain.PropertyInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Change sets one field from its raw form value and clears the fields that
// depend on it. Numbers are coerced; nothing is range-checked.
func (c *Collector) Change(field, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := setField(&c.input, field, raw); err != nil {
		return err
	}
	for _, dep := range c.rules[field] {
		if err := setField(&c.input, dep, ""); err != nil {
			return fmt.Errorf("clear %s after %s: %w", dep, field, err)
		}
	}
	return nil
}

// Submit hands a copy of the record to fn. While fn runs the collector is
// busy and further submits fail with ErrBusy. On failure the generic message
// is recorded and fn's error is returned for logging.
func (c *Collector) Submit(ctx context.Context, fn SubmitFunc) (domain.PredictionResult, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return domain.PredictionResult{}, ErrBusy
	}
	c.busy = true
	c.errMsg = ""
	in := c.input
	c.mu.Unlock()

	res, err := fn(ctx, in)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err != nil {
		c.errMsg = FailureMessage
		return domain.PredictionResult{}, err
	}
	c.result = &res
	return res, nil
}

// Reset drops the result and error; the record itself is kept.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = nil
	c.errMsg = ""
}

// Fields lists the names accepted by Change.
func Fields() []string {
	return []string{
		"area_sqft", "bathrooms", "age_years", "city", "locality",
		"property_type", "furnishing", "amenities_count", "parking_spots",
		"floor", "total_floors",
	}
}

func setField(in *domain.PropertyInput, field, raw string) error {
	switch field {
	case "area_sqft":
		in.AreaSqft = toFloat(raw)
	case "bathrooms":
		in.Bathrooms = toFloat(raw)
	case "age_years":
		in.AgeYears = toFloat(raw)
	case "city":
		in.City = domain.City(raw)
	case "locality":
		in.Locality = raw
	case "property_type":
		in.PropertyType = domain.PropertyType(raw)
	case "furnishing":
		in.Furnishing = domain.Furnishing(raw)
	case "amenities_count":
		in.AmenitiesCount = toInt(raw)
	case "parking_spots":
		in.ParkingSpots = toInt(raw)
	case "floor":
		in.Floor = toInt(raw)
	case "total_floors":
		in.TotalFloors = toInt(raw)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// toFloat mirrors number-input coercion: blank, garbage, NaN and infinities
// become 0.
func toFloat(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func toInt(raw string) int {
	s := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	// "2.0" and "3.7" come from number inputs too
	f := toFloat(s)
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}
