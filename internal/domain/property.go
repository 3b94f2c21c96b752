package domain

import (
	"fmt"
	"math"
	"strings"
)

type City string

const (
	Bengaluru City = "Bengaluru"
	Mumbai    City = "Mumbai"
	Delhi     City = "Delhi"
	Chennai   City = "Chennai"
	Hyderabad City = "Hyderabad"
	Pune      City = "Pune"
	Kolkata   City = "Kolkata"
)

type PropertyType string

const (
	Apartment PropertyType = "Apartment"
	Villa     PropertyType = "Villa"
	Penthouse PropertyType = "Penthouse"
	Studio    PropertyType = "Studio"
	Duplex    PropertyType = "Duplex"
)

type Furnishing string

const (
	FullyFurnished Furnishing = "Fully-Furnished"
	SemiFurnished  Furnishing = "Semi-Furnished"
	Unfurnished    Furnishing = "Unfurnished"
)

// Cities, PropertyTypes and FurnishingOptions are in display order.
var (
	Cities            = []City{Bengaluru, Mumbai, Delhi, Chennai, Hyderabad, Pune, Kolkata}
	PropertyTypes     = []PropertyType{Apartment, Villa, Penthouse, Studio, Duplex}
	FurnishingOptions = []Furnishing{FullyFurnished, SemiFurnished, Unfurnished}
)

var cityLocalities = map[City][]string{
	Bengaluru: {"Whitefield", "Koramangala", "Indiranagar", "HSR Layout", "Electronic City", "Hebbal", "Jayanagar"},
	Mumbai:    {"Andheri", "Bandra", "Powai", "Worli", "Thane", "Malad", "Chembur"},
	Delhi:     {"Dwarka", "Vasant Kunj", "Saket", "Rohini", "Lajpat Nagar", "Greater Kailash"},
	Chennai:   {"Adyar", "Velachery", "Anna Nagar", "T Nagar", "OMR", "Porur"},
	Hyderabad: {"Gachibowli", "Hitech City", "Kondapur", "Banjara Hills", "Jubilee Hills", "Madhapur"},
	Pune:      {"Hinjewadi", "Kharadi", "Baner", "Wakad", "Viman Nagar", "Kothrud"},
	Kolkata:   {"Salt Lake", "New Town", "Ballygunge", "Behala", "Rajarhat", "Park Street"},
}

// Localities returns a copy of the locality list for city, or nil for an unknown city.
func Localities(city City) []string {
	ls, ok := cityLocalities[city]
	if !ok {
		return nil
	}
	return append([]string(nil), ls...)
}

// HasLocality reports whether locality belongs to city's list.
func HasLocality(city City, locality string) bool {
	for _, l := range cityLocalities[city] {
		if l == locality {
			return true
		}
	}
	return false
}

// PropertyInput is one submission of the prediction form.
type PropertyInput struct {
	AreaSqft       float64      `json:"area_sqft"`
	Bathrooms      float64      `json:"bathrooms"`
	AgeYears       float64      `json:"age_years"`
	City           City         `json:"city"`
	Locality       string       `json:"locality"`
	PropertyType   PropertyType `json:"property_type"`
	Furnishing     Furnishing   `json:"furnishing"`
	AmenitiesCount int          `json:"amenities_count"`
	ParkingSpots   int          `json:"parking_spots"`
	Floor          int          `json:"floor"`
	TotalFloors    int          `json:"total_floors"`
}

// DefaultInput is the record a fresh form starts from.
func DefaultInput() PropertyInput {
	return PropertyInput{
		AreaSqft:       1000,
		Bathrooms:      2,
		AgeYears:       5,
		City:           Bengaluru,
		Locality:       "",
		PropertyType:   Apartment,
		Furnishing:     SemiFurnished,
		AmenitiesCount: 2,
		ParkingSpots:   1,
		Floor:          1,
		TotalFloors:    10,
	}
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// FieldError is a single failed constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Validate checks the request boundary. Lookup keys (city, type,
// furnishing) are not restricted to the known sets: the estimator falls back
// to its defaults for unknown keys.
func (p PropertyInput) Validate() error {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case !finite(p.AreaSqft):
		add("area_sqft", "must be a finite number")
	case p.AreaSqft <= 0:
		add("area_sqft", "must be greater than 0")
	}
	switch {
	case !finite(p.Bathrooms):
		add("bathrooms", "must be a finite number")
	case p.Bathrooms <= 0:
		add("bathrooms", "must be greater than 0")
	}
	switch {
	case !finite(p.AgeYears):
		add("age_years", "must be a finite number")
	case p.AgeYears < 0:
		add("age_years", "must be greater than or equal to 0")
	}
	if p.Floor < 0 {
		add("floor", "must be greater than or equal to 0")
	}
	if p.TotalFloors < 1 {
		add("total_floors", "must be greater than or equal to 1")
	}
	if p.AmenitiesCount < 0 {
		add("amenities_count", "must be greater than or equal to 0")
	}
	if p.ParkingSpots < 0 {
		add("parking_spots", "must be greater than or equal to 0")
	}
	if len(strings.TrimSpace(string(p.City))) < 2 {
		add("city", "must be at least 2 characters")
	}
	if strings.TrimSpace(p.Locality) == "" {
		add("locality", "must not be empty")
	}
	if len(strings.TrimSpace(string(p.Furnishing))) < 2 {
		add("furnishing", "must be at least 2 characters")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
