package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"house_price/internal/domain"
)

const (
	defaultBasePerSqft = 7000.0
	defaultMultiplier  = 1.0
)

// Tables holds the lookup constants of the estimator. Values are read-only
// after construction.
type Tables struct {
	basePerSqft map[domain.City]float64
	typeMult    map[domain.PropertyType]float64
	furnishMult map[domain.Furnishing]float64
	amenityAdd  float64
	parkingAdd  float64
	defaultBase float64
	source      string
}

func DefaultTables() Tables {
	return Tables{
		basePerSqft: map[domain.City]float64{
			domain.Bengaluru: 7000,
			domain.Mumbai:    15000,
			domain.Delhi:     9000,
			domain.Chennai:   6000,
			domain.Hyderabad: 6500,
			domain.Pune:      5500,
			domain.Kolkata:   5000,
		},
		typeMult: map[domain.PropertyType]float64{
			domain.Apartment: 1.0,
			domain.Villa:     1.5,
			domain.Penthouse: 1.8,
			domain.Studio:    0.9,
			domain.Duplex:    1.3,
		},
		furnishMult: map[domain.Furnishing]float64{
			domain.FullyFurnished: 1.2,
			domain.SemiFurnished:  1.1,
			domain.Unfurnished:    1.0,
		},
		amenityAdd:  50000,
		parkingAdd:  150000,
		defaultBase: defaultBasePerSqft,
		source:      "builtin",
	}
}

// BasePerSqft returns the city's base price; unknown cities get the default.
func (t Tables) BasePerSqft(c domain.City) float64 {
	if v, ok := t.basePerSqft[c]; ok {
		return v
	}
	return t.defaultBase
}

func (t Tables) TypeMultiplier(p domain.PropertyType) float64 {
	if v, ok := t.typeMult[p]; ok {
		return v
	}
	return defaultMultiplier
}

func (t Tables) FurnishingMultiplier(f domain.Furnishing) float64 {
	if v, ok := t.furnishMult[f]; ok {
		return v
	}
	return defaultMultiplier
}

func (t Tables) AmenityAddOn() float64 { return t.amenityAdd }
func (t Tables) ParkingAddOn() float64 { return t.parkingAdd }

// Source is "builtin" or the path the tables were loaded from.
func (t Tables) Source() string { return t.source }

// Summary is the JSON view used by /model-info.
type Summary struct {
	Source               string             `json:"source"`
	BasePricePerSqft     map[string]float64 `json:"base_price_per_sqft"`
	DefaultBasePerSqft   float64            `json:"default_base_price_per_sqft"`
	PropertyTypeMultiply map[string]float64 `json:"property_type_multiplier"`
	FurnishingMultiply   map[string]float64 `json:"furnishing_multiplier"`
	AmenityAddOn         float64            `json:"amenity_add_on"`
	ParkingAddOn         float64            `json:"parking_add_on"`
}

func (t Tables) Summary() Summary {
	s := Summary{
		Source:               t.source,
		BasePricePerSqft:     make(map[string]float64, len(t.basePerSqft)),
		DefaultBasePerSqft:   t.defaultBase,
		PropertyTypeMultiply: make(map[string]float64, len(t.typeMult)),
		FurnishingMultiply:   make(map[string]float64, len(t.furnishMult)),
		AmenityAddOn:         t.amenityAdd,
		ParkingAddOn:         t.parkingAdd,
	}
	for k, v := range t.basePerSqft {
		s.BasePricePerSqft[string(k)] = v
	}
	for k, v := range t.typeMult {
		s.PropertyTypeMultiply[string(k)] = v
	}
	for k, v := range t.furnishMult {
		s.FurnishingMultiply[string(k)] = v
	}
	return s
}

// tablesFile is the YAML override format. Omitted keys keep their defaults.
type tablesFile struct {
	BasePricePerSqft       map[string]float64 `yaml:"base_price_per_sqft"`
	DefaultBasePerSqft     *float64           `yaml:"default_base_price_per_sqft"`
	PropertyTypeMultiplier map[string]float64 `yaml:"property_type_multiplier"`
	FurnishingMultiplier   map[string]float64 `yaml:"furnishing_multiplier"`
	AmenityAddOn           *float64           `yaml:"amenity_add_on"`
	ParkingAddOn           *float64           `yaml:"parking_add_on"`
}

// LoadTables reads a YAML override file on top of DefaultTables.
func LoadTables(path string) (Tables, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read pricing tables: %w", err)
	}
	t, err := ParseTables(b)
	if err != nil {
		return Tables{}, fmt.Errorf("parse pricing tables %s: %w", path, err)
	}
	t.source = path
	return t, nil
}

func ParseTables(b []byte) (Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Tables{}, err
	}

	t := DefaultTables()
	t.source = "yaml"
	for k, v := range f.BasePricePerSqft {
		if v <= 0 {
			return Tables{}, fmt.Errorf("base_price_per_sqft[%s] must be positive", k)
		}
		t.basePerSqft[domain.City(k)] = v
	}
	for k, v := range f.PropertyTypeMultiplier {
		if v <= 0 {
			return Tables{}, fmt.Errorf("property_type_multiplier[%s] must be positive", k)
		}
		t.typeMult[domain.PropertyType(k)] = v
	}
	for k, v := range f.FurnishingMultiplier {
		if v <= 0 {
			return Tables{}, fmt.Errorf("furnishing_multiplier[%s] must be positive", k)
		}
		t.furnishMult[domain.Furnishing(k)] = v
	}
	if f.DefaultBasePerSqft != nil {
		if *f.DefaultBasePerSqft <= 0 {
			return Tables{}, fmt.Errorf("default_base_price_per_sqft must be positive")
		}
		t.defaultBase = *f.DefaultBasePerSqft
	}
	if f.AmenityAddOn != nil {
		t.amenityAdd = *f.AmenityAddOn
	}
	if f.ParkingAddOn != nil {
		t.parkingAdd = *f.ParkingAddOn
	}
	return t, nil
}
