package app

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"house_price/internal/domain"
)

/********** alias registry (single source of truth) **********/

// Column names seen in exported listings and in the training CSV.
var inputAliases = map[string][]string{
	"area_sqft":       {"area_sqft", "area", "sqft", "size_sqft"},
	"bathrooms":       {"bathrooms", "baths", "bath"},
	"age_years":       {"age_years", "age", "property_age"},
	"city":            {"city", "town"},
	"locality":        {"locality", "neighbourhood", "neighborhood", "area_name"},
	"property_type":   {"property_type", "type"},
	"furnishing":      {"furnishing", "furnishing_status"},
	"amenities_count": {"amenities_count", "amenities"},
	"parking_spots":   {"parking_spots", "parking"},
	"floor":           {"floor", "floor_num", "floor_no"},
	"total_floors":    {"total_floors", "floors", "building_floors"},
}

// required columns; the rest default to the form defaults
var requiredInputs = []string{"area_sqft", "city"}

/********** tiny helpers **********/

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// firstAlias returns the first non-empty value among key's aliases.
func firstAlias(row map[string]string, key string) (string, bool) {
	for _, a := range inputAliases[key] {
		if v := strings.TrimSpace(row[a]); v != "" {
			return v, true
		}
	}
	return "", false
}

// parseFloatFlexible accepts "1,200", "1200.0" and "  950 ".
func parseFloatFlexible(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}

func parseIntFlexible(s string) (int, error) {
	f, err := parseFloatFlexible(s)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

/********** row mapper **********/

// MapRow maps one CSV record (header -> value) onto a PropertyInput.
// Headers are matched case-insensitively through inputAliases.
func MapRow(raw map[string]string) (domain.PropertyInput, error) {
	row := make(map[string]string, len(raw))
	for k, v := range raw {
		row[normalizeKey(k)] = v
	}

	for _, k := range requiredInputs {
		if _, ok := firstAlias(row, k); !ok {
			return domain.PropertyInput{}, fmt.Errorf("missing column %q", k)
		}
	}

	in := domain.DefaultInput()
	floats := map[string]*float64{
		"area_sqft": &in.AreaSqft,
		"bathrooms": &in.Bathrooms,
		"age_years": &in.AgeYears,
	}
	for k, dst := range floats {
		if v, ok := firstAlias(row, k); ok {
			f, err := parseFloatFlexible(v)
			if err != nil {
				return domain.PropertyInput{}, fmt.Errorf("%s: %q is not a number", k, v)
			}
			*dst = f
		}
	}
	ints := map[string]*int{
		"amenities_count": &in.AmenitiesCount,
		"parking_spots":   &in.ParkingSpots,
		"floor":           &in.Floor,
		"total_floors":    &in.TotalFloors,
	}
	for k, dst := range ints {
		if v, ok := firstAlias(row, k); ok {
			n, err := parseIntFlexible(v)
			if err != nil {
				return domain.PropertyInput{}, fmt.Errorf("%s: %q is not a number", k, v)
			}
			*dst = n
		}
	}

	if v, ok := firstAlias(row, "city"); ok {
		in.City = canonicalCity(v)
	}
	if v, ok := firstAlias(row, "locality"); ok {
		in.Locality = v
	}
	if v, ok := firstAlias(row, "property_type"); ok {
		in.PropertyType = canonicalType(v)
	}
	if v, ok := firstAlias(row, "furnishing"); ok {
		in.Furnishing = canonicalFurnishing(v)
	}
	return in, nil
}

func canonicalCity(s string) domain.City {
	for _, c := range domain.Cities {
		if strings.EqualFold(string(c), s) {
			return c
		}
	}
	if strings.EqualFold(s, "bangalore") {
		return domain.Bengaluru
	}
	return domain.City(s)
}

func canonicalType(s string) domain.PropertyType {
	for _, p := range domain.PropertyTypes {
		if strings.EqualFold(string(p), s) {
			return p
		}
	}
	return domain.PropertyType(s)
}

// canonicalFurnishing also accepts the display labels ("Semi Furnished").
func canonicalFurnishing(s string) domain.Furnishing {
	norm := strings.ReplaceAll(strings.TrimSpace(s), " ", "-")
	for _, f := range domain.FurnishingOptions {
		if strings.EqualFold(string(f), norm) {
			return f
		}
	}
	return domain.Furnishing(s)
}

/********** csv reader **********/

// ReadCSV returns the records of r keyed by the header row.
func ReadCSV(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}

	var rows []map[string]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", len(rows)+2, err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
