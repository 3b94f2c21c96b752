package app_test

import (
	"strings"
	"testing"

	"house_price/internal/app"
	"house_price/internal/domain"
)

func TestMapRow_TrainingColumns(t *testing.T) {
	in, err := app.MapRow(map[string]string{
		"area_sqft":       "1,200",
		"Bathrooms":       "2.5",
		"age_years":       "8",
		"city":            "bangalore",
		"locality":        "Koramangala",
		"property_type":   "villa",
		"furnishing":      "Fully Furnished",
		"amenities_count": "4",
		"floor_num":       "3",
		"total_floors":    "12",
	})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	want := domain.PropertyInput{
		AreaSqft:       1200,
		Bathrooms:      2.5,
		AgeYears:       8,
		City:           domain.Bengaluru,
		Locality:       "Koramangala",
		PropertyType:   domain.Villa,
		Furnishing:     domain.FullyFurnished,
		AmenitiesCount: 4,
		ParkingSpots:   1, // default
		Floor:          3,
		TotalFloors:    12,
	}
	if in != want {
		t.Fatalf("got %+v\nwant %+v", in, want)
	}
}

func TestMapRow_Errors(t *testing.T) {
	if _, err := app.MapRow(map[string]string{"city": "Pune"}); err == nil {
		t.Fatalf("expected missing area error")
	}
	if _, err := app.MapRow(map[string]string{"area": "big", "city": "Pune"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestReadCSV(t *testing.T) {
	src := "Area,City,Locality,floor_no\n1500,Mumbai,Powai,4\n\"2,000\",pune,Baner\n"
	rows, err := app.ReadCSV(strings.NewReader(src))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: %d", len(rows))
	}

	first, err := app.MapRow(rows[0])
	if err != nil {
		t.Fatalf("map first: %v", err)
	}
	if first.AreaSqft != 1500 || first.City != domain.Mumbai || first.Floor != 4 {
		t.Fatalf("first: %+v", first)
	}

	// short row: missing floor keeps the default
	second, err := app.MapRow(rows[1])
	if err != nil {
		t.Fatalf("map second: %v", err)
	}
	if second.AreaSqft != 2000 || second.City != domain.Pune || second.Floor != domain.DefaultInput().Floor {
		t.Fatalf("second: %+v", second)
	}

	if _, err := app.ReadCSV(strings.NewReader("")); err == nil {
		t.Fatalf("expected missing header error")
	}
}
