package mysql

import (
	"context"
	"database/sql"
	"errors"

	"house_price/internal/domain"
)

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repo) SavePrediction(ctx context.Context, rec domain.PredictionRecord) error {
	var lower, upper *float64
	if ci := rec.Result.ConfidenceInterval; ci != nil {
		lower, upper = &ci.LowerBound, &ci.UpperBound
	}
	in := rec.Input
	_, err := r.db.ExecContext(ctx, insertPredictionSQL,
		rec.ID,
		string(in.City),
		in.Locality,
		string(in.PropertyType),
		string(in.Furnishing),
		in.AreaSqft,
		in.Bathrooms,
		in.AgeYears,
		in.AmenitiesCount,
		in.ParkingSpots,
		in.Floor,
		in.TotalFloors,
		rec.Result.PredictedPrice,
		valF64(lower),
		valF64(upper),
		string(rec.Source),
		rec.CreatedAt,
	)
	return err
}

func (r *Repo) GetPrediction(ctx context.Context, id string) (domain.PredictionRecord, error) {
	rec, err := scanPrediction(r.db.QueryRowContext(ctx, getPredictionSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PredictionRecord{}, domain.ErrNotFound
	}
	return rec, err
}

func (r *Repo) ListPredictions(ctx context.Context, limit int) ([]domain.PredictionRecord, error) {
	rows, err := r.db.QueryContext(ctx, listPredictionsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PredictionRecord
	for rows.Next() {
		rec, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(s scanner) (domain.PredictionRecord, error) {
	var (
		rec                    domain.PredictionRecord
		city, ptype, furn, src string
		lower, upper           sql.NullFloat64
	)
	if err := s.Scan(
		&rec.ID,
		&city,
		&rec.Input.Locality,
		&ptype,
		&furn,
		&rec.Input.AreaSqft,
		&rec.Input.Bathrooms,
		&rec.Input.AgeYears,
		&rec.Input.AmenitiesCount,
		&rec.Input.ParkingSpots,
		&rec.Input.Floor,
		&rec.Input.TotalFloors,
		&rec.Result.PredictedPrice,
		&lower,
		&upper,
		&src,
		&rec.CreatedAt,
	); err != nil {
		return domain.PredictionRecord{}, err
	}
	rec.Input.City = domain.City(city)
	rec.Input.PropertyType = domain.PropertyType(ptype)
	rec.Input.Furnishing = domain.Furnishing(furn)
	rec.Source = domain.Source(src)
	// both bounds or neither
	if lower.Valid && upper.Valid {
		rec.Result.ConfidenceInterval = &domain.ConfidenceInterval{LowerBound: lower.Float64, UpperBound: upper.Float64}
	}
	return rec, nil
}
