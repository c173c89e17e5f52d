package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

// nullJSON stores nil slices as NULL so they read back as nil
func nullJSON[T any](items []T) (sql.NullString, error) {
	if items == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeNullJSON[T any](ns sql.NullString, column string) ([]T, error) {
	if !ns.Valid {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal([]byte(ns.String), &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", column, err)
	}
	return items, nil
}
