package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{
			name: "matching constraint",
			err: &pgconn.PgError{
				Code:           uniqueViolationCode,
				ConstraintName: activePurchaseIndexName,
			},
			constraint: activePurchaseIndexName,
			want:       true,
		},
		{
			name: "wrapped matching constraint",
			err: fmt.Errorf("insert failed: %w", &pgconn.PgError{
				Code:           uniqueViolationCode,
				ConstraintName: slotCodeIndexName,
			}),
			constraint: slotCodeIndexName,
			want:       true,
		},
		{
			name: "different constraint",
			err: &pgconn.PgError{
				Code:           uniqueViolationCode,
				ConstraintName: slotCodeIndexName,
			},
			constraint: activePurchaseIndexName,
			want:       false,
		},
		{
			name: "different sqlstate",
			err: &pgconn.PgError{
				Code:           "23503",
				ConstraintName: activePurchaseIndexName,
			},
			constraint: activePurchaseIndexName,
			want:       false,
		},
		{
			name:       "non-pg error",
			err:        errors.New("connection reset"),
			constraint: activePurchaseIndexName,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err, tt.constraint); got != tt.want {
				t.Fatalf("isUniqueViolation = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestNormalizeQueueDate(t *testing.T) {
	caracas := time.FixedZone("VET", -4*3600)
	tests := []struct {
		name  string
		input time.Time
		want  time.Time
	}{
		{
			name:  "strips time of day",
			input: time.Date(2026, 3, 10, 15, 42, 7, 999, time.UTC),
			want:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "midnight is unchanged",
			input: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "keeps wall-clock date from a non-utc zone",
			input: time.Date(2026, 3, 10, 22, 0, 0, 0, caracas),
			want:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeQueueDate(tt.input)
			if !got.Equal(tt.want) {
				t.Fatalf("normalizeQueueDate(%s) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}
