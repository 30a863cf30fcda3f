package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/doctorauto/sophia/internal/domain"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

const (
	pgInvalidText    = "22P02" // malformed uuid in a lookup
	pgForeignKey     = "23503" // task for an agent that does not exist
	pgUndefinedTable = "42P01"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// notFoundWrap maps "no rows" and malformed ids to domain.ErrNotFound and
// everything else to domain.ErrUpstream.
func notFoundWrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == pgInvalidText {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	return upstream(err, "%s", msg)
}

// upstream wraps a driver error so the gateway reports it as a 500.
func upstream(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrUpstream, fmt.Sprintf(format, args...), err)
}

// orEmpty ensures JSON serialization produces [] instead of null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// jsonMap encodes m for a jsonb column, using {} for nil.
func jsonMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// decodeMap decodes a nullable jsonb column.
func decodeMap(raw []byte, field string) (map[string]any, error) {
	if raw == nil {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", field, err)
	}
	return m, nil
}

// nullIfEmpty returns nil for empty strings (nullable uuid columns).
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
