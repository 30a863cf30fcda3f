package postgres

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/port/database"
)

// businessErr reports a table the website has not created yet as not found.
func businessErr(err error, table string) error {
	if pgCode(err) == pgUndefinedTable {
		return fmt.Errorf("table %s: %w", table, domain.ErrNotFound)
	}
	return upstream(err, "read %s", table)
}

func (s *Store) ListBusinessRecords(ctx context.Context, table string, limit int) ([]database.BusinessRecord, error) {
	ident := pgx.Identifier{table}.Sanitize()
	rows, err := s.pool.Query(ctx,
		`SELECT to_jsonb(t) FROM `+ident+` t LIMIT $1`, limit)
	if err != nil {
		return nil, businessErr(err, table)
	}
	return collectRecords(rows, table)
}

// CountBusinessRecords counts rows matching equality on every key of where.
func (s *Store) CountBusinessRecords(ctx context.Context, table string, where map[string]any) (int, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("SELECT count(*) FROM " + pgx.Identifier{table}.Sanitize())

	cols := make([]string, 0, len(where))
	for c := range where {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	for i, c := range cols {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, where[c])
		fmt.Fprintf(&sb, "%s = $%d", pgx.Identifier{c}.Sanitize(), len(args))
	}

	var n int
	if err := s.pool.QueryRow(ctx, sb.String(), args...).Scan(&n); err != nil {
		return 0, businessErr(err, table)
	}
	return n, nil
}

func (s *Store) ListOverdueServiceOrders(ctx context.Context, cutoff time.Time, limit int) ([]database.BusinessRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT jsonb_build_object('id', id, 'numero', numero, 'cliente_nome', cliente_nome,
		                           'status', status, 'created_at', created_at)
		 FROM ordens_servico
		 WHERE status = 'aberta' AND created_at < $1
		 ORDER BY created_at LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, businessErr(err, "ordens_servico")
	}
	return collectRecords(rows, "ordens_servico")
}

func collectRecords(rows pgx.Rows, table string) ([]database.BusinessRecord, error) {
	defer rows.Close()
	var out []database.BusinessRecord
	for rows.Next() {
		var rec map[string]any
		if err := rows.Scan(&rec); err != nil {
			return nil, upstream(err, "scan %s", table)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, businessErr(err, table)
	}
	return orEmpty(out), nil
}
