package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/decision"
)

const decisionColumns = `id, tipo_decisao, contexto, decisao, status, resultado, agente_afetado, created_at`

func (s *Store) CreateDecision(ctx context.Context, req decision.CreateRequest) (*decision.Decision, error) {
	d, err := scanDecision(s.pool.QueryRow(ctx,
		`INSERT INTO ia_mae_decisoes (tipo_decisao, contexto, decisao, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+decisionColumns,
		req.Type, req.Context, req.Proposal, req.Status))
	if err != nil {
		return nil, upstream(err, "create decision")
	}
	return &d, nil
}

func (s *Store) GetDecision(ctx context.Context, id string) (*decision.Decision, error) {
	d, err := scanDecision(s.pool.QueryRow(ctx,
		`SELECT `+decisionColumns+` FROM ia_mae_decisoes WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get decision %s", id)
	}
	return &d, nil
}

// SetDecisionStatus writes unless the row is already executed. The guard is
// part of the UPDATE so an executor's concurrent write is never overwritten.
func (s *Store) SetDecisionStatus(ctx context.Context, id string, status decision.Status, result string) error {
	var updated string
	err := s.pool.QueryRow(ctx,
		`UPDATE ia_mae_decisoes SET status = $2, resultado = $3
		 WHERE id = $1 AND status <> 'executado'
		 RETURNING id`, id, status, result).Scan(&updated)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return notFoundWrap(err, "set decision %s", id)
	}

	// no row updated: either unknown id or frozen
	if _, getErr := s.GetDecision(ctx, id); getErr != nil {
		return getErr
	}
	return fmt.Errorf("set decision %s: already executed: %w", id, domain.ErrConflict)
}

func (s *Store) ListDecisions(ctx context.Context, f decision.ListFilter) ([]decision.Decision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+decisionColumns+` FROM ia_mae_decisoes
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC LIMIT $2`, string(f.Status), f.Limit)
	if err != nil {
		return nil, upstream(err, "list decisions")
	}
	defer rows.Close()

	var out []decision.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, upstream(err, "scan decision")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream(err, "list decisions")
	}
	return orEmpty(out), nil
}

func (s *Store) CountDecisions(ctx context.Context, status decision.Status) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM ia_mae_decisoes WHERE ($1 = '' OR status = $1)`, string(status),
	).Scan(&n); err != nil {
		return 0, upstream(err, "count decisions")
	}
	return n, nil
}

func scanDecision(row scannable) (decision.Decision, error) {
	var (
		d        decision.Decision
		affected *string
	)
	err := row.Scan(&d.ID, &d.Type, &d.Context, &d.Proposal, &d.Status, &d.Result, &affected, &d.CreatedAt)
	d.AffectedAgent = derefString(affected)
	return d, err
}
