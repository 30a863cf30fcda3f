package postgres

import (
	"context"
	"time"

	"github.com/doctorauto/sophia/internal/domain/activity"
)

func (s *Store) AppendLog(ctx context.Context, e activity.Entry) error {
	var meta any
	if e.Metadata != nil {
		b, err := jsonMap(e.Metadata)
		if err != nil {
			return upstream(err, "marshal log metadata")
		}
		meta = b
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ia_logs (agent_id, tipo, mensagem, metadata_json) VALUES ($1, $2, $3, $4)`,
		nullIfEmpty(e.AgentID), e.Level, e.Message, meta)
	if err != nil {
		return upstream(err, "append log")
	}
	return nil
}

func (s *Store) ListRecentLogs(ctx context.Context, agentID string, limit int) ([]activity.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, agent_id, tipo, mensagem, metadata_json, created_at
		 FROM ia_logs WHERE ($1 = '' OR agent_id::text = $1)
		 ORDER BY created_at DESC LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, upstream(err, "list logs")
	}
	defer rows.Close()

	var out []activity.Entry
	for rows.Next() {
		var (
			e       activity.Entry
			agent   *string
			rawMeta []byte
		)
		if err := rows.Scan(&e.ID, &agent, &e.Level, &e.Message, &rawMeta, &e.CreatedAt); err != nil {
			return nil, upstream(err, "scan log")
		}
		e.AgentID = derefString(agent)
		if e.Metadata, err = decodeMap(rawMeta, "log metadata"); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream(err, "list logs")
	}
	return orEmpty(out), nil
}

func (s *Store) CountLogs(ctx context.Context, level activity.Level, since time.Time) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM ia_logs WHERE tipo = $1 AND created_at >= $2`, level, since,
	).Scan(&n); err != nil {
		return 0, upstream(err, "count logs")
	}
	return n, nil
}
