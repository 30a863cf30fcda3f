package postgres

import (
	"context"
	"time"

	"github.com/doctorauto/sophia/internal/domain/task"
)

func (s *Store) CreateTask(ctx context.Context, agentID string, req task.CreateRequest) (*task.Task, error) {
	input, err := jsonMap(req.Input)
	if err != nil {
		return nil, upstream(err, "marshal task input")
	}

	var (
		t         task.Task
		inputJSON []byte
	)
	err = s.pool.QueryRow(ctx,
		`INSERT INTO ia_tasks (agent_id, titulo, descricao, tipo, prioridade, input_json, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pendente')
		 RETURNING id, agent_id, titulo, descricao, tipo, prioridade, input_json, status, created_at`,
		agentID, req.Title, req.Description, req.Type, req.Priority, input,
	).Scan(&t.ID, &t.AgentID, &t.Title, &t.Description, &t.Type, &t.Priority, &inputJSON, &t.Status, &t.CreatedAt)
	if err != nil {
		if c := pgCode(err); c == pgInvalidText || c == pgForeignKey {
			return nil, notFoundWrap(err, "create task for agent %s", agentID)
		}
		return nil, upstream(err, "create task")
	}
	if t.Input, err = decodeMap(inputJSON, "task input"); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListRecentTasks(ctx context.Context, agentID string, limit int) ([]task.Summary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, titulo, status, tipo, created_at, completed_at
		 FROM ia_tasks WHERE agent_id = $1
		 ORDER BY created_at DESC LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, upstream(err, "list tasks for %s", agentID)
	}
	defer rows.Close()

	var out []task.Summary
	for rows.Next() {
		var t task.Summary
		if err := rows.Scan(&t.ID, &t.Title, &t.Status, &t.Type, &t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, upstream(err, "scan task")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream(err, "list tasks for %s", agentID)
	}
	return orEmpty(out), nil
}

func (s *Store) CountTasks(ctx context.Context, f task.CountFilter) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM ia_tasks
		 WHERE ($1 = '' OR status = $1)
		   AND ($2::timestamptz IS NULL OR completed_at >= $2)`,
		string(f.Status), nullTime(f.CompletedSince),
	).Scan(&n)
	if err != nil {
		return 0, upstream(err, "count tasks")
	}
	return n, nil
}

func (s *Store) FailStuckTasks(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ia_tasks
		 SET status = 'erro', completed_at = now(),
		     resultado_json = jsonb_build_object('error', 'timeout: task running for too long')
		 WHERE status = 'rodando' AND started_at < $1`, cutoff)
	if err != nil {
		return 0, upstream(err, "fail stuck tasks")
	}
	return int(tag.RowsAffected()), nil
}

// nullTime converts a zero time to nil for nullable parameters.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
