package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorauto/sophia/internal/domain/agent"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Agents ---

const agentColumns = `id, nome, tipo, status, descricao, llm_provider, modelo, ultimo_ping, tarefas_ativas, config_json, created_at`

func (s *Store) ListActiveAgents(ctx context.Context) ([]agent.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM ia_agents WHERE status <> 'offline' ORDER BY tipo, nome`)
	if err != nil {
		return nil, upstream(err, "list active agents")
	}
	defer rows.Close()

	var agents []agent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, upstream(err, "scan agent")
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream(err, "list active agents")
	}
	return orEmpty(agents), nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	a, err := scanAgent(s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM ia_agents WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get agent %s", id)
	}
	return &a, nil
}

func (s *Store) GetAgentByName(ctx context.Context, name string) (*agent.Agent, error) {
	a, err := scanAgent(s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM ia_agents WHERE nome = $1`, name))
	if err != nil {
		return nil, notFoundWrap(err, "get agent by name %q", name)
	}
	return &a, nil
}

func (s *Store) TouchAgent(ctx context.Context, id string, status agent.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ia_agents SET status = $2, ultimo_ping = now() WHERE id = $1`, id, status)
	if err != nil {
		return notFoundWrap(err, "touch agent %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFoundWrap(pgx.ErrNoRows, "touch agent %s", id)
	}
	return nil
}

func (s *Store) MarkStaleAgentsOffline(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE ia_agents SET status = 'offline'
		 WHERE status = 'online' AND ultimo_ping < $1
		 RETURNING nome`, cutoff)
	if err != nil {
		return nil, upstream(err, "mark stale agents")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, upstream(err, "scan stale agent")
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func scanAgent(row scannable) (agent.Agent, error) {
	var (
		a          agent.Agent
		configJSON []byte
	)
	err := row.Scan(&a.ID, &a.Name, &a.Kind, &a.Status, &a.Description, &a.LLMProvider,
		&a.Model, &a.LastPing, &a.ActiveTasks, &configJSON, &a.CreatedAt)
	if err != nil {
		return a, err
	}
	a.Config, err = decodeMap(configJSON, "agent config")
	return a, err
}
