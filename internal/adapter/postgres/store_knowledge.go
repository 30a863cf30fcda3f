package postgres

import (
	"context"
	"strings"

	"github.com/doctorauto/sophia/internal/domain/knowledge"
)

func (s *Store) CreateDocument(ctx context.Context, req knowledge.IngestRequest) (*knowledge.Document, error) {
	var d knowledge.Document
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ia_knowledge_base (categoria, subcategoria, titulo, conteudo, fonte)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, categoria, subcategoria, titulo, conteudo, fonte, created_at`,
		req.Category, req.Subcategory, req.Title, req.Content, req.Source,
	).Scan(&d.ID, &d.Category, &d.Subcategory, &d.Title, &d.Content, &d.Source, &d.CreatedAt)
	if err != nil {
		return nil, upstream(err, "create document")
	}
	return &d, nil
}

// likeEscaper neutralizes LIKE wildcards in user text.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) SearchDocuments(ctx context.Context, text string, limit int) ([]knowledge.Document, error) {
	pattern := "%" + likeEscaper.Replace(strings.TrimSpace(text)) + "%"
	rows, err := s.pool.Query(ctx,
		`SELECT id, categoria, subcategoria, titulo, conteudo, fonte, created_at
		 FROM ia_knowledge_base
		 WHERE titulo ILIKE $1 OR conteudo ILIKE $1 OR categoria ILIKE $1
		 ORDER BY (titulo ILIKE $1) DESC, created_at DESC
		 LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, upstream(err, "search documents")
	}
	defer rows.Close()

	var out []knowledge.Document
	for rows.Next() {
		var d knowledge.Document
		if err := rows.Scan(&d.ID, &d.Category, &d.Subcategory, &d.Title, &d.Content, &d.Source, &d.CreatedAt); err != nil {
			return nil, upstream(err, "scan document")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream(err, "search documents")
	}
	return orEmpty(out), nil
}
