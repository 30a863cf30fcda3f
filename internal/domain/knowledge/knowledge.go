// Package knowledge defines knowledge base documents and ingestion rules.
package knowledge

import (
	"fmt"
	"strings"
	"time"

	"github.com/doctorauto/sophia/internal/domain"
)

const (
	DefaultCategory = "geral"
	DefaultSource   = "api"

	DefaultQueryLimit = 5
	MaxQueryLimit     = 50
)

// Document is an ingested unit of text. Re-ingestion creates a new record.
type Document struct {
	ID          string    `json:"id"`
	Category    string    `json:"categoria"`
	Subcategory string    `json:"subcategoria,omitempty"`
	Title       string    `json:"titulo"`
	Content     string    `json:"conteudo"`
	Source      string    `json:"fonte,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IngestRequest holds a document to be stored.
type IngestRequest struct {
	Category    string `json:"categoria,omitempty"`
	Subcategory string `json:"subcategoria,omitempty"`
	Title       string `json:"titulo"`
	Content     string `json:"conteudo"`
	Source      string `json:"fonte,omitempty"`
}

// Validate checks required fields and fills defaults.
func (r *IngestRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("%w: titulo and conteudo are required", domain.ErrValidation)
	}
	if r.Category == "" {
		r.Category = DefaultCategory
	}
	if r.Source == "" {
		r.Source = DefaultSource
	}
	return nil
}

// Query is a free-text lookup against the knowledge base.
type Query struct {
	Text  string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Validate checks the query text and clamps the limit.
func (q *Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: query is required", domain.ErrValidation)
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultQueryLimit
	case q.Limit > MaxQueryLimit:
		q.Limit = MaxQueryLimit
	}
	return nil
}

// minSectionLength is the shortest section body worth ingesting.
const minSectionLength = 10

// SplitMarkdown breaks a markdown file into one request per "## " section.
// The heading becomes the title and the text before " - " in the heading
// becomes the subcategory.
func SplitMarkdown(content, category, source string) []IngestRequest {
	var out []IngestRequest
	for _, section := range splitSections(content) {
		lines := strings.Split(section, "\n")
		title := strings.TrimSpace(strings.TrimLeft(lines[0], "# "))
		body := strings.TrimSpace(strings.Join(lines[1:], "\n"))
		if title == "" || len(body) < minSectionLength {
			continue
		}
		sub, _, _ := strings.Cut(title, " - ")
		out = append(out, IngestRequest{
			Category:    category,
			Subcategory: strings.TrimSpace(sub),
			Title:       title,
			Content:     body,
			Source:      source,
		})
	}
	return out
}

func splitSections(content string) []string {
	var (
		sections []string
		current  strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sections = append(sections, s)
		}
		current.Reset()
	}
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			line = strings.TrimPrefix(line, "## ")
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	flush()
	return sections
}
