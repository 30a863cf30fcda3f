package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/activity"
	"github.com/doctorauto/sophia/internal/domain/knowledge"
	"github.com/doctorauto/sophia/internal/port/cache"
	"github.com/doctorauto/sophia/internal/port/database"
)

// syncRecordLimit caps the rows read per business table in one sync.
const syncRecordLimit = 500

// syncSource maps one business table to knowledge documents.
type syncSource struct {
	table       string
	category    string
	titlePrefix string
	titleKeys   []string
}

var syncSources = []syncSource{
	{table: "empresas", category: "empresa", titlePrefix: "Empresa", titleKeys: []string{"nome", "razao_social"}},
	{table: "colaboradores", category: "equipe", titlePrefix: "Colaborador", titleKeys: []string{"nome"}},
	{table: "mecanicos", category: "equipe", titlePrefix: "Mecanico", titleKeys: []string{"nome"}},
	{table: "recursos", category: "operacional", titlePrefix: "Recurso", titleKeys: []string{"nome", "tipo"}},
	{table: "catalogo_servicos", category: "servicos", titlePrefix: "Servico", titleKeys: []string{"nome"}},
}

// KnowledgeService ingests and queries the knowledge base. Query results
// are cached; every ingest bumps a generation that is part of the cache
// key, so a new document is visible to the next query on this instance.
type KnowledgeService struct {
	store      database.Store
	cache      cache.Cache
	queryTTL   time.Duration
	audit      *ActivityLog
	generation atomic.Uint64
}

// NewKnowledgeService creates a KnowledgeService. c may be nil to disable
// query caching.
func NewKnowledgeService(store database.Store, c cache.Cache, queryTTL time.Duration, audit *ActivityLog) *KnowledgeService {
	return &KnowledgeService{store: store, cache: c, queryTTL: queryTTL, audit: audit}
}

// Ingest validates and stores one document.
func (s *KnowledgeService) Ingest(ctx context.Context, req knowledge.IngestRequest) (*knowledge.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	doc, err := s.store.CreateDocument(ctx, req)
	if err != nil {
		return nil, err
	}
	s.generation.Add(1)
	return doc, nil
}

// Query returns up to q.Limit documents matching q.Text.
func (s *KnowledgeService) Query(ctx context.Context, q knowledge.Query) ([]knowledge.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := s.queryKey(q)
	if s.cache != nil {
		var cached []knowledge.Document
		found, err := cache.GetJSON(ctx, s.cache, key, &cached)
		if err != nil {
			slog.WarnContext(ctx, "knowledge cache read", "error", err)
		}
		if found {
			return cached, nil
		}
	}

	docs, err := s.store.SearchDocuments(ctx, q.Text, q.Limit)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []knowledge.Document{}
	}
	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, docs, s.queryTTL); err != nil {
			slog.WarnContext(ctx, "knowledge cache write", "error", err)
		}
	}
	return docs, nil
}

func (s *KnowledgeService) queryKey(q knowledge.Query) string {
	h := xxhash.New()
	_, _ = h.WriteString(q.Text)
	_, _ = h.WriteString("|" + strconv.Itoa(q.Limit))
	_, _ = h.WriteString("|" + strconv.FormatUint(s.generation.Load(), 10))
	return "knowledge:q:" + strconv.FormatUint(h.Sum64(), 16)
}

// IngestMarkdown stores one document per "## " section of content and
// returns how many were stored. It stops at the first failure.
func (s *KnowledgeService) IngestMarkdown(ctx context.Context, content, category, source string) (int, error) {
	n := 0
	for _, req := range knowledge.SplitMarkdown(content, category, source) {
		if _, err := s.Ingest(ctx, req); err != nil {
			return n, fmt.Errorf("ingest section %q: %w", req.Title, err)
		}
		n++
	}
	return n, nil
}

// SyncBusinessData indexes a snapshot of the workshop tables as documents
// and returns how many were created. It appends on every call; a table
// that is missing or fails is logged and skipped.
func (s *KnowledgeService) SyncBusinessData(ctx context.Context, coordinatorID string) (int, error) {
	total := 0
	for _, src := range syncSources {
		records, err := s.store.ListBusinessRecords(ctx, src.table, syncRecordLimit)
		if errors.Is(err, domain.ErrNotFound) {
			slog.DebugContext(ctx, "sync source missing", "table", src.table)
			continue
		}
		if err != nil {
			slog.WarnContext(ctx, "sync source failed", "table", src.table, "error", err)
			continue
		}

		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			if _, err := s.Ingest(ctx, src.document(rec)); err != nil {
				slog.WarnContext(ctx, "sync record failed", "table", src.table, "error", err)
				continue
			}
			total++
		}
	}

	if total > 0 {
		s.audit.Record(ctx, coordinatorID, activity.LevelInfo,
			fmt.Sprintf("Sync concluido: %d documentos indexados", total), nil)
	}
	return total, nil
}

func (src syncSource) document(rec database.BusinessRecord) knowledge.IngestRequest {
	name := "N/A"
	for _, k := range src.titleKeys {
		if v, ok := rec[k]; ok && v != nil && fmt.Sprint(v) != "" {
			name = fmt.Sprint(v)
			break
		}
	}
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		body = []byte(fmt.Sprint(map[string]any(rec)))
	}
	return knowledge.IngestRequest{
		Category: src.category,
		Title:    src.titlePrefix + ": " + name,
		Content:  string(body),
		Source:   "supabase:" + src.table,
	}
}
