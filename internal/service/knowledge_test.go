package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/knowledge"
	"github.com/doctorauto/sophia/internal/port/database"
)

func TestKnowledgeIngestValidation(t *testing.T) {
	f := newFixture()
	tests := []knowledge.IngestRequest{
		{Content: "C"},
		{Title: "T"},
		{Title: " ", Content: " "},
	}
	for _, req := range tests {
		if _, err := f.knowledge.Ingest(context.Background(), req); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%+v: expected ErrValidation, got %v", req, err)
		}
	}
	if len(f.store.docs) != 0 {
		t.Error("invalid documents must not be stored")
	}
}

func TestKnowledgeRoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	doc, err := f.knowledge.Ingest(ctx, knowledge.IngestRequest{Title: "T", Content: "C"})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Category != knowledge.DefaultCategory || doc.Source != knowledge.DefaultSource {
		t.Errorf("defaults not applied: %+v", doc)
	}

	for _, q := range []string{"t", "c"} {
		got, err := f.knowledge.Query(ctx, knowledge.Query{Text: q})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != doc.ID {
			t.Errorf("query %q: expected ingested document, got %+v", q, got)
		}
	}
}

func TestKnowledgeQueryCacheInvalidatedByIngest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	got, err := f.knowledge.Query(ctx, knowledge.Query{Text: "garantia"})
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
	// second identical query is a cache hit
	if _, err := f.knowledge.Query(ctx, knowledge.Query{Text: "garantia"}); err != nil {
		t.Fatal(err)
	}
	if len(f.cache.data) != 1 {
		t.Fatalf("expected one cached query, got %d", len(f.cache.data))
	}

	if _, err := f.knowledge.Ingest(ctx, knowledge.IngestRequest{Title: "Garantia", Content: "90 dias"}); err != nil {
		t.Fatal(err)
	}
	got, err = f.knowledge.Query(ctx, knowledge.Query{Text: "garantia"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("expected new document after ingest, got %d", len(got))
	}
}

func TestKnowledgeQueryCacheFailureFallsBack(t *testing.T) {
	f := newFixture()
	f.cache.getErr = errors.New("cache down")
	if _, err := f.knowledge.Ingest(context.Background(), knowledge.IngestRequest{Title: "Oleo", Content: "troca a cada 10 mil km"}); err != nil {
		t.Fatal(err)
	}
	got, err := f.knowledge.Query(context.Background(), knowledge.Query{Text: "oleo"})
	if err != nil || len(got) != 1 {
		t.Fatalf("expected store result despite cache failure, got %v %v", got, err)
	}
}

func TestKnowledgeQueryValidation(t *testing.T) {
	f := newFixture()
	if _, err := f.knowledge.Query(context.Background(), knowledge.Query{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestKnowledgeIngestMarkdown(t *testing.T) {
	f := newFixture()
	content := "# Manual\n\n## Precos - Revisao\nRevisao completa a partir de R$ 450.\n\n## Curto\nok\n\n## Horario\nSegunda a sexta das 8h as 18h.\n"

	n, err := f.knowledge.IngestMarkdown(context.Background(), content, "manual", "arquivo")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 sections, got %d", n)
	}
	if f.store.docs[0].Subcategory != "Precos" || f.store.docs[0].Category != "manual" {
		t.Errorf("unexpected first document: %+v", f.store.docs[0])
	}
}

func TestKnowledgeSyncBusinessData(t *testing.T) {
	f := newFixture()
	f.store.business["empresas"] = []database.BusinessRecord{{"razao_social": "Doctor Auto LTDA"}}
	f.store.business["mecanicos"] = []database.BusinessRecord{{"nome": "Joao"}, {"nome": "Pedro"}}

	n, err := f.knowledge.SyncBusinessData(context.Background(), sophiaID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 documents, got %d", n)
	}

	titles := make([]string, 0, n)
	for _, d := range f.store.docs {
		titles = append(titles, d.Title)
	}
	joined := strings.Join(titles, "|")
	for _, want := range []string{"Empresa: Doctor Auto LTDA", "Mecanico: Joao", "Mecanico: Pedro"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing document %q in %v", want, titles)
		}
	}
	if f.store.docs[0].Source != "supabase:empresas" {
		t.Errorf("unexpected source %q", f.store.docs[0].Source)
	}

	logs := f.store.logMessages()
	if len(logs) != 1 || logs[0] != "Sync concluido: 3 documentos indexados" {
		t.Errorf("unexpected audit entries %v", logs)
	}

	// append-only: a second sync duplicates documents
	if _, err := f.knowledge.SyncBusinessData(context.Background(), sophiaID); err != nil {
		t.Fatal(err)
	}
	if len(f.store.docs) != 6 {
		t.Errorf("expected duplicates on repeated sync, got %d documents", len(f.store.docs))
	}
}

func TestKnowledgeSyncWithoutTables(t *testing.T) {
	f := newFixture()
	n, err := f.knowledge.SyncBusinessData(context.Background(), sophiaID)
	if err != nil || n != 0 {
		t.Fatalf("expected 0 and no error, got %d %v", n, err)
	}
	if len(f.store.logs) != 0 {
		t.Error("empty sync must not be audited")
	}
}
