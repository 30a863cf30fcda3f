package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/doctorauto/sophia/internal/adapter/postgres"
	"github.com/doctorauto/sophia/internal/domain/knowledge"
	"github.com/doctorauto/sophia/internal/service"
)

func newIngestCmd() *cobra.Command {
	var category, source string

	cmd := &cobra.Command{
		Use:   "ingest <file.md>",
		Short: "Ingest a markdown file into the knowledge base, one document per section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0]) //nolint:gosec // G304: path comes from the operator
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if source == "" {
				source = "markdown:" + filepath.Base(args[0])
			}

			cfg, flush, err := bootstrap()
			if err != nil {
				return err
			}
			defer flush()

			pool, err := postgres.NewPool(cmd.Context(), cfg.Postgres)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer pool.Close()

			store := postgres.NewStore(pool)
			kb := service.NewKnowledgeService(store, nil, 0, service.NewActivityLog(store))
			n, err := kb.IngestMarkdown(cmd.Context(), string(content), category, source)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if viper.GetBool("json") {
				return json.NewEncoder(out).Encode(map[string]any{"file": args[0], "ingested": n})
			}
			fmt.Fprintf(out, "%d documentos ingeridos de %s\n", n, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", knowledge.DefaultCategory, "category stored on every document")
	cmd.Flags().StringVar(&source, "source", "", "source label (default markdown:<file name>)")
	return cmd
}
