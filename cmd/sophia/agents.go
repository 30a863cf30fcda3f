package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/doctorauto/sophia/internal/adapter/memqueue"
	"github.com/doctorauto/sophia/internal/adapter/postgres"
	"github.com/doctorauto/sophia/internal/adapter/redis"
	"github.com/doctorauto/sophia/internal/domain/agent"
	"github.com/doctorauto/sophia/internal/port/workqueue"
	"github.com/doctorauto/sophia/internal/service"
)

func newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List active agents with their queue lengths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, flush, err := bootstrap()
			if err != nil {
				return err
			}
			defer flush()
			ctx := cmd.Context()

			pool, err := postgres.NewPool(ctx, cfg.Postgres)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer pool.Close()

			var queue workqueue.Queue = memqueue.New()
			if cfg.Queue.Backend == "redis" {
				rdb, err := redis.Connect(ctx, cfg.Redis.URL)
				if err != nil {
					return fmt.Errorf("redis: %w", err)
				}
				defer func() { _ = rdb.Close() }()
				queue = redis.NewQueue(rdb)
			}

			agents, err := service.NewAgentService(postgres.NewStore(pool), queue).ListActive(ctx)
			if err != nil {
				return err
			}

			if viper.GetBool("json") {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(agents)
			}
			renderAgents(cmd, agents)
			return nil
		},
	}
}

func renderAgents(cmd *cobra.Command, agents []agent.WithQueue) {
	if len(agents) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nenhum agente ativo")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.AppendHeader(table.Row{"ID", "Nome", "Tipo", "Status", "Fila", "Ultimo ping"})
	for _, a := range agents {
		ping := "-"
		if a.LastPing != nil {
			ping = a.LastPing.Local().Format(time.DateTime)
		}
		tw.AppendRow(table.Row{a.ID, a.Name, a.Kind, a.Status, a.QueueLength, ping})
	}
	tw.Render()
}
