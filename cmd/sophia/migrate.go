package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/doctorauto/sophia/internal/adapter/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, flush, err := bootstrap()
				if err != nil {
					return err
				}
				defer flush()
				if err := postgres.RunMigrations(cmd.Context(), cfg.Postgres.DSN); err != nil {
					return err
				}
				return printVersion(cmd, cfg.Postgres.DSN)
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back the last migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}
				cfg, flush, err := bootstrap()
				if err != nil {
					return err
				}
				defer flush()
				if err := postgres.RollbackMigrations(cmd.Context(), cfg.Postgres.DSN, steps); err != nil {
					return err
				}
				return printVersion(cmd, cfg.Postgres.DSN)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, flush, err := bootstrap()
				if err != nil {
					return err
				}
				defer flush()
				return printVersion(cmd, cfg.Postgres.DSN)
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, dsn string) error {
	v, err := postgres.MigrationVersion(cmd.Context(), dsn)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", v)
	return nil
}
