package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
	"github.com/dropDatabas3/tenantauth/internal/store/pg"
)

func newMigrateCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica o revierte las migraciones de postgres",
	}
	for _, dir := range []string{"up", "down"} {
		cmd.AddCommand(&cobra.Command{
			Use:   dir,
			Short: "migrate " + dir,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(g)
				if err != nil {
					return err
				}
				if cfg.Storage.Driver != "postgres" {
					return fmt.Errorf("migrate: storage.driver=%q no tiene migraciones", cfg.Storage.Driver)
				}
				if err := pg.Migrate(cfg.Storage.DSN, dir); err != nil {
					return err
				}
				logger.L().Info("migrations applied", logger.String("direction", dir))
				return nil
			},
		})
	}
	return cmd
}
