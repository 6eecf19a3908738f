// authd es el binario del servicio: servidor HTTP, migraciones y utilidades
// de claves.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantauth/internal/config"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
)

var version = "dev"

type globalFlags struct {
	configPath string
	envFile    string
}

func main() {
	var g globalFlags

	root := &cobra.Command{
		Use:           "authd",
		Short:         "Core de autenticación multi-tenant",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env es opcional; el entorno real siempre gana
			if g.envFile != "" {
				_ = godotenv.Load(g.envFile)
			}
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", os.Getenv("CONFIG_PATH"), "ruta a config.yaml (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "ruta a .env")

	root.AddCommand(
		newServeCmd(&g),
		newMigrateCmd(&g),
		newKeysCmd(),
		newVaultCmd(&g),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "authd:", err)
		os.Exit(1)
	}
}

// loadConfig carga la config e inicializa el logger global con ella.
func loadConfig(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "authd",
		Version:     cfg.App.Version,
	})
	return cfg, nil
}
