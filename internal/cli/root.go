// Package cli implements the cryo-server commands.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/CryoRestore/server/internal/infra/storage"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/config"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
)

var (
	dbPath      string
	postgresDSN string
	gameID      string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "cryo-server",
	Short: "Authoritative server for cryonic restoration chambers",
	Long:  "Runs restoration chambers that slowly reverse the biological age of their occupants. SQLite-backed by default, PostgreSQL when a DSN is given.",

	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "SQLite database path (default: $CRYO_DB or cryo.db)")
	RootCmd.PersistentFlags().StringVar(&postgresDSN, "postgres-dsn", "", "PostgreSQL DSN, overrides --db (default: $CRYO_POSTGRES_DSN)")
	RootCmd.PersistentFlags().StringVarP(&gameID, "game-id", "g", "", "Game the state belongs to (default: GAME_1)")
}

// serverConfig merges flags and environment into the defaults.
func serverConfig() *config.ServerConfig {
	cfg := config.DefaultConfig()
	if env := os.Getenv("CRYO_DB"); env != "" {
		cfg.DBPath = env
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	cfg.PostgresDSN = os.Getenv("CRYO_POSTGRES_DSN")
	if postgresDSN != "" {
		cfg.PostgresDSN = postgresDSN
	}
	if gameID != "" {
		cfg.GameID = gameID
	}
	return cfg
}

func openStore(ctx context.Context, cfg *config.ServerConfig, log *logger.Logger) (storage.Store, error) {
	if cfg.PostgresDSN != "" {
		log.Info("Connecting to PostgreSQL...")
		return storage.OpenPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxOpenConns)
	}
	log.Info("Initializing SQLite database '" + cfg.DBPath + "'...")
	return storage.OpenSQLite(cfg.DBPath)
}
