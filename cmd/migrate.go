package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/attendance-server/internal/config"
	"github.com/kozaktomas/attendance-server/internal/database/mysql"
	"github.com/kozaktomas/attendance-server/internal/database/postgres"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations",
	Long: `Apply pending schema migrations to the configured database and exit.
The serve command runs migrations automatically; this command exists for
deployments that migrate as a separate step.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.URL == "" {
			return errors.New("DATABASE_URL environment variable is required")
		}
		pool, err := postgres.NewPool(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		defer pool.Close()
		if err := pool.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	case "mysql":
		if cfg.Database.MySQLDSN == "" {
			return errors.New("MYSQL_DSN environment variable is required")
		}
		pool, err := mysql.NewPool(cfg.Database.MySQLDSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return fmt.Errorf("failed to initialize MySQL: %w", err)
		}
		defer pool.Close()
		if err := pool.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	fmt.Println("Migrations complete")
	return nil
}
