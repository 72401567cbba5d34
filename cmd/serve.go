package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/attendance-server/internal/config"
	"github.com/kozaktomas/attendance-server/internal/database/mysql"
	"github.com/kozaktomas/attendance-server/internal/database/postgres"
	"github.com/kozaktomas/attendance-server/internal/match"
	"github.com/kozaktomas/attendance-server/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance API server",
	Long: `Start the attendance REST API server.
The server exposes employee registration, face-embedding matching,
check-in/out recording, offline sync, reporting, and trial licensing.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("skip-migrations", false, "Do not run schema migrations on startup")
}

// openBackends connects the storage backend selected by the configured
// driver, runs migrations unless told otherwise, and returns the
// repository set plus a closer for the underlying pool.
func openBackends(ctx context.Context, cfg *config.Config, migrate bool) (web.Backends, io.Closer, error) {
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.URL == "" {
			return web.Backends{}, nil, errors.New("DATABASE_URL environment variable is required")
		}
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.NewPool(&cfg.Database)
		if err != nil {
			return web.Backends{}, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		if migrate {
			if err := pool.Migrate(ctx); err != nil {
				pool.Close()
				return web.Backends{}, nil, fmt.Errorf("running migrations: %w", err)
			}
		}
		return web.Backends{
			Employees: postgres.NewEmployeeRepository(pool),
			Ledger:    postgres.NewAttendanceRepository(pool),
			Trial:     postgres.NewTrialDeviceRepository(pool),
		}, pool, nil

	case "mysql":
		if cfg.Database.MySQLDSN == "" {
			return web.Backends{}, nil, errors.New("MYSQL_DSN environment variable is required")
		}
		fmt.Printf("Connecting to MySQL database...\n")
		pool, err := mysql.NewPool(cfg.Database.MySQLDSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return web.Backends{}, nil, fmt.Errorf("failed to initialize MySQL: %w", err)
		}
		if migrate {
			if err := pool.Migrate(ctx); err != nil {
				pool.Close()
				return web.Backends{}, nil, fmt.Errorf("running migrations: %w", err)
			}
		}
		return web.Backends{
			Employees: mysql.NewEmployeeRepository(pool),
			Ledger:    mysql.NewAttendanceRepository(pool),
			Trial:     mysql.NewTrialDeviceRepository(pool),
		}, pool, nil

	default:
		return web.Backends{}, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// initMatcher selects the configured similarity index. The HNSW index is
// warmed from the active embeddings before the server takes traffic.
func initMatcher(ctx context.Context, cfg *config.Config, backends web.Backends) (match.Matcher, match.Rebuilder, error) {
	switch cfg.Matcher.Index {
	case "hnsw":
		fmt.Printf("Building in-memory HNSW index for face matching...\n")
		m := match.NewHNSWMatcher(backends.Employees, cfg.Matcher.Dim)
		if err := m.Rebuild(ctx); err != nil {
			return nil, nil, fmt.Errorf("building HNSW index: %w", err)
		}
		fmt.Printf("Face HNSW index built with %d embeddings (in-memory only)\n", m.Count())
		return m, m, nil
	case "scan":
		return match.NewScanMatcher(backends.Employees, cfg.Matcher.Dim), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown matcher index %q", cfg.Matcher.Index)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backends, closer, err := openBackends(ctx, cfg, !mustGetBool(cmd, "skip-migrations"))
	if err != nil {
		return err
	}
	defer closer.Close()

	matcher, rebuilder, err := initMatcher(ctx, cfg, backends)
	if err != nil {
		return err
	}

	server := web.NewServer(cfg, backends, matcher, rebuilder)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Attendance API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	return server.Start()
}
