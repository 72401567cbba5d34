package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/attendance-server/internal/config"
	"github.com/kozaktomas/attendance-server/internal/database/postgres"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var migrateTimestampsCmd = &cobra.Command{
	Use:   "migrate-timestamps",
	Short: "Convert the attendance timestamp column to epoch milliseconds",
	Long: `Convert a legacy TIMESTAMP attendance.timestamp column to a BIGINT
holding epoch milliseconds. Databases created by current migrations
already use BIGINT; this command upgrades installations that predate
that schema. PostgreSQL only.`,
	RunE: runMigrateTimestamps,
}

func init() {
	rootCmd.AddCommand(migrateTimestampsCmd)
}

func runMigrateTimestamps(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("migrate-timestamps supports the postgres driver only, got %q", cfg.Database.Driver)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()

	fmt.Println("Checking timestamp column type...")
	var dataType string
	err = pool.QueryRow(ctx, `
		SELECT data_type FROM information_schema.columns
		WHERE table_name = 'attendance' AND column_name = 'timestamp'
	`).Scan(&dataType)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.New("attendance table or timestamp column not found")
	}
	if err != nil {
		return fmt.Errorf("checking column type: %w", err)
	}

	if dataType == "bigint" {
		fmt.Println("Timestamp column is already BIGINT. No migration needed.")
		return nil
	}

	fmt.Printf("Timestamp column is %s. Starting migration...\n", dataType)

	tx, err := pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var recordCount int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance`).Scan(&recordCount); err != nil {
		return fmt.Errorf("counting attendance records: %w", err)
	}
	fmt.Printf("Found %d existing attendance records\n", recordCount)

	if recordCount > 0 {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE attendance ADD COLUMN timestamp_bigint BIGINT`); err != nil {
			return fmt.Errorf("adding conversion column: %w", err)
		}
		if err := convertRows(ctx, tx, recordCount); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `ALTER TABLE attendance DROP COLUMN "timestamp"`); err != nil {
			return fmt.Errorf("dropping old column: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `ALTER TABLE attendance RENAME COLUMN timestamp_bigint TO "timestamp"`); err != nil {
			return fmt.Errorf("renaming column: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE attendance DROP COLUMN "timestamp"`); err != nil {
			return fmt.Errorf("dropping old column: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `ALTER TABLE attendance ADD COLUMN "timestamp" BIGINT NOT NULL`); err != nil {
			return fmt.Errorf("adding new column: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_attendance_timestamp`); err != nil {
		return fmt.Errorf("dropping index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE INDEX idx_attendance_timestamp ON attendance("timestamp")`); err != nil {
		return fmt.Errorf("recreating index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}

	fmt.Println("Migration completed successfully")
	return nil
}

// convertRows fills timestamp_bigint record by record so progress stays
// visible on large tables.
func convertRows(ctx context.Context, tx *sql.Tx, total int) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM attendance ORDER BY id`)
	if err != nil {
		return fmt.Errorf("listing attendance ids: %w", err)
	}
	ids := make([]string, 0, total)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning attendance id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("reading attendance ids: %w", err)
	}

	bar := progressbar.NewOptions(len(ids),
		progressbar.OptionSetDescription("Converting timestamps"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	for _, id := range ids {
		_, err := tx.ExecContext(ctx, `
			UPDATE attendance
			SET timestamp_bigint = (EXTRACT(EPOCH FROM "timestamp"::timestamp) * 1000)::BIGINT
			WHERE id = $1 AND "timestamp" IS NOT NULL
		`, id)
		if err != nil {
			return fmt.Errorf("converting record %s: %w", id, err)
		}
		_ = bar.Add(1)
	}
	fmt.Println()
	return nil
}
