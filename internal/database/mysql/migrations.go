package mysql

import (
	"context"
	"fmt"
)

// MySQL DDL is not transactional, so the schema is expressed as individually
// idempotent statements instead of versioned migration files.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		employee_id   VARCHAR(64) PRIMARY KEY,
		employee_code VARCHAR(64) NOT NULL,
		name          VARCHAR(255) NOT NULL,
		department    VARCHAR(255) NOT NULL,
		face_id       VARCHAR(64),
		embedding     MEDIUMTEXT,
		is_active     TINYINT(1) NOT NULL DEFAULT 1,
		registered_at BIGINT NOT NULL,
		updated_at    BIGINT,
		KEY idx_employees_code (employee_code),
		KEY idx_employees_department (department)
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id            VARCHAR(64) PRIMARY KEY,
		employee_id   VARCHAR(64) NOT NULL,
		employee_code VARCHAR(64) NOT NULL,
		check_type    VARCHAR(8) NOT NULL,
		timestamp     BIGINT NOT NULL,
		device_id     VARCHAR(128) NOT NULL DEFAULT '',
		location      TEXT,
		sync_status   VARCHAR(16) NOT NULL DEFAULT 'SYNCED',
		mode          VARCHAR(16) NOT NULL DEFAULT 'ONLINE',
		confidence    DOUBLE NOT NULL DEFAULT 1.0,
		synced_at     BIGINT,
		KEY idx_attendance_employee_check_ts (employee_id, check_type, timestamp),
		KEY idx_attendance_timestamp (timestamp)
	)`,
	`CREATE TABLE IF NOT EXISTS trial_devices (
		device_id       VARCHAR(128) NOT NULL,
		trial_key       VARCHAR(128) NOT NULL,
		device_model    VARCHAR(255),
		android_version VARCHAR(64),
		app_version     VARCHAR(64),
		registered_at   BIGINT NOT NULL,
		PRIMARY KEY (device_id, trial_key),
		KEY idx_trial_devices_key (trial_key)
	)`,
}

// Migrate creates the schema if it does not exist yet.
func (p *Pool) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement: %w", err)
		}
	}
	return nil
}
