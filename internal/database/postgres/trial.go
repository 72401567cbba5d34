package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/attendance-server/internal/database"
)

// TrialDeviceRepository provides PostgreSQL-backed trial device storage.
type TrialDeviceRepository struct {
	pool *Pool
}

// NewTrialDeviceRepository creates a new PostgreSQL trial device repository.
func NewTrialDeviceRepository(pool *Pool) *TrialDeviceRepository {
	return &TrialDeviceRepository{pool: pool}
}

// Get retrieves a device registration, returns nil if not found.
func (r *TrialDeviceRepository) Get(ctx context.Context, deviceID, trialKey string) (*database.TrialDevice, error) {
	query := `
		SELECT device_id, trial_key, device_model, android_version, app_version, registered_at
		FROM trial_devices
		WHERE device_id = $1 AND trial_key = $2
	`

	var dev database.TrialDevice
	var model, android, app sql.NullString
	err := r.pool.QueryRow(ctx, query, deviceID, trialKey).Scan(
		&dev.DeviceID,
		&dev.TrialKey,
		&model,
		&android,
		&app,
		&dev.RegisteredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query trial device: %w", err)
	}
	dev.DeviceModel = model.String
	dev.AndroidVersion = android.String
	dev.AppVersion = app.String
	return &dev, nil
}

// CountByKey returns the number of devices registered against a trial key.
func (r *TrialDeviceRepository) CountByKey(ctx context.Context, trialKey string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM trial_devices WHERE trial_key = $1", trialKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count trial devices: %w", err)
	}
	return count, nil
}

// Upsert inserts the device or refreshes its metadata. The original
// registration time is preserved on conflict so the expiry clock never resets.
func (r *TrialDeviceRepository) Upsert(ctx context.Context, dev *database.TrialDevice) error {
	query := `
		INSERT INTO trial_devices (device_id, trial_key, device_model, android_version, app_version, registered_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6)
		ON CONFLICT (device_id, trial_key) DO UPDATE
		SET device_model = COALESCE(NULLIF(EXCLUDED.device_model, ''), trial_devices.device_model),
		    android_version = COALESCE(NULLIF(EXCLUDED.android_version, ''), trial_devices.android_version),
		    app_version = COALESCE(NULLIF(EXCLUDED.app_version, ''), trial_devices.app_version)
	`
	_, err := r.pool.Exec(ctx, query,
		dev.DeviceID,
		dev.TrialKey,
		dev.DeviceModel,
		dev.AndroidVersion,
		dev.AppVersion,
		dev.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("upsert trial device: %w", err)
	}
	return nil
}
