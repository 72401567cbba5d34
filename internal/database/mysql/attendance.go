package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/attendance-server/internal/database"
)

// AttendanceRepository provides MySQL-backed attendance event storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new MySQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = "id, employee_id, employee_code, check_type, `timestamp`, device_id, location, sync_status, mode, confidence, synced_at"

func scanEvent(row interface{ Scan(...any) error }) (*database.AttendanceEvent, error) {
	var ev database.AttendanceEvent
	var location sql.NullString
	var syncedAt sql.NullInt64

	err := row.Scan(
		&ev.ID,
		&ev.EmployeeID,
		&ev.EmployeeCode,
		&ev.CheckType,
		&ev.Timestamp,
		&ev.DeviceID,
		&location,
		&ev.SyncStatus,
		&ev.Mode,
		&ev.Confidence,
		&syncedAt,
	)
	if err != nil {
		return nil, err
	}
	ev.Location = location.String
	ev.SyncedAt = syncedAt.Int64
	return &ev, nil
}

// Get retrieves an event by ID, returns nil if not found.
func (r *AttendanceRepository) Get(ctx context.Context, id string) (*database.AttendanceEvent, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE id = ?`

	ev, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query attendance event: %w", err)
	}
	return ev, nil
}

// LatestSince returns the most recent event for (employeeID, check) with
// timestamp strictly greater than sinceMs, or nil.
func (r *AttendanceRepository) LatestSince(ctx context.Context, employeeID string, check database.CheckType, sinceMs int64) (*database.AttendanceEvent, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance
		WHERE employee_id = ? AND check_type = ? AND ` + "`timestamp`" + ` > ?
		ORDER BY ` + "`timestamp`" + ` DESC
		LIMIT 1
	`

	ev, err := scanEvent(r.pool.QueryRow(ctx, query, employeeID, check, sinceMs))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest attendance event: %w", err)
	}
	return ev, nil
}

// Insert appends a new event with the caller-supplied ID.
func (r *AttendanceRepository) Insert(ctx context.Context, event *database.AttendanceEvent) error {
	query := `
		INSERT INTO attendance (id, employee_id, employee_code, check_type, ` + "`timestamp`" + `, device_id, location, sync_status, mode, confidence, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?)
	`
	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.EmployeeID,
		event.EmployeeCode,
		event.CheckType,
		event.Timestamp,
		event.DeviceID,
		event.Location,
		event.SyncStatus,
		event.Mode,
		event.Confidence,
		event.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attendance event: %w", err)
	}
	return nil
}

// MarkSynced sets sync_status to SYNCED and backfills location when the
// client supplied one.
func (r *AttendanceRepository) MarkSynced(ctx context.Context, id string, location string, syncedAtMs int64) error {
	query := `
		UPDATE attendance
		SET sync_status = 'SYNCED',
		    location = COALESCE(NULLIF(?, ''), location),
		    synced_at = ?
		WHERE id = ?
	`
	if _, err := r.pool.Exec(ctx, query, location, syncedAtMs, id); err != nil {
		return fmt.Errorf("mark attendance event synced: %w", err)
	}
	return nil
}

// History returns events for an employee within [fromMs, toMs], newest first.
func (r *AttendanceRepository) History(ctx context.Context, employeeID string, fromMs, toMs int64) ([]database.AttendanceEvent, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance
		WHERE employee_id = ? AND ` + "`timestamp`" + ` BETWEEN ? AND ?
		ORDER BY ` + "`timestamp`" + ` DESC
	`

	rows, err := r.pool.Query(ctx, query, employeeID, fromMs, toMs)
	if err != nil {
		return nil, fmt.Errorf("query attendance history: %w", err)
	}
	defer rows.Close()

	var out []database.AttendanceEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance event: %w", err)
		}
		out = append(out, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance history: %w", err)
	}
	return out, nil
}

// EarliestTimestamp returns the earliest event timestamp for
// (employeeID, check) within [fromMs, toMs].
func (r *AttendanceRepository) EarliestTimestamp(ctx context.Context, employeeID string, check database.CheckType, fromMs, toMs int64) (int64, bool, error) {
	return r.boundTimestamp(ctx, "MIN", employeeID, check, fromMs, toMs)
}

// LatestTimestamp returns the latest event timestamp for
// (employeeID, check) within [fromMs, toMs].
func (r *AttendanceRepository) LatestTimestamp(ctx context.Context, employeeID string, check database.CheckType, fromMs, toMs int64) (int64, bool, error) {
	return r.boundTimestamp(ctx, "MAX", employeeID, check, fromMs, toMs)
}

func (r *AttendanceRepository) boundTimestamp(ctx context.Context, agg string, employeeID string, check database.CheckType, fromMs, toMs int64) (int64, bool, error) {
	query := `
		SELECT ` + agg + "(`timestamp`)" + `
		FROM attendance
		WHERE employee_id = ? AND check_type = ? AND ` + "`timestamp`" + ` BETWEEN ? AND ?
	`

	var ts sql.NullInt64
	if err := r.pool.QueryRow(ctx, query, employeeID, check, fromMs, toMs).Scan(&ts); err != nil {
		return 0, false, fmt.Errorf("query attendance bound: %w", err)
	}
	return ts.Int64, ts.Valid, nil
}

// DaysPresent counts distinct UTC days with at least one event for the
// employee within [fromMs, toMs].
func (r *AttendanceRepository) DaysPresent(ctx context.Context, employeeID string, fromMs, toMs int64) (int, error) {
	query := `
		SELECT COUNT(DISTINCT (` + "`timestamp`" + ` DIV 86400000))
		FROM attendance
		WHERE employee_id = ? AND ` + "`timestamp`" + ` BETWEEN ? AND ?
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, employeeID, fromMs, toMs).Scan(&count); err != nil {
		return 0, fmt.Errorf("count attendance days: %w", err)
	}
	return count, nil
}
