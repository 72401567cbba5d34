package database

import (
	"context"
)

// EmployeeDirectory provides read access to employee records.
type EmployeeDirectory interface {
	// Get retrieves an employee by ID regardless of active state, returns nil if not found
	Get(ctx context.Context, employeeID string) (*Employee, error)
	// GetByCode retrieves an active employee by employee code, returns nil if not found
	GetByCode(ctx context.Context, employeeCode string) (*Employee, error)
	// List returns active employees ordered by name.
	// A non-empty department filters case- and diacritic-insensitively.
	List(ctx context.Context, department string) ([]Employee, error)
	// ActiveEmbeddings returns all active employees that have a face enrollment.
	// This is the match corpus for the similarity matcher.
	ActiveEmbeddings(ctx context.Context) ([]Employee, error)
}

// EmployeeWriter provides write access to employee records.
type EmployeeWriter interface {
	EmployeeDirectory

	// Create inserts a new employee record.
	Create(ctx context.Context, emp *Employee) error
	// Update applies a partial update to an active employee.
	// Returns the updated record, or nil if the employee does not exist or is inactive.
	Update(ctx context.Context, employeeID string, upd EmployeeUpdate) (*Employee, error)
	// Deactivate soft-deletes an employee. Returns false if no active employee matched.
	Deactivate(ctx context.Context, employeeID string) (bool, error)
}

// AttendanceLedger is the append-only store of attendance events.
type AttendanceLedger interface {
	// Get retrieves an event by ID, returns nil if not found
	Get(ctx context.Context, id string) (*AttendanceEvent, error)
	// LatestSince returns the most recent event for (employeeID, checkType) with
	// timestamp strictly greater than sinceMs, or nil if there is none.
	LatestSince(ctx context.Context, employeeID string, check CheckType, sinceMs int64) (*AttendanceEvent, error)
	// Insert appends a new event. The caller supplies the ID.
	Insert(ctx context.Context, event *AttendanceEvent) error
	// MarkSynced sets sync_status to SYNCED and records the sync time.
	// A non-empty location replaces the stored one; immutable fields are untouched.
	MarkSynced(ctx context.Context, id string, location string, syncedAtMs int64) error
	// History returns events for an employee within [fromMs, toMs], newest first.
	History(ctx context.Context, employeeID string, fromMs, toMs int64) ([]AttendanceEvent, error)
	// EarliestTimestamp returns the earliest event timestamp for (employeeID, checkType)
	// within [fromMs, toMs]. The bool is false when no event matched.
	EarliestTimestamp(ctx context.Context, employeeID string, check CheckType, fromMs, toMs int64) (int64, bool, error)
	// LatestTimestamp is the mirror of EarliestTimestamp for the latest event.
	LatestTimestamp(ctx context.Context, employeeID string, check CheckType, fromMs, toMs int64) (int64, bool, error)
	// DaysPresent counts distinct UTC days with at least one event for the
	// employee within [fromMs, toMs].
	DaysPresent(ctx context.Context, employeeID string, fromMs, toMs int64) (int, error)
}

// TrialDeviceStore persists trial device registrations.
type TrialDeviceStore interface {
	// Get retrieves a device registration, returns nil if not found
	Get(ctx context.Context, deviceID, trialKey string) (*TrialDevice, error)
	// CountByKey returns the number of devices registered against a trial key.
	CountByKey(ctx context.Context, trialKey string) (int, error)
	// Upsert inserts the device or refreshes its metadata if already registered.
	// The original registration time is preserved on conflict.
	Upsert(ctx context.Context, dev *TrialDevice) error
}
