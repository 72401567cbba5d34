package database

// CheckType distinguishes check-in from check-out events.
type CheckType string

const (
	CheckIn  CheckType = "IN"
	CheckOut CheckType = "OUT"
)

// ValidCheckType reports whether ct is one of the known check types.
func ValidCheckType(ct CheckType) bool {
	return ct == CheckIn || ct == CheckOut
}

// SyncStatus tracks whether an event has reached the authoritative server ledger.
type SyncStatus string

const (
	SyncLocal  SyncStatus = "LOCAL"
	SyncSynced SyncStatus = "SYNCED"
)

// Mode records whether an event originated from a live request or an offline queue.
type Mode string

const (
	ModeOnline  Mode = "ONLINE"
	ModeOffline Mode = "OFFLINE"
)

// Employee represents a registered employee.
// Embedding is nil for employees without a face enrollment.
// Employees are never hard-deleted; deactivation flips IsActive.
type Employee struct {
	EmployeeID   string
	EmployeeCode string
	Name         string
	Department   string
	FaceID       string
	Embedding    []float32
	IsActive     bool
	RegisteredAt int64 // milliseconds since epoch
	UpdatedAt    int64 // milliseconds since epoch, 0 if never updated
}

// EmployeeUpdate describes a partial employee update.
// Nil pointer fields are left untouched; a nil Embedding keeps the stored one.
type EmployeeUpdate struct {
	Name       *string
	Department *string
	FaceID     *string
	Embedding  []float32
}

// AttendanceEvent is a single check-in or check-out record.
// Timestamp is always integer milliseconds since the Unix epoch. The ledger
// stores BIGINT millis end to end; calendar timestamps never enter storage.
type AttendanceEvent struct {
	ID           string
	EmployeeID   string
	EmployeeCode string
	CheckType    CheckType
	Timestamp    int64 // milliseconds since epoch
	DeviceID     string
	Location     string
	SyncStatus   SyncStatus
	Mode         Mode
	Confidence   float64
	SyncedAt     int64 // milliseconds since epoch, 0 if never synced
}

// TrialDevice is a device registered against a trial key.
type TrialDevice struct {
	DeviceID       string
	TrialKey       string
	DeviceModel    string
	AndroidVersion string
	AppVersion     string
	RegisteredAt   int64 // milliseconds since epoch
}
