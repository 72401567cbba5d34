package attendance

import (
	"context"
	"log"
	"time"

	"github.com/kozaktomas/attendance-server/internal/database"
)

// Reconciler merges batches of offline-generated attendance records into
// the ledger. It holds no state of its own; each record is a single
// idempotent upsert keyed by the client-generated ID.
type Reconciler struct {
	directory database.EmployeeDirectory
	ledger    database.AttendanceLedger
	now       func() int64
}

// NewReconciler creates a sync reconciler.
func NewReconciler(directory database.EmployeeDirectory, ledger database.AttendanceLedger) *Reconciler {
	return &Reconciler{
		directory: directory,
		ledger:    ledger,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// Sync processes each record independently; a bad record is rejected and
// the batch continues. Re-submitted records (ID already in the ledger)
// only refresh sync status and location, never the immutable fields, so
// clients can retry a whole batch safely.
//
// Unlike the live record path, no duplicate-window suppression happens
// here: offline records are merged verbatim. The 5-minute guard applies
// only to live submissions.
func (r *Reconciler) Sync(ctx context.Context, records []ClientRecord) (*SyncOutcome, error) {
	outcome := &SyncOutcome{
		Accepted: []string{},
		Rejected: []RejectedRecord{},
	}

	for i := range records {
		rec := &records[i]
		if reason := r.syncOne(ctx, rec); reason != "" {
			outcome.Rejected = append(outcome.Rejected, RejectedRecord{ID: rec.ID, Reason: reason})
		} else {
			outcome.Accepted = append(outcome.Accepted, rec.ID)
		}
	}

	return outcome, nil
}

// syncOne merges a single record, returning a rejection reason or "".
func (r *Reconciler) syncOne(ctx context.Context, rec *ClientRecord) string {
	if rec.ID == "" {
		return "missing record id"
	}

	existing, err := r.ledger.Get(ctx, rec.ID)
	if err != nil {
		log.Printf("sync: looking up record %s: %v", rec.ID, err)
		return "storage failure"
	}

	if existing != nil {
		// Re-sync of a known record: backfill mutable fields only.
		if err := r.ledger.MarkSynced(ctx, rec.ID, rec.Location, r.now()); err != nil {
			log.Printf("sync: marking record %s synced: %v", rec.ID, err)
			return "storage failure"
		}
		return ""
	}

	if !database.ValidCheckType(rec.CheckType) {
		return "check type must be IN or OUT"
	}
	if rec.Timestamp <= 0 {
		return "timestamp must be positive milliseconds"
	}

	emp, err := r.directory.Get(ctx, rec.EmployeeID)
	if err != nil {
		log.Printf("sync: resolving employee %s: %v", rec.EmployeeID, err)
		return "storage failure"
	}
	if emp == nil {
		return "employee not found"
	}

	event := &database.AttendanceEvent{
		ID:           rec.ID,
		EmployeeID:   emp.EmployeeID,
		EmployeeCode: emp.EmployeeCode,
		CheckType:    rec.CheckType,
		Timestamp:    int64(rec.Timestamp),
		DeviceID:     rec.DeviceID,
		Location:     rec.Location,
		SyncStatus:   database.SyncSynced,
		Mode:         database.ModeOffline,
		Confidence:   1.0,
		SyncedAt:     r.now(),
	}
	if err := r.ledger.Insert(ctx, event); err != nil {
		log.Printf("sync: inserting record %s: %v", rec.ID, err)
		return "storage failure"
	}
	return ""
}
