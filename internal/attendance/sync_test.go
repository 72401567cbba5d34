package attendance

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/attendance-server/internal/database"
	"github.com/kozaktomas/attendance-server/internal/database/mock"
)

func newTestReconciler(t *testing.T) (*Reconciler, *mock.MockDirectory, *mock.MockLedger) {
	t.Helper()
	dir := mock.NewMockDirectory()
	ledger := mock.NewMockLedger()
	rec := NewReconciler(dir, ledger)
	rec.now = func() int64 { return testNowMs }
	return rec, dir, ledger
}

func clientRecord(id string) ClientRecord {
	return ClientRecord{
		ID:         id,
		EmployeeID: "emp-1",
		CheckType:  database.CheckIn,
		Timestamp:  Millis(testNowMs - 3600*1000),
		DeviceID:   "tablet-7",
		Location:   "Warehouse",
	}
}

func TestSync_AllAccepted(t *testing.T) {
	rec, dir, ledger := newTestReconciler(t)
	dir.AddEmployee(activeEmployee())

	outcome, err := rec.Sync(context.Background(), []ClientRecord{
		clientRecord("rec-1"), clientRecord("rec-2"), clientRecord("rec-3"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Accepted) != 3 || len(outcome.Rejected) != 0 {
		t.Fatalf("expected 3 accepted / 0 rejected, got %d / %d", len(outcome.Accepted), len(outcome.Rejected))
	}
	if ledger.Count() != 3 {
		t.Errorf("expected 3 stored events, got %d", ledger.Count())
	}

	ev, err := ledger.Get(context.Background(), "rec-1")
	if err != nil || ev == nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if ev.Mode != database.ModeOffline {
		t.Errorf("synced records must be OFFLINE, got %s", ev.Mode)
	}
	if ev.SyncStatus != database.SyncSynced {
		t.Errorf("synced records must be SYNCED, got %s", ev.SyncStatus)
	}
}

func TestSync_PartialFailure(t *testing.T) {
	rec, dir, _ := newTestReconciler(t)
	dir.AddEmployee(activeEmployee())

	bad := clientRecord("rec-2")
	bad.EmployeeID = "ghost"

	outcome, err := rec.Sync(context.Background(), []ClientRecord{
		clientRecord("rec-1"), bad, clientRecord("rec-3"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Accepted) != 2 {
		t.Errorf("expected 2 accepted, got %d", len(outcome.Accepted))
	}
	if len(outcome.Rejected) != 1 {
		t.Fatalf("expected 1 rejected, got %d", len(outcome.Rejected))
	}
	if outcome.Rejected[0].ID != "rec-2" {
		t.Errorf("expected rec-2 rejected, got %s", outcome.Rejected[0].ID)
	}
	if outcome.Rejected[0].Reason != "employee not found" {
		t.Errorf("unexpected rejection reason %q", outcome.Rejected[0].Reason)
	}
}

func TestSync_Idempotent(t *testing.T) {
	rec, dir, ledger := newTestReconciler(t)
	dir.AddEmployee(activeEmployee())

	batch := []ClientRecord{clientRecord("rec-1"), clientRecord("rec-2")}
	if _, err := rec.Sync(context.Background(), batch); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	// Retrying the identical batch accepts everything again without
	// creating duplicates.
	outcome, err := rec.Sync(context.Background(), batch)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if len(outcome.Accepted) != 2 || len(outcome.Rejected) != 0 {
		t.Errorf("retry must accept all records, got %d / %d", len(outcome.Accepted), len(outcome.Rejected))
	}
	if ledger.Count() != 2 {
		t.Errorf("retry must not duplicate events, got %d", ledger.Count())
	}
}

func TestSync_ResyncKeepsImmutableFields(t *testing.T) {
	rec, dir, ledger := newTestReconciler(t)
	dir.AddEmployee(activeEmployee())

	original := clientRecord("rec-1")
	if _, err := rec.Sync(context.Background(), []ClientRecord{original}); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	// Retry with a drifted timestamp and a new location. Only the
	// location may change.
	drifted := original
	drifted.Timestamp = Millis(testNowMs)
	drifted.Location = "Loading dock"
	if _, err := rec.Sync(context.Background(), []ClientRecord{drifted}); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	ev, err := ledger.Get(context.Background(), "rec-1")
	if err != nil || ev == nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if ev.Timestamp != int64(original.Timestamp) {
		t.Errorf("timestamp must stay %d, got %d", int64(original.Timestamp), ev.Timestamp)
	}
	if ev.Location != "Loading dock" {
		t.Errorf("location should refresh on re-sync, got %q", ev.Location)
	}
}

func TestSync_NoDuplicateWindow(t *testing.T) {
	rec, dir, ledger := newTestReconciler(t)
	dir.AddEmployee(activeEmployee())

	// Two check-ins 60 seconds apart with distinct IDs. The live path
	// would suppress the second; sync merges both.
	first := clientRecord("rec-1")
	second := clientRecord("rec-2")
	second.Timestamp = first.Timestamp + Millis(60*1000)

	outcome, err := rec.Sync(context.Background(), []ClientRecord{first, second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Accepted) != 2 {
		t.Errorf("sync must not apply the duplicate window, got %d accepted", len(outcome.Accepted))
	}
	if ledger.Count() != 2 {
		t.Errorf("expected 2 stored events, got %d", ledger.Count())
	}
}

func TestSync_InactiveEmployeeAccepted(t *testing.T) {
	rec, dir, _ := newTestReconciler(t)
	emp := activeEmployee()
	emp.IsActive = false
	dir.AddEmployee(emp)

	// The employee existed when the offline record was captured;
	// deactivation since then must not lose the record.
	outcome, err := rec.Sync(context.Background(), []ClientRecord{clientRecord("rec-1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Accepted) != 1 {
		t.Errorf("records for deactivated employees must still merge, got %d accepted", len(outcome.Accepted))
	}
}

func TestSync_Rejections(t *testing.T) {
	rec, dir, _ := newTestReconciler(t)
	dir.AddEmployee(activeEmployee())

	noID := clientRecord("")
	badCheck := clientRecord("rec-bad-check")
	badCheck.CheckType = "MAYBE"
	badTS := clientRecord("rec-bad-ts")
	badTS.Timestamp = 0

	outcome, err := rec.Sync(context.Background(), []ClientRecord{noID, badCheck, badTS})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Rejected) != 3 {
		t.Fatalf("expected 3 rejections, got %d", len(outcome.Rejected))
	}

	reasons := map[string]string{}
	for _, rej := range outcome.Rejected {
		reasons[rej.ID] = rej.Reason
	}
	if reasons[""] != "missing record id" {
		t.Errorf("unexpected reason for missing id: %q", reasons[""])
	}
	if reasons["rec-bad-check"] != "check type must be IN or OUT" {
		t.Errorf("unexpected reason for bad check type: %q", reasons["rec-bad-check"])
	}
	if reasons["rec-bad-ts"] != "timestamp must be positive milliseconds" {
		t.Errorf("unexpected reason for bad timestamp: %q", reasons["rec-bad-ts"])
	}
}

func TestSync_StorageFailure(t *testing.T) {
	rec, dir, ledger := newTestReconciler(t)
	dir.AddEmployee(activeEmployee())
	ledger.InsertError = errors.New("disk full")

	outcome, err := rec.Sync(context.Background(), []ClientRecord{clientRecord("rec-1")})
	if err != nil {
		t.Fatalf("batch must not fail wholesale: %v", err)
	}
	if len(outcome.Rejected) != 1 || outcome.Rejected[0].Reason != "storage failure" {
		t.Errorf("expected a storage failure rejection, got %+v", outcome.Rejected)
	}
}
