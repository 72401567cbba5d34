package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/attendance-server/internal/database"
	"github.com/kozaktomas/attendance-server/internal/match"
)

const (
	// VerifyThreshold is the fixed similarity threshold for face
	// verification on the record path.
	VerifyThreshold = 0.95

	// DuplicateWindowMs is the suppression window: a second event for the
	// same (employee, check type) within this window is rejected.
	DuplicateWindowMs = 5 * 60 * 1000
)

// Service handles the live attendance record path: optional face
// verification, employee resolution, duplicate suppression, and the
// ledger insert.
type Service struct {
	directory database.EmployeeDirectory
	ledger    database.AttendanceLedger
	matcher   match.Matcher
	now       func() int64 // current time in epoch milliseconds
}

// NewService creates an attendance service.
func NewService(directory database.EmployeeDirectory, ledger database.AttendanceLedger, matcher match.Matcher) *Service {
	return &Service{
		directory: directory,
		ledger:    ledger,
		matcher:   matcher,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// Record verifies and appends a single live attendance event.
//
// When an embedding is supplied the claimed identity is verified against
// the match corpus at VerifyThreshold; without one the caller-supplied
// employee ID is trusted (devices without biometric capture rely on this).
//
// The duplicate check and the insert are not atomic: two near-simultaneous
// requests for the same (employee, check type) can both pass the check.
// TODO: serialize inserts per (employee, check type) with an advisory lock
// once Postgres is the only backend.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*database.AttendanceEvent, error) {
	if err := validateRecordRequest(&req); err != nil {
		return nil, err
	}

	if len(req.Embedding) > 0 {
		if err := s.verifyFace(ctx, req.EmployeeID, req.Embedding); err != nil {
			return nil, err
		}
	}

	emp, err := s.directory.Get(ctx, req.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("resolving employee: %w", err)
	}
	if emp == nil || !emp.IsActive {
		return nil, ErrEmployeeNotFound
	}

	effectiveTS := req.Timestamp
	if effectiveTS <= 0 {
		effectiveTS = s.now()
	}

	// Best-effort lookup-before-insert duplicate guard.
	recent, err := s.ledger.LatestSince(ctx, req.EmployeeID, req.CheckType, effectiveTS-DuplicateWindowMs)
	if err != nil {
		return nil, fmt.Errorf("checking duplicate window: %w", err)
	}
	if recent != nil {
		return nil, ErrDuplicateSubmission
	}

	mode := req.Mode
	if mode == "" {
		mode = database.ModeOnline
	}

	event := &database.AttendanceEvent{
		ID:           uuid.NewString(),
		EmployeeID:   emp.EmployeeID,
		EmployeeCode: emp.EmployeeCode,
		CheckType:    req.CheckType,
		Timestamp:    effectiveTS,
		DeviceID:     req.DeviceID,
		Location:     req.Location,
		SyncStatus:   database.SyncSynced, // server-authoritative
		Mode:         mode,
		Confidence:   1.0,
		SyncedAt:     s.now(),
	}

	if err := s.ledger.Insert(ctx, event); err != nil {
		return nil, fmt.Errorf("inserting attendance event: %w", err)
	}
	return event, nil
}

// verifyFace matches the embedding against the corpus and checks the
// result against the claimed identity.
func (s *Service) verifyFace(ctx context.Context, claimedID string, embedding []float32) error {
	result, err := s.matcher.Match(ctx, embedding, VerifyThreshold)
	if err != nil {
		if errors.Is(err, match.ErrInvalidEmbedding) {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return fmt.Errorf("matching embedding: %w", err)
	}
	if result == nil {
		return ErrFaceVerificationFailed
	}
	if result.EmployeeID != claimedID {
		return &FaceMismatchError{
			ClaimedEmployeeID:  claimedID,
			DetectedEmployeeID: result.EmployeeID,
			DetectedName:       result.Name,
		}
	}
	return nil
}

func validateRecordRequest(req *RecordRequest) error {
	if req.EmployeeID == "" {
		return fmt.Errorf("%w: employeeId is required", ErrInvalidInput)
	}
	if req.DeviceID == "" {
		return fmt.Errorf("%w: deviceId is required", ErrInvalidInput)
	}
	if !database.ValidCheckType(req.CheckType) {
		return fmt.Errorf("%w: check type must be IN or OUT", ErrInvalidInput)
	}
	if req.Mode != "" && req.Mode != database.ModeOnline && req.Mode != database.ModeOffline {
		return fmt.Errorf("%w: mode must be ONLINE or OFFLINE", ErrInvalidInput)
	}
	if req.Timestamp < 0 {
		return fmt.Errorf("%w: timestamp must not be negative", ErrInvalidInput)
	}
	return nil
}
