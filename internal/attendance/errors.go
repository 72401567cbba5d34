package attendance

import (
	"errors"
	"fmt"
)

// Sentinel errors for the distinct record-path outcomes. Handlers map
// these to HTTP statuses; anything else is a generic internal failure.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrEmployeeNotFound       = errors.New("employee not found")
	ErrFaceVerificationFailed = errors.New("face verification failed")
	ErrDuplicateSubmission    = errors.New("duplicate check-in/out detected")
)

// FaceMismatchError means the face matched a different employee than the
// one claimed in the request. The detected identity is carried for
// diagnostics.
type FaceMismatchError struct {
	ClaimedEmployeeID  string
	DetectedEmployeeID string
	DetectedName       string
}

func (e *FaceMismatchError) Error() string {
	return fmt.Sprintf("face does not match employee %s (detected %s)", e.ClaimedEmployeeID, e.DetectedEmployeeID)
}
