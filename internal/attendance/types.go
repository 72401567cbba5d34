package attendance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kozaktomas/attendance-server/internal/database"
)

// Millis is an epoch-millisecond timestamp that unmarshals leniently from
// JSON: both numbers and numeric strings are accepted, since offline
// clients have shipped both over the years. It always normalizes to an
// integer; calendar representations never enter the system.
type Millis int64

// UnmarshalJSON accepts 1700000000000 and "1700000000000" alike.
func (m *Millis) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*m = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: must be integer milliseconds", s)
	}
	*m = Millis(v)
	return nil
}

// MarshalJSON always emits a JSON number.
func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(m))
}

// RecordRequest is the input for the live record path.
type RecordRequest struct {
	EmployeeID string
	CheckType  database.CheckType
	Timestamp  int64 // milliseconds; 0 means "use server time"
	DeviceID   string
	Location   string
	Mode       database.Mode // defaults to ONLINE
	Embedding  []float32     // optional; presence triggers face verification
}

// ClientRecord is one offline-generated attendance record submitted for
// synchronization. The ID is client-generated and must be globally unique.
type ClientRecord struct {
	ID         string             `json:"id"`
	EmployeeID string             `json:"employeeId"`
	CheckType  database.CheckType `json:"checkType"`
	Timestamp  Millis             `json:"timestamp"`
	DeviceID   string             `json:"deviceId"`
	Location   string             `json:"location"`
}

// RejectedRecord reports why one record of a sync batch was not merged.
type RejectedRecord struct {
	ID     string `json:"id"`
	Reason string `json:"error"`
}

// SyncOutcome reports the per-record result of a sync batch. Every input
// record appears exactly once, either in Accepted or in Rejected, in
// input order.
type SyncOutcome struct {
	Accepted []string
	Rejected []RejectedRecord
}
