package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/attendance-server/internal/attendance"
	"github.com/kozaktomas/attendance-server/internal/database"
)

// AttendanceHandler handles the live record path, offline sync, and the
// reporting endpoints.
type AttendanceHandler struct {
	service    *attendance.Service
	reconciler *attendance.Reconciler
	ledger     database.AttendanceLedger
	directory  database.EmployeeDirectory
	now        func() time.Time
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(service *attendance.Service, reconciler *attendance.Reconciler, ledger database.AttendanceLedger, directory database.EmployeeDirectory) *AttendanceHandler {
	return &AttendanceHandler{
		service:    service,
		reconciler: reconciler,
		ledger:     ledger,
		directory:  directory,
		now:        time.Now,
	}
}

// eventResponse is the wire shape of an attendance event.
type eventResponse struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employeeId"`
	EmployeeCode string  `json:"employeeCode"`
	CheckType    string  `json:"checkType"`
	Timestamp    int64   `json:"timestamp"`
	DeviceID     string  `json:"deviceId"`
	Location     string  `json:"location,omitempty"`
	SyncStatus   string  `json:"syncStatus"`
	Mode         string  `json:"mode"`
	Confidence   float64 `json:"confidence"`
}

func toEventResponse(ev *database.AttendanceEvent) eventResponse {
	return eventResponse{
		ID:           ev.ID,
		EmployeeID:   ev.EmployeeID,
		EmployeeCode: ev.EmployeeCode,
		CheckType:    string(ev.CheckType),
		Timestamp:    ev.Timestamp,
		DeviceID:     ev.DeviceID,
		Location:     ev.Location,
		SyncStatus:   string(ev.SyncStatus),
		Mode:         string(ev.Mode),
		Confidence:   ev.Confidence,
	}
}

// Record handles POST /api/v1/attendance/record.
func (h *AttendanceHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmployeeID string            `json:"employeeId"`
		CheckType  string            `json:"checkType"`
		Timestamp  attendance.Millis `json:"timestamp"`
		DeviceID   string            `json:"deviceId"`
		Location   string            `json:"location"`
		Mode       string            `json:"mode"`
		Embedding  []float32         `json:"embedding"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	event, err := h.service.Record(r.Context(), attendance.RecordRequest{
		EmployeeID: req.EmployeeID,
		CheckType:  database.CheckType(req.CheckType),
		Timestamp:  int64(req.Timestamp),
		DeviceID:   req.DeviceID,
		Location:   req.Location,
		Mode:       database.Mode(req.Mode),
		Embedding:  req.Embedding,
	})
	if err != nil {
		h.respondRecordError(w, err)
		return
	}

	resp := struct {
		eventResponse
		FaceVerified bool   `json:"faceVerified"`
		Message      string `json:"message"`
	}{
		eventResponse: toEventResponse(event),
		FaceVerified:  len(req.Embedding) > 0,
		Message:       fmt.Sprintf("Successfully recorded %s for %s", event.CheckType, event.EmployeeCode),
	}
	respondJSON(w, http.StatusCreated, resp)
}

// respondRecordError maps the record-path error taxonomy to HTTP statuses.
// Everything unrecognized is an internal failure with no details leaked.
func (h *AttendanceHandler) respondRecordError(w http.ResponseWriter, err error) {
	var mismatch *attendance.FaceMismatchError
	switch {
	case errors.Is(err, attendance.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, attendance.ErrEmployeeNotFound):
		respondError(w, http.StatusNotFound, "employee not found")
	case errors.Is(err, attendance.ErrFaceVerificationFailed):
		respondJSON(w, http.StatusForbidden, map[string]any{
			"error":              "Face verification failed. No matching employee found.",
			"verificationFailed": true,
		})
	case errors.As(err, &mismatch):
		respondJSON(w, http.StatusForbidden, map[string]any{
			"error":                "Face verification failed. Face does not match the employee ID.",
			"verificationFailed":   true,
			"detectedEmployeeId":   mismatch.DetectedEmployeeID,
			"detectedEmployeeName": mismatch.DetectedName,
		})
	case errors.Is(err, attendance.ErrDuplicateSubmission):
		respondError(w, http.StatusConflict, "Duplicate check-in/out detected. Please wait 5 minutes before trying again.")
	default:
		log.Printf("recording attendance: %v", err)
		respondError(w, http.StatusInternalServerError, errInternal)
	}
}

// Sync handles POST /api/v1/attendance/sync. The body is a JSON array of
// client records; each record is merged independently.
func (h *AttendanceHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var records []attendance.ClientRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(records) == 0 {
		respondError(w, http.StatusBadRequest, "invalid or empty records array")
		return
	}

	outcome, err := h.reconciler.Sync(r.Context(), records)
	if err != nil {
		log.Printf("syncing attendance batch: %v", err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":           len(outcome.Accepted),
		"failed":            len(outcome.Rejected),
		"successfulRecords": outcome.Accepted,
		"failedRecords":     outcome.Rejected,
		"message":           fmt.Sprintf("Synced %d of %d records", len(outcome.Accepted), len(records)),
	})
}

// History handles GET /api/v1/attendance/history.
// Either startMs/endMs or days (default 30) select the range; all
// boundaries are epoch milliseconds.
func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employeeId")
	if employeeID == "" {
		respondError(w, http.StatusBadRequest, "employee ID is required")
		return
	}

	fromMs, toMs, err := h.historyRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.ledger.History(r.Context(), employeeID, fromMs, toMs)
	if err != nil {
		log.Printf("querying history for %s: %v", sanitizeForLog(employeeID), err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	out := make([]eventResponse, 0, len(events))
	for i := range events {
		out = append(out, toEventResponse(&events[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *AttendanceHandler) historyRange(r *http.Request) (int64, int64, error) {
	q := r.URL.Query()
	startStr, endStr := q.Get("startMs"), q.Get("endMs")
	if startStr != "" && endStr != "" {
		start, err1 := strconv.ParseInt(startStr, 10, 64)
		end, err2 := strconv.ParseInt(endStr, 10, 64)
		if err1 != nil || err2 != nil || start > end {
			return 0, 0, errors.New("startMs and endMs must be integer milliseconds with startMs <= endMs")
		}
		return start, end, nil
	}

	days := 30
	if d := q.Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n <= 0 {
			return 0, 0, errors.New("days must be a positive integer")
		}
		days = n
	}
	nowMs := h.now().UnixMilli()
	return nowMs - int64(days)*24*60*60*1000, nowMs, nil
}

// daySummaryRow is the per-employee entry of the daily summary.
type daySummaryRow struct {
	EmployeeID   string  `json:"employeeId"`
	EmployeeCode string  `json:"employeeCode"`
	Name         string  `json:"name"`
	Department   string  `json:"department"`
	FirstCheckIn *int64  `json:"firstCheckIn"`
	LastCheckOut *int64  `json:"lastCheckOut"`
	Status       string  `json:"status"`
	WorkingHours *string `json:"workingHours"`
}

// DailySummary handles GET /api/v1/attendance/daily-summary?date=YYYY-MM-DD.
// The calendar day converts to millisecond bounds right here at the query
// boundary; only millis flow further down.
func (h *AttendanceHandler) DailySummary(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	day := h.now()
	if dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	startOfDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local)
	fromMs := startOfDay.UnixMilli()
	toMs := startOfDay.Add(24*time.Hour).UnixMilli() - 1

	employees, err := h.directory.List(r.Context(), "")
	if err != nil {
		log.Printf("listing employees for summary: %v", err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	rows := make([]daySummaryRow, 0, len(employees))
	present := 0
	for i := range employees {
		emp := &employees[i]
		row, err := h.summarizeDay(r, emp, fromMs, toMs)
		if err != nil {
			log.Printf("summarizing day for %s: %v", sanitizeForLog(emp.EmployeeID), err)
			respondError(w, http.StatusInternalServerError, errInternal)
			return
		}
		if row.Status == "Present" {
			present++
		}
		rows = append(rows, row)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":           startOfDay.Format("2006-01-02"),
		"totalEmployees": len(rows),
		"present":        present,
		"absent":         len(rows) - present,
		"employees":      rows,
	})
}

func (h *AttendanceHandler) summarizeDay(r *http.Request, emp *database.Employee, fromMs, toMs int64) (daySummaryRow, error) {
	row := daySummaryRow{
		EmployeeID:   emp.EmployeeID,
		EmployeeCode: emp.EmployeeCode,
		Name:         emp.Name,
		Department:   emp.Department,
		Status:       "Absent",
	}

	firstIn, inFound, err := h.ledger.EarliestTimestamp(r.Context(), emp.EmployeeID, database.CheckIn, fromMs, toMs)
	if err != nil {
		return row, err
	}
	lastOut, outFound, err := h.ledger.LatestTimestamp(r.Context(), emp.EmployeeID, database.CheckOut, fromMs, toMs)
	if err != nil {
		return row, err
	}

	if inFound {
		row.FirstCheckIn = &firstIn
		row.Status = "Present"
	}
	if outFound {
		row.LastCheckOut = &lastOut
	}
	if inFound && outFound && lastOut > firstIn {
		hours := fmt.Sprintf("%.2f", float64(lastOut-firstIn)/(1000*60*60))
		row.WorkingHours = &hours
	}
	return row, nil
}

// Stats handles GET /api/v1/attendance/stats/{employeeId}?month=&year=.
func (h *AttendanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeId")

	now := h.now()
	month := int(now.Month())
	year := now.Year()
	if m := r.URL.Query().Get("month"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > 12 {
			respondError(w, http.StatusBadRequest, "month must be 1-12")
			return
		}
		month = n
	}
	if y := r.URL.Query().Get("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil || n < 2000 || n > 2200 {
			respondError(w, http.StatusBadRequest, "year is out of range")
			return
		}
		year = n
	}

	// Month bounds convert to millis at the query boundary.
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, 0).Add(-time.Millisecond)
	totalDays := end.Day()

	daysPresent, err := h.ledger.DaysPresent(r.Context(), employeeID, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		log.Printf("counting days present for %s: %v", sanitizeForLog(employeeID), err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"employeeId":           employeeID,
		"month":                month,
		"year":                 year,
		"daysPresent":          daysPresent,
		"totalWorkingDays":     totalDays,
		"attendancePercentage": fmt.Sprintf("%.2f", float64(daysPresent)/float64(totalDays)*100),
	})
}
