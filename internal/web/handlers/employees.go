package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/attendance-server/internal/database"
	"github.com/kozaktomas/attendance-server/internal/match"
)

// EmployeesHandler handles employee registration, lookup, and the direct
// embedding-match endpoint.
type EmployeesHandler struct {
	employees database.EmployeeWriter
	matcher   match.Matcher
	rebuilder match.Rebuilder // nil when the matcher needs no refresh
	dim       int
	threshold float64 // default threshold for find-by-embedding
	now       func() int64
}

// NewEmployeesHandler creates a new employees handler.
func NewEmployeesHandler(employees database.EmployeeWriter, matcher match.Matcher, rebuilder match.Rebuilder, dim int, threshold float64) *EmployeesHandler {
	return &EmployeesHandler{
		employees: employees,
		matcher:   matcher,
		rebuilder: rebuilder,
		dim:       dim,
		threshold: threshold,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// employeeResponse is the wire shape of an employee.
type employeeResponse struct {
	EmployeeID       string    `json:"employeeId"`
	EmployeeCode     string    `json:"employeeCode"`
	Name             string    `json:"name"`
	Department       string    `json:"department"`
	FaceID           string    `json:"faceId,omitempty"`
	RegistrationDate int64     `json:"registrationDate"`
	IsActive         bool      `json:"isActive"`
	Embedding        []float32 `json:"embedding,omitempty"`
	Similarity       *float64  `json:"similarity,omitempty"`
}

func toEmployeeResponse(emp *database.Employee, withEmbedding bool) employeeResponse {
	resp := employeeResponse{
		EmployeeID:       emp.EmployeeID,
		EmployeeCode:     emp.EmployeeCode,
		Name:             emp.Name,
		Department:       emp.Department,
		FaceID:           emp.FaceID,
		RegistrationDate: emp.RegisteredAt,
		IsActive:         emp.IsActive,
	}
	if withEmbedding {
		resp.Embedding = emp.Embedding
	}
	return resp
}

// refreshMatcher rebuilds the matcher index after an enrollment change.
// Best-effort; a stale index self-corrects on the next rebuild.
func (h *EmployeesHandler) refreshMatcher(ctx context.Context) {
	if h.rebuilder == nil {
		return
	}
	if err := h.rebuilder.Rebuild(ctx); err != nil {
		log.Printf("rebuilding match index: %v", err)
	}
}

// FindByEmbedding handles POST /api/v1/employees/find-by-embedding.
// Exposes the similarity matcher directly: returns the best match above
// the threshold or 404 when nobody qualifies.
func (h *EmployeesHandler) FindByEmbedding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Embedding []float32 `json:"embedding"`
		Threshold *float64  `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Embedding) == 0 {
		respondError(w, http.StatusBadRequest, "invalid embedding data")
		return
	}

	threshold := h.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold <= 0 || threshold > 1 {
		respondError(w, http.StatusBadRequest, "threshold must be in (0, 1]")
		return
	}

	result, err := h.matcher.Match(r.Context(), req.Embedding, threshold)
	if err != nil {
		if errors.Is(err, match.ErrInvalidEmbedding) {
			respondError(w, http.StatusBadRequest, "invalid embedding data")
			return
		}
		log.Printf("matching embedding: %v", err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if result == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"message": "No matching employee found"})
		return
	}

	emp, err := h.employees.Get(r.Context(), result.EmployeeID)
	if err != nil || emp == nil {
		log.Printf("resolving matched employee %s: %v", sanitizeForLog(result.EmployeeID), err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	resp := toEmployeeResponse(emp, true)
	resp.Similarity = &result.Similarity
	respondJSON(w, http.StatusOK, resp)
}

// Register handles POST /api/v1/employees/register.
func (h *EmployeesHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmployeeCode string    `json:"employeeCode"`
		Name         string    `json:"name"`
		Department   string    `json:"department"`
		FaceID       string    `json:"faceId"`
		Embedding    []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.EmployeeCode == "" || req.Name == "" || req.Department == "" {
		respondError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if len(req.Embedding) > 0 && len(req.Embedding) != h.dim {
		respondError(w, http.StatusBadRequest, "embedding has wrong dimensionality")
		return
	}

	existing, err := h.employees.GetByCode(r.Context(), req.EmployeeCode)
	if err != nil {
		log.Printf("checking employee code: %v", err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "employee code already exists")
		return
	}

	emp := &database.Employee{
		EmployeeID:   uuid.NewString(),
		EmployeeCode: req.EmployeeCode,
		Name:         req.Name,
		Department:   req.Department,
		FaceID:       req.FaceID,
		Embedding:    req.Embedding,
		IsActive:     true,
		RegisteredAt: h.now(),
	}
	if err := h.employees.Create(r.Context(), emp); err != nil {
		log.Printf("registering employee %s: %v", sanitizeForLog(req.EmployeeCode), err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	if len(emp.Embedding) > 0 {
		h.refreshMatcher(r.Context())
	}
	respondJSON(w, http.StatusCreated, toEmployeeResponse(emp, true))
}

// Get handles GET /api/v1/employees/{employeeId}. Inactive employees are
// not exposed here.
func (h *EmployeesHandler) Get(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeId")

	emp, err := h.employees.Get(r.Context(), employeeID)
	if err != nil {
		log.Printf("getting employee %s: %v", sanitizeForLog(employeeID), err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if emp == nil || !emp.IsActive {
		respondError(w, http.StatusNotFound, "employee not found")
		return
	}
	respondJSON(w, http.StatusOK, toEmployeeResponse(emp, false))
}

// Update handles PUT /api/v1/employees/{employeeId}. Partial update:
// absent fields keep their stored values.
func (h *EmployeesHandler) Update(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeId")

	var req struct {
		Name       *string   `json:"name"`
		Department *string   `json:"department"`
		FaceID     *string   `json:"faceId"`
		Embedding  []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Embedding) > 0 && len(req.Embedding) != h.dim {
		respondError(w, http.StatusBadRequest, "embedding has wrong dimensionality")
		return
	}

	emp, err := h.employees.Update(r.Context(), employeeID, database.EmployeeUpdate{
		Name:       req.Name,
		Department: req.Department,
		FaceID:     req.FaceID,
		Embedding:  req.Embedding,
	})
	if err != nil {
		log.Printf("updating employee %s: %v", sanitizeForLog(employeeID), err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if emp == nil {
		respondError(w, http.StatusNotFound, "employee not found")
		return
	}

	if len(req.Embedding) > 0 {
		h.refreshMatcher(r.Context())
	}
	respondJSON(w, http.StatusOK, toEmployeeResponse(emp, false))
}

// List handles GET /api/v1/employees?department=...
func (h *EmployeesHandler) List(w http.ResponseWriter, r *http.Request) {
	department := r.URL.Query().Get("department")

	employees, err := h.employees.List(r.Context(), department)
	if err != nil {
		log.Printf("listing employees: %v", err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	out := make([]employeeResponse, 0, len(employees))
	for i := range employees {
		out = append(out, toEmployeeResponse(&employees[i], false))
	}
	respondJSON(w, http.StatusOK, out)
}

// Deactivate handles DELETE /api/v1/employees/{employeeId}. Soft delete.
func (h *EmployeesHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeId")

	ok, err := h.employees.Deactivate(r.Context(), employeeID)
	if err != nil {
		log.Printf("deactivating employee %s: %v", sanitizeForLog(employeeID), err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "employee not found")
		return
	}

	h.refreshMatcher(r.Context())
	respondJSON(w, http.StatusOK, map[string]string{"message": "employee deactivated"})
}
