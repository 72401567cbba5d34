package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/attendance-server/internal/config"
	"github.com/kozaktomas/attendance-server/internal/database"
)

const (
	trialDurationMs  = int64(30) * 24 * 60 * 60 * 1000
	trialDeviceLimit = 2
)

// TrialHandler validates trial keys and tracks device registrations.
type TrialHandler struct {
	store database.TrialDeviceStore
	trial config.TrialConfig
	now   func() time.Time
}

// NewTrialHandler creates a new trial handler.
func NewTrialHandler(store database.TrialDeviceStore, trial config.TrialConfig) *TrialHandler {
	return &TrialHandler{
		store: store,
		trial: trial,
		now:   time.Now,
	}
}

type trialRequest struct {
	TrialKey       string `json:"trialKey"`
	DeviceID       string `json:"deviceId"`
	DeviceModel    string `json:"deviceModel"`
	AndroidVersion string `json:"androidVersion"`
	AppVersion     string `json:"appVersion"`
}

// evaluate classifies a device/key pair. The status vocabulary is part of
// the client contract: invalid, expired, device_limit_exceeded, valid.
func (h *TrialHandler) evaluate(r *http.Request, req trialRequest) (status string, device *database.TrialDevice, err error) {
	if !h.trial.IsValidKey(req.TrialKey) {
		return "invalid", nil, nil
	}

	device, err = h.store.Get(r.Context(), req.DeviceID, req.TrialKey)
	if err != nil {
		return "", nil, err
	}

	if device != nil {
		if h.now().UnixMilli() > device.RegisteredAt+trialDurationMs {
			return "expired", device, nil
		}
		return "valid", device, nil
	}

	count, err := h.store.CountByKey(r.Context(), req.TrialKey)
	if err != nil {
		return "", nil, err
	}
	if count >= trialDeviceLimit {
		return "device_limit_exceeded", nil, nil
	}
	return "valid", nil, nil
}

// Validate handles POST /api/v1/trial/validate.
func (h *TrialHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req trialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrialKey == "" || req.DeviceID == "" {
		respondError(w, http.StatusBadRequest, "trialKey and deviceId are required")
		return
	}

	status, device, err := h.evaluate(r, req)
	if err != nil {
		log.Printf("validating trial key: %v", err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	resp := map[string]any{
		"status": status,
		"valid":  status == "valid",
	}
	if device != nil {
		resp["registeredAt"] = device.RegisteredAt
		resp["expiresAt"] = device.RegisteredAt + trialDurationMs
	}
	respondJSON(w, http.StatusOK, resp)
}

// Register handles POST /api/v1/trial/register. Registration is idempotent
// per (deviceId, trialKey); re-registering keeps the original clock.
func (h *TrialHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req trialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrialKey == "" || req.DeviceID == "" {
		respondError(w, http.StatusBadRequest, "trialKey and deviceId are required")
		return
	}

	status, existing, err := h.evaluate(r, req)
	if err != nil {
		log.Printf("registering trial device: %v", err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if status != "valid" {
		respondJSON(w, http.StatusForbidden, map[string]any{
			"status": status,
			"valid":  false,
		})
		return
	}

	device := database.TrialDevice{
		DeviceID:       req.DeviceID,
		TrialKey:       req.TrialKey,
		DeviceModel:    req.DeviceModel,
		AndroidVersion: req.AndroidVersion,
		AppVersion:     req.AppVersion,
		RegisteredAt:   h.now().UnixMilli(),
	}
	if existing != nil {
		device.RegisteredAt = existing.RegisteredAt
	}
	if err := h.store.Upsert(r.Context(), &device); err != nil {
		log.Printf("registering trial device: %v", err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "valid",
		"valid":        true,
		"registeredAt": device.RegisteredAt,
		"expiresAt":    device.RegisteredAt + trialDurationMs,
	})
}

// Status handles GET /api/v1/trial/status?trialKey=&deviceId=.
func (h *TrialHandler) Status(w http.ResponseWriter, r *http.Request) {
	req := trialRequest{
		TrialKey: r.URL.Query().Get("trialKey"),
		DeviceID: r.URL.Query().Get("deviceId"),
	}
	if req.TrialKey == "" || req.DeviceID == "" {
		respondError(w, http.StatusBadRequest, "trialKey and deviceId are required")
		return
	}

	status, device, err := h.evaluate(r, req)
	if err != nil {
		log.Printf("checking trial status: %v", err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	resp := map[string]any{
		"status": status,
		"valid":  status == "valid",
	}
	if device != nil {
		now := h.now().UnixMilli()
		expires := device.RegisteredAt + trialDurationMs
		resp["registeredAt"] = device.RegisteredAt
		resp["expiresAt"] = expires
		if remaining := expires - now; remaining > 0 {
			resp["daysRemaining"] = remaining / (24 * 60 * 60 * 1000)
		} else {
			resp["daysRemaining"] = int64(0)
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
