package api

import (
	"net/http"

	"github.com/wildwatch/apicheck/internal/wildtwin/store"
	"github.com/wildwatch/apicheck/pkg/twincore"
)

// defaultAlertFrequency is used when a request omits frequencySeconds.
const defaultAlertFrequency = 30 * 60

type createAlertRequest struct {
	Name             string                 `json:"name" validate:"required"`
	DeviceID         int                    `json:"deviceId" validate:"required,gt=0"`
	Conditions       []store.AlertCondition `json:"conditions" validate:"required,min=1,dive"`
	FrequencySeconds *int                   `json:"frequencySeconds" validate:"omitempty,gte=0"`
}

// CreateAlert handles POST /api/v1/alerts.
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	for _, c := range req.Conditions {
		if c.Tag == "" {
			twincore.Error(w, http.StatusUnprocessableEntity, "conditions must name a tag")
			return
		}
	}
	device, ok := h.accessibleDevice(w, r, req.DeviceID)
	if !ok {
		return
	}
	freq := defaultAlertFrequency
	if req.FrequencySeconds != nil {
		freq = *req.FrequencySeconds
	}

	user := principalFrom(r).user
	alert := h.store.Alerts.Insert(func(id int) store.Alert {
		return store.Alert{
			ID:               id,
			Name:             req.Name,
			UserID:           user.ID,
			DeviceID:         device.ID,
			Conditions:       req.Conditions,
			FrequencySeconds: freq,
			CreatedAt:        h.store.Clock.Now(),
		}
	})
	twincore.Success(w, http.StatusOK, map[string]any{"id": alert.ID}, "Created new Alert.")
}

// GetAlerts handles GET /api/v1/alerts/device/{id}. Users see their own
// alerts; super users see every alert on the device.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	device, ok := h.deviceFor(w, r)
	if !ok {
		return
	}
	user := principalFrom(r).user
	alerts := h.store.Alerts.Filter(func(a store.Alert) bool {
		return a.DeviceID == device.ID && (a.UserID == user.ID || user.IsSuperUser())
	})
	twincore.Success(w, http.StatusOK, map[string]any{"alerts": alerts})
}
