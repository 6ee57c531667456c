package api

import (
	"net/http"

	"github.com/wildwatch/apicheck/internal/wildtwin/store"
	"github.com/wildwatch/apicheck/pkg/twincore"
)

type registerDeviceRequest struct {
	DeviceName string `json:"deviceName" validate:"required,min=3,max=50"`
	Group      string `json:"group" validate:"required"`
	Password   string `json:"password" validate:"required,min=8"`
	Type       string `json:"type" validate:"omitempty,oneof=thermal audio"`
}

// publicDevice hides the password hash.
func publicDevice(d store.Device) store.Device {
	d.PasswordHash = ""
	return d
}

// RegisterDevice handles POST /api/v1/devices. Devices register themselves
// into an existing group and receive a device token.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		twincore.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	typ := req.Type
	if typ == "" {
		typ = "thermal"
	}

	var (
		device  store.Device
		problem string
	)
	err = h.store.Tx(func() error {
		group, ok := h.store.GroupByName(req.Group)
		if !ok {
			problem = "Group " + req.Group + " does not exist"
			return errTaken
		}
		if _, ok := h.store.DeviceByName(group.ID, req.DeviceName); ok {
			problem = "Device name in use"
			return errTaken
		}
		now := h.store.Clock.Now()
		device = h.store.Devices.Insert(func(id int) store.Device {
			return store.Device{
				ID:                 id,
				DeviceName:         req.DeviceName,
				GroupID:            group.ID,
				GroupName:          group.GroupName,
				PasswordHash:       hash,
				Active:             true,
				Type:               typ,
				LastConnectionTime: &now,
				CreatedAt:          now,
			}
		})
		return nil
	})
	if err != nil {
		twincore.Error(w, http.StatusUnprocessableEntity, problem)
		return
	}

	token, err := h.auth.Issue(TokenDevice, device.ID)
	if err != nil {
		twincore.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	twincore.Success(w, http.StatusOK, map[string]any{"id": device.ID, "token": token}, "Created new device.")
}

// ListDevices handles GET /api/v1/devices.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	user := *principalFrom(r).user
	devices := make([]store.Device, 0)
	for _, d := range h.store.Devices.Filter(func(d store.Device) bool {
		return h.store.CanAccessGroup(user, d.GroupID)
	}) {
		devices = append(devices, publicDevice(d))
	}
	twincore.Success(w, http.StatusOK, map[string]any{"devices": devices})
}

// deviceFor loads the device named by the {id} URL parameter if the caller
// may see it.
func (h *Handler) deviceFor(w http.ResponseWriter, r *http.Request) (store.Device, bool) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return store.Device{}, false
	}
	return h.accessibleDevice(w, r, id)
}

func (h *Handler) accessibleDevice(w http.ResponseWriter, r *http.Request, id int) (store.Device, bool) {
	d, ok := h.store.Devices.Get(id)
	if !ok {
		twincore.Error(w, http.StatusNotFound, "Could not find device")
		return store.Device{}, false
	}
	p := principalFrom(r)
	if p.device != nil {
		if p.device.ID != d.ID {
			twincore.Error(w, http.StatusForbidden, "Devices may only act for themselves")
			return store.Device{}, false
		}
		return d, true
	}
	if !h.store.CanAccessGroup(*p.user, d.GroupID) {
		twincore.Error(w, http.StatusForbidden, "User does not have access to device")
		return store.Device{}, false
	}
	return d, true
}

// GetDevice handles GET /api/v1/devices/{id}.
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := h.deviceFor(w, r)
	if !ok {
		return
	}
	twincore.Success(w, http.StatusOK, map[string]any{"device": publicDevice(d)})
}
