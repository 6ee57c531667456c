package api

import (
	"net/http"
	"time"

	"github.com/wildwatch/apicheck/internal/wildtwin/store"
	"github.com/wildwatch/apicheck/pkg/twincore"
)

type eventDescription struct {
	Type    string         `json:"type" validate:"required"`
	Details map[string]any `json:"details"`
}

type addEventsRequest struct {
	DeviceID    int              `json:"deviceId" validate:"omitempty,gt=0"`
	Description eventDescription `json:"description"`
	DateTimes   []time.Time      `json:"dateTimes" validate:"required,min=1"`
}

// AddEvents handles POST /api/v1/events. Device callers record events for
// themselves; user callers must name the device.
func (h *Handler) AddEvents(w http.ResponseWriter, r *http.Request) {
	var req addEventsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	deviceID := req.DeviceID
	if p := principalFrom(r); p.device != nil && deviceID == 0 {
		deviceID = p.device.ID
	}
	if deviceID == 0 {
		twincore.Error(w, http.StatusUnprocessableEntity, "deviceId is required")
		return
	}
	device, ok := h.accessibleDevice(w, r, deviceID)
	if !ok {
		return
	}

	now := h.store.Clock.Now()
	ids := make([]int, 0, len(req.DateTimes))
	for _, at := range req.DateTimes {
		ev := h.store.Events.Insert(func(id int) store.Event {
			return store.Event{
				ID:        id,
				DeviceID:  device.ID,
				EventType: req.Description.Type,
				DateTime:  at.UTC(),
				Details:   req.Description.Details,
				CreatedAt: now,
			}
		})
		ids = append(ids, ev.ID)
	}
	twincore.Success(w, http.StatusOK, map[string]any{
		"eventsAdded": len(ids),
		"eventIds":    ids,
	}, "Added events.")
}

// QueryEvents handles GET /api/v1/events?deviceId=&type=&startTime=&endTime=&offset=&limit=.
func (h *Handler) QueryEvents(w http.ResponseWriter, r *http.Request) {
	user := *principalFrom(r).user
	q := r.URL.Query()

	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		twincore.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit > maxPageSize {
		twincore.Error(w, http.StatusUnprocessableEntity, "limit must be between 0 and 1000")
		return
	}
	deviceID, err := queryInt(r, "deviceId", 0)
	if err != nil {
		twincore.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	var start, end time.Time
	for name, dst := range map[string]*time.Time{"startTime": &start, "endTime": &end} {
		if s := q.Get(name); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				twincore.Error(w, http.StatusUnprocessableEntity, name+" must be an RFC 3339 timestamp")
				return
			}
			*dst = t
		}
	}
	typ := q.Get("type")

	page := h.store.Events.Paginate(func(ev store.Event) bool {
		if deviceID != 0 && ev.DeviceID != deviceID {
			return false
		}
		if typ != "" && ev.EventType != typ {
			return false
		}
		if !start.IsZero() && ev.DateTime.Before(start) {
			return false
		}
		if !end.IsZero() && !ev.DateTime.Before(end) {
			return false
		}
		d, ok := h.store.Devices.Get(ev.DeviceID)
		return ok && h.store.CanAccessGroup(user, d.GroupID)
	}, offset, limit)

	twincore.Success(w, http.StatusOK, map[string]any{
		"rows":   page.Rows,
		"count":  page.Count,
		"offset": page.Offset,
		"limit":  page.Limit,
	})
}
