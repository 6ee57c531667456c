package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wildwatch/apicheck/internal/wildtwin/store"
	"github.com/wildwatch/apicheck/pkg/twincore"
)

type createGroupRequest struct {
	GroupName string `json:"groupName" validate:"required,min=3,max=50"`
}

type stationInput struct {
	Name string  `json:"name" validate:"required"`
	Lat  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng  float64 `json:"lng" validate:"gte=-180,lte=180"`
}

type createStationsRequest struct {
	Stations []stationInput `json:"stations" validate:"required,min=1,dive"`
	FromDate *time.Time     `json:"fromDate"`
}

// CreateGroup handles POST /api/v1/groups. The caller becomes its admin.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user := principalFrom(r).user

	var group store.Group
	err := h.store.Tx(func() error {
		if _, ok := h.store.GroupByName(req.GroupName); ok {
			return errTaken
		}
		group = h.store.Groups.Insert(func(id int) store.Group {
			return store.Group{
				ID:        id,
				GroupName: req.GroupName,
				Members:   []store.GroupMember{{UserID: user.ID, Admin: true}},
				CreatedAt: h.store.Clock.Now(),
			}
		})
		return nil
	})
	if err != nil {
		twincore.Error(w, http.StatusUnprocessableEntity, "Group name in use")
		return
	}
	twincore.Success(w, http.StatusOK, map[string]any{"groupId": group.ID}, "Created new group.")
}

// groupFor resolves the {name} URL parameter to a group the caller may see.
func (h *Handler) groupFor(w http.ResponseWriter, r *http.Request) (store.Group, bool) {
	name := chi.URLParam(r, "name")
	group, ok := h.store.GroupByName(name)
	if !ok {
		twincore.Error(w, http.StatusNotFound, fmt.Sprintf("Could not find a group with the name %q", name))
		return store.Group{}, false
	}
	if !h.store.CanAccessGroup(*principalFrom(r).user, group.ID) {
		twincore.Error(w, http.StatusForbidden, "User is not a member of the group")
		return store.Group{}, false
	}
	return group, true
}

// GetGroup handles GET /api/v1/groups/{name}.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, ok := h.groupFor(w, r)
	if !ok {
		return
	}

	users := make([]map[string]any, 0, len(group.Members))
	for _, m := range group.Members {
		u, ok := h.store.Users.Get(m.UserID)
		if !ok {
			continue
		}
		users = append(users, map[string]any{"id": u.ID, "userName": u.UserName, "admin": m.Admin})
	}
	devices := make([]map[string]any, 0)
	for _, d := range h.store.Devices.Filter(func(d store.Device) bool { return d.GroupID == group.ID }) {
		devices = append(devices, map[string]any{"id": d.ID, "deviceName": d.DeviceName})
	}

	twincore.Success(w, http.StatusOK, map[string]any{
		"group": map[string]any{
			"id":        group.ID,
			"groupName": group.GroupName,
			"users":     users,
			"devices":   devices,
		},
	})
}

// CreateStations handles POST /api/v1/groups/{name}/stations. Stations with
// an existing name are moved rather than duplicated. Stations closer than
// store.StationSpacing to another station of the group produce warnings.
func (h *Handler) CreateStations(w http.ResponseWriter, r *http.Request) {
	group, ok := h.groupFor(w, r)
	if !ok {
		return
	}
	var req createStationsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	activeAt := h.store.Clock.Now()
	if req.FromDate != nil {
		activeAt = req.FromDate.UTC()
	}

	ids := make([]int, 0, len(req.Stations))
	var warnings []string
	h.store.Tx(func() error {
		for _, in := range req.Stations {
			loc := store.Location{Lat: in.Lat, Lng: in.Lng}
			existing, found := h.store.Stations.Find(func(st store.Station) bool {
				return st.GroupID == group.ID && st.Name == in.Name && st.RetiredAt == nil
			})
			if found {
				h.store.Stations.Update(existing.ID, func(st *store.Station) error {
					st.Location = loc
					return nil
				})
				ids = append(ids, existing.ID)
				continue
			}
			st := h.store.Stations.Insert(func(id int) store.Station {
				return store.Station{
					ID:        id,
					Name:      in.Name,
					GroupID:   group.ID,
					GroupName: group.GroupName,
					Location:  loc,
					ActiveAt:  activeAt,
					CreatedAt: h.store.Clock.Now(),
				}
			})
			ids = append(ids, st.ID)
		}
		warnings = h.spacingWarnings(group.ID)
		return nil
	})

	payload := map[string]any{"stationIdsAddedOrUpdated": ids}
	if len(warnings) > 0 {
		payload["warnings"] = warnings
	}
	twincore.Success(w, http.StatusOK, payload, "Added stations to group.")
}

// spacingWarnings lists pairs of live stations that are too close together.
func (h *Handler) spacingWarnings(groupID int) []string {
	live := h.store.Stations.Filter(func(st store.Station) bool {
		return st.GroupID == groupID && st.RetiredAt == nil
	})
	var warnings []string
	for i := range live {
		for j := i + 1; j < len(live); j++ {
			if store.Distance(live[i].Location, live[j].Location) < store.StationSpacing {
				warnings = append(warnings, fmt.Sprintf("Stations too close together: %q and %q", live[i].Name, live[j].Name))
			}
		}
	}
	return warnings
}

// GetStations handles GET /api/v1/groups/{name}/stations.
func (h *Handler) GetStations(w http.ResponseWriter, r *http.Request) {
	group, ok := h.groupFor(w, r)
	if !ok {
		return
	}
	stations := h.store.Stations.Filter(func(st store.Station) bool { return st.GroupID == group.ID })
	twincore.Success(w, http.StatusOK, map[string]any{"stations": stations})
}
