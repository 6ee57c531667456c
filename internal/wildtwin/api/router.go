// Package api implements the fake wildlife monitoring API: users, groups,
// devices, stations, recordings with tracks and tags, alerts and events.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/wildwatch/apicheck/internal/wildtwin/store"
	"github.com/wildwatch/apicheck/pkg/twincore"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler holds all API handler state.
type Handler struct {
	store  *store.MemoryStore
	mw     *twincore.Middleware
	auth   *Auth
	logger *slog.Logger
}

// NewHandler creates an API handler.
func NewHandler(s *store.MemoryStore, mw *twincore.Middleware, auth *Auth, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: s, mw: mw, auth: auth, logger: logger}
}

// Routes mounts the API under /api/v1.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.mw.FaultInjection)

		r.Post("/users", h.CreateUser)
		r.Post("/users/authenticate", h.AuthenticateUser)
		r.Post("/devices", h.RegisterDevice)

		// users or devices
		r.Group(func(r chi.Router) {
			r.Use(h.authenticate(false))
			r.Post("/recordings/device/{id}", h.UploadRecording)
			r.Post("/events", h.AddEvents)
		})

		// users only
		r.Group(func(r chi.Router) {
			r.Use(h.authenticate(true))

			r.Post("/groups", h.CreateGroup)
			r.Get("/groups/{name}", h.GetGroup)
			r.Post("/groups/{name}/stations", h.CreateStations)
			r.Get("/groups/{name}/stations", h.GetStations)

			r.Get("/devices", h.ListDevices)
			r.Get("/devices/{id}", h.GetDevice)

			r.Get("/recordings", h.QueryRecordings)
			r.Get("/recordings/{id}", h.GetRecording)
			r.Delete("/recordings/{id}", h.DeleteRecording)
			r.Post("/recordings/{id}/tracks", h.AddTrack)
			r.Get("/recordings/{id}/tracks", h.GetTracks)
			r.Post("/recordings/{id}/tracks/{trackId}/tags", h.AddTrackTag)
			r.Delete("/recordings/{id}/tracks/{trackId}/tags/{tagId}", h.DeleteTrackTag)

			r.Post("/alerts", h.CreateAlert)
			r.Get("/alerts/device/{id}", h.GetAlerts)

			r.Get("/events", h.QueryEvents)
		})
	})
}

// decodeBody decodes and validates a JSON request body. It writes the error
// response and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return validBody(w, v)
}

// validBody validates v and writes a 422 listing every failed field.
func validBody(w http.ResponseWriter, v any) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		twincore.Error(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	twincore.Error(w, http.StatusUnprocessableEntity, msgs...)
	return false
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be an email address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// intParam reads a positive integer URL parameter, writing a 422 if it is not one.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		twincore.Error(w, http.StatusUnprocessableEntity, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
