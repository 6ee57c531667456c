package api

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/wildwatch/apicheck/internal/wildtwin/store"
	"github.com/wildwatch/apicheck/pkg/twincore"
)

// maxUploadMemory bounds the in-memory part of a multipart upload.
const maxUploadMemory = 32 << 20

// Query limits for GET /recordings and GET /events.
const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// recordingData is the JSON "data" field of a recording upload.
type recordingData struct {
	Type               string          `json:"type" validate:"required,oneof=thermalRaw audio"`
	RecordingDateTime  *time.Time      `json:"recordingDateTime"`
	Duration           float64         `json:"duration" validate:"gte=0"`
	Location           *store.Location `json:"location"`
	FileHash           string          `json:"fileHash" validate:"omitempty,hexadecimal,len=40"`
	AdditionalMetadata map[string]any  `json:"additionalMetadata"`
}

type addTrackRequest struct {
	Start float64        `json:"start" validate:"gte=0"`
	End   float64        `json:"end" validate:"gtefield=Start"`
	Data  map[string]any `json:"data"`
}

type addTrackTagRequest struct {
	What       string         `json:"what" validate:"required"`
	Confidence float64        `json:"confidence" validate:"gte=0,lte=1"`
	Automatic  bool           `json:"automatic"`
	Data       map[string]any `json:"data"`
}

type trackView struct {
	store.Track
	Tags []store.TrackTag `json:"tags"`
}

type recordingView struct {
	store.Recording
	Tracks []trackView `json:"tracks"`
}

func (h *Handler) trackView(t store.Track) trackView {
	return trackView{Track: t, Tags: h.store.TagsFor(t.ID)}
}

func (h *Handler) recordingView(rec store.Recording) recordingView {
	tracks := h.store.TracksFor(rec.ID)
	views := make([]trackView, 0, len(tracks))
	for _, t := range tracks {
		views = append(views, h.trackView(t))
	}
	return recordingView{Recording: rec, Tracks: views}
}

// UploadRecording handles POST /api/v1/recordings/device/{id}: a multipart
// body with a "file" part and a JSON "data" field. Recordings with a location
// are matched to the nearest active station of the device's group.
func (h *Handler) UploadRecording(w http.ResponseWriter, r *http.Request) {
	device, ok := h.deviceFor(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		twincore.Error(w, http.StatusBadRequest, "expected a multipart body: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		twincore.Error(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, "reading file: "+err.Error())
		return
	}

	var data recordingData
	if err := json.Unmarshal([]byte(r.FormValue("data")), &data); err != nil {
		twincore.Error(w, http.StatusUnprocessableEntity, "data must be a JSON object: "+err.Error())
		return
	}
	if !validBody(w, &data) {
		return
	}

	sum := sha1.Sum(content)
	hash := hex.EncodeToString(sum[:])
	if data.FileHash != "" && data.FileHash != hash {
		twincore.Error(w, http.StatusUnprocessableEntity, "Uploaded file integrity check failed")
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(content)
	}

	now := h.store.Clock.Now()
	when := now
	if data.RecordingDateTime != nil {
		when = data.RecordingDateTime.UTC()
	}

	rec := h.store.Recordings.Insert(func(id int) store.Recording {
		rec := store.Recording{
			ID:                 id,
			DeviceID:           device.ID,
			DeviceName:         device.DeviceName,
			GroupID:            device.GroupID,
			GroupName:          device.GroupName,
			Type:               data.Type,
			RecordingDateTime:  when,
			Duration:           data.Duration,
			Location:           data.Location,
			ProcessingState:    store.ProcessingFinished,
			FileHash:           hash,
			FileSize:           len(content),
			FileMimeType:       mimeType,
			AdditionalMetadata: data.AdditionalMetadata,
			CreatedAt:          now,
		}
		if data.Location != nil {
			if st, ok := h.store.NearestStation(device.GroupID, *data.Location, when); ok {
				stationID := st.ID
				rec.StationID = &stationID
				rec.StationName = st.Name
			}
		}
		return rec
	})
	h.store.Devices.Update(device.ID, func(d *store.Device) error {
		if d.LastRecordingTime == nil || when.After(*d.LastRecordingTime) {
			d.LastRecordingTime = &when
		}
		d.LastConnectionTime = &now
		return nil
	})

	h.logger.Debug("recording uploaded", "id", rec.ID, "device", device.ID, "bytes", len(content))
	payload := map[string]any{"recordingId": rec.ID}
	if rec.StationID != nil {
		payload["stationId"] = *rec.StationID
	}
	twincore.Success(w, http.StatusOK, payload, "Thanks for the recording!")
}

// recordingFor loads the {id} recording if the caller may see it.
func (h *Handler) recordingFor(w http.ResponseWriter, r *http.Request) (store.Recording, bool) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return store.Recording{}, false
	}
	rec, ok := h.store.Recordings.Get(id)
	if !ok {
		twincore.Error(w, http.StatusNotFound, "No such recording")
		return store.Recording{}, false
	}
	if !h.store.CanAccessGroup(*principalFrom(r).user, rec.GroupID) {
		twincore.Error(w, http.StatusForbidden, "User does not have access to recording")
		return store.Recording{}, false
	}
	return rec, true
}

// GetRecording handles GET /api/v1/recordings/{id}.
func (h *Handler) GetRecording(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.recordingFor(w, r)
	if !ok {
		return
	}
	twincore.Success(w, http.StatusOK, map[string]any{"recording": h.recordingView(rec)})
}

// QueryRecordings handles GET /api/v1/recordings?deviceId=&type=&tagged=&offset=&limit=.
func (h *Handler) QueryRecordings(w http.ResponseWriter, r *http.Request) {
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
	typ, tagged := q.Get("type"), q.Get("tagged")

	page := h.store.Recordings.Paginate(func(rec store.Recording) bool {
		if !h.store.CanAccessGroup(user, rec.GroupID) {
			return false
		}
		if deviceID != 0 && rec.DeviceID != deviceID {
			return false
		}
		if typ != "" && rec.Type != typ {
			return false
		}
		return tagged == "" || h.hasTag(rec.ID, tagged)
	}, offset, limit)

	rows := make([]recordingView, 0, len(page.Rows))
	for _, rec := range page.Rows {
		rows = append(rows, h.recordingView(rec))
	}
	twincore.Success(w, http.StatusOK, map[string]any{
		"rows":   rows,
		"count":  page.Count,
		"offset": page.Offset,
		"limit":  page.Limit,
	})
}

func (h *Handler) hasTag(recordingID int, what string) bool {
	for _, t := range h.store.TracksFor(recordingID) {
		for _, tag := range h.store.TagsFor(t.ID) {
			if tag.What == what {
				return true
			}
		}
	}
	return false
}

// DeleteRecording handles DELETE /api/v1/recordings/{id}.
func (h *Handler) DeleteRecording(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.recordingFor(w, r)
	if !ok {
		return
	}
	if !h.store.DeleteRecording(rec.ID) {
		twincore.Error(w, http.StatusNotFound, "No such recording")
		return
	}
	twincore.Success(w, http.StatusOK, nil, "Deleted recording.")
}

// AddTrack handles POST /api/v1/recordings/{id}/tracks.
func (h *Handler) AddTrack(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.recordingFor(w, r)
	if !ok {
		return
	}
	var req addTrackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.End > rec.Duration && rec.Duration > 0 {
		twincore.Error(w, http.StatusUnprocessableEntity, "Track ends after the recording")
		return
	}
	track := h.store.Tracks.Insert(func(id int) store.Track {
		return store.Track{
			ID:          id,
			RecordingID: rec.ID,
			Start:       req.Start,
			End:         req.End,
			Data:        req.Data,
			CreatedAt:   h.store.Clock.Now(),
		}
	})
	twincore.Success(w, http.StatusOK, map[string]any{"trackId": track.ID}, "Track added.")
}

// GetTracks handles GET /api/v1/recordings/{id}/tracks.
func (h *Handler) GetTracks(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.recordingFor(w, r)
	if !ok {
		return
	}
	twincore.Success(w, http.StatusOK, map[string]any{"tracks": h.recordingView(rec).Tracks})
}

// trackFor loads {trackId}, which must belong to the {id} recording.
func (h *Handler) trackFor(w http.ResponseWriter, r *http.Request) (store.Recording, store.Track, bool) {
	rec, ok := h.recordingFor(w, r)
	if !ok {
		return store.Recording{}, store.Track{}, false
	}
	trackID, ok := intParam(w, r, "trackId")
	if !ok {
		return store.Recording{}, store.Track{}, false
	}
	track, ok := h.store.Tracks.Get(trackID)
	if !ok || track.RecordingID != rec.ID {
		twincore.Error(w, http.StatusNotFound, "No such track on this recording")
		return store.Recording{}, store.Track{}, false
	}
	return rec, track, true
}

// AddTrackTag handles POST /api/v1/recordings/{id}/tracks/{trackId}/tags.
// Matching alerts on the recording's device fire.
func (h *Handler) AddTrackTag(w http.ResponseWriter, r *http.Request) {
	rec, track, ok := h.trackFor(w, r)
	if !ok {
		return
	}
	var req addTrackTagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	now := h.store.Clock.Now()
	user := principalFrom(r).user
	tag := h.store.Tags.Insert(func(id int) store.TrackTag {
		tag := store.TrackTag{
			ID:         id,
			TrackID:    track.ID,
			What:       req.What,
			Confidence: req.Confidence,
			Automatic:  req.Automatic,
			Data:       req.Data,
			CreatedAt:  now,
		}
		if !req.Automatic {
			uid := user.ID
			tag.UserID = &uid
		}
		return tag
	})
	for _, a := range h.store.FireAlerts(rec.DeviceID, req.What, req.Automatic, now) {
		h.logger.Debug("alert fired", "alert", a.ID, "device", rec.DeviceID, "tag", req.What)
	}
	twincore.Success(w, http.StatusOK, map[string]any{"trackTagId": tag.ID}, "Track tag added.")
}

// DeleteTrackTag handles DELETE /api/v1/recordings/{id}/tracks/{trackId}/tags/{tagId}.
func (h *Handler) DeleteTrackTag(w http.ResponseWriter, r *http.Request) {
	_, track, ok := h.trackFor(w, r)
	if !ok {
		return
	}
	tagID, ok := intParam(w, r, "tagId")
	if !ok {
		return
	}
	tag, found := h.store.Tags.Get(tagID)
	if !found || tag.TrackID != track.ID {
		twincore.Error(w, http.StatusNotFound, "No such tag on this track")
		return
	}
	h.store.Tags.Delete(tag.ID)
	twincore.Success(w, http.StatusOK, nil, "Deleted tag.")
}
