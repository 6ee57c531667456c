package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wildwatch/apicheck/pkg/sortutil"
)

// Upload is the metadata sent alongside a recording file.
type Upload struct {
	Type               string         `json:"type"`
	RecordingDateTime  string         `json:"recordingDateTime,omitempty"`
	Duration           float64        `json:"duration,omitempty"`
	Location           *Location      `json:"location,omitempty"`
	FileHash           string         `json:"fileHash,omitempty"`
	AdditionalMetadata map[string]any `json:"additionalMetadata,omitempty"`
}

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UploadResult is what the API reports about a new recording.
type UploadResult struct {
	RecordingID int
	StationID   int // 0 when no station matched
}

// UploadRecording uploads a file for device. as may be the device itself or
// a user with access to it.
func (s *Session) UploadRecording(ctx context.Context, as, device string, meta Upload, file []byte, opts CheckOptions) (UploadResult, error) {
	d, ok := s.Device(device)
	if !ok {
		return UploadResult{}, fmt.Errorf("no device %q in this session", device)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "recording.bin")
	if err != nil {
		return UploadResult{}, fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(file); err != nil {
		return UploadResult{}, fmt.Errorf("writing file part: %w", err)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return UploadResult{}, fmt.Errorf("encoding upload data: %w", err)
	}
	if err := mw.WriteField("data", string(data)); err != nil {
		return UploadResult{}, fmt.Errorf("writing data field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("closing multipart body: %w", err)
	}

	path := fmt.Sprintf("/api/v1/recordings/device/%d", d.ID)
	r, err := s.do(ctx, http.MethodPost, path, as, mw.FormDataContentType(), &buf, opts)
	if err != nil || !r.ok() {
		return UploadResult{}, err
	}
	return UploadResult{RecordingID: r.number("recordingId"), StationID: r.number("stationId")}, nil
}

// GetRecording fetches a recording with its tracks and tags. Tracks are
// sorted by start and tags by what unless opts.DoNotSort is set.
func (s *Session) GetRecording(ctx context.Context, as string, id int, opts CheckOptions) (map[string]any, error) {
	r, err := s.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/recordings/%d", id), as, nil, opts)
	if err != nil || !r.ok() {
		return nil, err
	}
	rec := r.object("recording")
	if !opts.DoNotSort && rec != nil {
		if tracks, ok := rec["tracks"].([]any); ok {
			rec["tracks"] = sortTracks(tracks)
		}
	}
	return rec, nil
}

func sortTracks(tracks []any) []any {
	sorted := sortutil.ByKeys(tracks, "start", "id")
	for _, t := range sorted {
		if m, ok := t.(map[string]any); ok {
			if tags, ok := m["tags"].([]any); ok {
				m["tags"] = sortutil.ByKeys(tags, "what", "id")
			}
		}
	}
	return sorted
}

// RecordingQuery filters GET /recordings. Zero fields are not sent.
type RecordingQuery struct {
	DeviceID int
	Type     string
	Tagged   string
	Offset   int
	Limit    int
}

func (q RecordingQuery) encode() string {
	v := url.Values{}
	if q.DeviceID != 0 {
		v.Set("deviceId", strconv.Itoa(q.DeviceID))
	}
	if q.Type != "" {
		v.Set("type", q.Type)
	}
	if q.Tagged != "" {
		v.Set("tagged", q.Tagged)
	}
	if q.Offset != 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Limit != 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Page is one page of a query.
type Page struct {
	Rows  []any
	Count int
}

// QueryRecordings lists recordings the user can see.
func (s *Session) QueryRecordings(ctx context.Context, as string, q RecordingQuery, opts CheckOptions) (Page, error) {
	r, err := s.doJSON(ctx, http.MethodGet, "/api/v1/recordings"+q.encode(), as, nil, opts)
	if err != nil || !r.ok() {
		return Page{}, err
	}
	return Page{Rows: r.list("rows"), Count: r.number("count")}, nil
}

// DeleteRecording deletes a recording with its tracks and tags.
func (s *Session) DeleteRecording(ctx context.Context, as string, id int, opts CheckOptions) error {
	_, err := s.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/recordings/%d", id), as, nil, opts)
	return err
}

// Track is a track to add to a recording.
type Track struct {
	Start float64        `json:"start"`
	End   float64        `json:"end"`
	Data  map[string]any `json:"data,omitempty"`
}

// AddTrack adds a track to a recording and returns its id.
func (s *Session) AddTrack(ctx context.Context, as string, recordingID int, t Track, opts CheckOptions) (int, error) {
	r, err := s.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/v1/recordings/%d/tracks", recordingID), as, t, opts)
	if err != nil || !r.ok() {
		return 0, err
	}
	return r.number("trackId"), nil
}

// GetTracks lists a recording's tracks with their tags.
func (s *Session) GetTracks(ctx context.Context, as string, recordingID int, opts CheckOptions) ([]any, error) {
	r, err := s.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/recordings/%d/tracks", recordingID), as, nil, opts)
	if err != nil || !r.ok() {
		return nil, err
	}
	tracks := r.list("tracks")
	if !opts.DoNotSort {
		tracks = sortTracks(tracks)
	}
	return tracks, nil
}

// Tag classifies a track.
type Tag struct {
	What       string         `json:"what"`
	Confidence float64        `json:"confidence"`
	Automatic  bool           `json:"automatic"`
	Data       map[string]any `json:"data,omitempty"`
}

// AddTrackTag tags a track and returns the tag id.
func (s *Session) AddTrackTag(ctx context.Context, as string, recordingID, trackID int, tag Tag, opts CheckOptions) (int, error) {
	path := fmt.Sprintf("/api/v1/recordings/%d/tracks/%d/tags", recordingID, trackID)
	r, err := s.doJSON(ctx, http.MethodPost, path, as, tag, opts)
	if err != nil || !r.ok() {
		return 0, err
	}
	return r.number("trackTagId"), nil
}

// DeleteTrackTag removes a tag from a track.
func (s *Session) DeleteTrackTag(ctx context.Context, as string, recordingID, trackID, tagID int, opts CheckOptions) error {
	path := fmt.Sprintf("/api/v1/recordings/%d/tracks/%d/tags/%d", recordingID, trackID, tagID)
	_, err := s.doJSON(ctx, http.MethodDelete, path, as, nil, opts)
	return err
}
