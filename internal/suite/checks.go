package suite

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wildwatch/apicheck/internal/apiclient"
	"github.com/wildwatch/apicheck/pkg/treecompare"
)

var none apiclient.CheckOptions

// stationsFrom is when every station the suite creates becomes active.
var stationsFrom = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

// world is the owner, group and device most checks start from. Keys are
// prefixed with the area so checks never share fixtures.
type world struct {
	owner  string
	group  string
	device string
}

func setup(ctx context.Context, s *apiclient.Session, area string) (world, error) {
	w := world{owner: area + "-owner", group: area + "-group", device: area + "-cam"}
	if _, err := s.CreateUser(ctx, w.owner, none); err != nil {
		return w, fmt.Errorf("creating user: %w", err)
	}
	if _, err := s.CreateGroup(ctx, w.owner, w.group, none); err != nil {
		return w, fmt.Errorf("creating group: %w", err)
	}
	if _, err := s.CreateDevice(ctx, w.device, w.group, none); err != nil {
		return w, fmt.Errorf("creating device: %w", err)
	}
	return w, nil
}

func upload(ctx context.Context, s *apiclient.Session, device string, meta apiclient.Upload, content string) (int, error) {
	res, err := s.UploadRecording(ctx, device, device, meta, []byte(content), none)
	if err != nil {
		return 0, fmt.Errorf("uploading recording: %w", err)
	}
	return res.RecordingID, nil
}

// expectStatus runs op and requires it to fail with status and, when given,
// exactly the messages listed.
func expectStatus(status int, msgs []string, op func() error) error {
	err := op()
	var se *apiclient.StatusError
	if !errors.As(err, &se) {
		return fmt.Errorf("expected status %d, got %v", status, err)
	}
	if se.StatusCode != status {
		return fmt.Errorf("expected status %d: %w", status, se)
	}
	if msgs != nil {
		if err := treecompare.Compare(msgs, se.Messages, nil); err != nil {
			return fmt.Errorf("messages: %w", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Users and groups
// ---------------------------------------------------------------------------

func checkUsers(ctx context.Context, s *apiclient.Session) error {
	created, err := s.CreateUser(ctx, "users-ranger", none)
	if err != nil {
		return err
	}
	again, err := s.Login(ctx, "users-ranger", none)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if again.ID != created.ID {
		return fmt.Errorf("login returned user %d, registration returned %d", again.ID, created.ID)
	}
	return expectStatus(http.StatusUnprocessableEntity, nil, func() error {
		_, err := s.CreateUser(ctx, "users-ranger", none)
		return err
	})
}

func checkGroups(ctx context.Context, s *apiclient.Session) error {
	w, err := setup(ctx, s, "groups")
	if err != nil {
		return err
	}
	owner, _ := s.User(w.owner)
	cam, _ := s.Device(w.device)

	group, err := s.GetGroup(ctx, w.owner, w.group, none)
	if err != nil {
		return err
	}
	return treecompare.Compare(map[string]any{
		"id":        treecompare.NotNullNumber,
		"groupName": s.GroupName(w.group, none),
		"users":     []any{map[string]any{"id": owner.ID, "userName": owner.Name, "admin": true}},
		"devices":   []any{map[string]any{"id": cam.ID, "deviceName": cam.Name}},
	}, group, nil)
}

func checkGroupAccess(ctx context.Context, s *apiclient.Session) error {
	w, err := setup(ctx, s, "access")
	if err != nil {
		return err
	}
	if _, err := s.CreateUser(ctx, "access-stranger", none); err != nil {
		return err
	}
	err = expectStatus(http.StatusForbidden, []string{"User is not a member of the group"}, func() error {
		_, err := s.GetGroup(ctx, "access-stranger", w.group, none)
		return err
	})
	if err != nil {
		return fmt.Errorf("stranger reading group: %w", err)
	}
	missing := s.Namer.Name("no-such-group")
	_, err = s.GetGroup(ctx, w.owner, missing, apiclient.CheckOptions{UseRawGroupName: true, ExpectStatus: http.StatusNotFound})
	return err
}

// ---------------------------------------------------------------------------
// Devices
// ---------------------------------------------------------------------------

func checkDevices(ctx context.Context, s *apiclient.Session) error {
	w, err := setup(ctx, s, "devices")
	if err != nil {
		return err
	}
	if _, err := s.CreateDevice(ctx, "devices-cam2", w.group, none); err != nil {
		return err
	}
	cam, _ := s.Device(w.device)
	cam2, _ := s.Device("devices-cam2")

	device, err := s.GetDevice(ctx, w.owner, w.device, none)
	if err != nil {
		return err
	}
	err = treecompare.CompareFlat(map[string]any{
		"id":         cam.ID,
		"deviceName": cam.Name,
		"groupName":  cam.Group,
		"active":     true,
	}, device, nil)
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}

	devices, err := s.ListDevices(ctx, w.owner, none)
	if err != nil {
		return err
	}
	expected := make([]any, 0, 2)
	for _, d := range []apiclient.Principal{cam, cam2} {
		expected = append(expected, map[string]any{
			"id":                 d.ID,
			"deviceName":         d.Name,
			"groupName":          d.Group,
			"active":             true,
			"type":               "thermal",
			"lastConnectionTime": treecompare.NotNullString,
		})
	}
	if err := treecompare.Compare(expected, devices, []string{"[].groupId", "[].createdAt"}); err != nil {
		return fmt.Errorf("device list: %w", err)
	}

	if _, err := s.CreateUser(ctx, "devices-stranger", none); err != nil {
		return err
	}
	return expectStatus(http.StatusForbidden, []string{"User does not have access to device"}, func() error {
		_, err := s.GetDevice(ctx, "devices-stranger", w.device, none)
		return err
	})
}

func checkDuplicateDevice(ctx context.Context, s *apiclient.Session) error {
	w, err := setup(ctx, s, "dupes")
	if err != nil {
		return err
	}
	err = expectStatus(http.StatusUnprocessableEntity, []string{"Device name in use"}, func() error {
		_, err := s.CreateDevice(ctx, w.device, w.group, none)
		return err
	})
	if err != nil {
		return fmt.Errorf("duplicate name: %w", err)
	}
	// the same name is fine in another group
	if _, err := s.CreateGroup(ctx, w.owner, "dupes-other", none); err != nil {
		return err
	}
	_, err = s.CreateDevice(ctx, w.device, "dupes-other", none)
	return err
}

// ---------------------------------------------------------------------------
// Stations
// ---------------------------------------------------------------------------

func checkStations(ctx context.Context, s *apiclient.Session) error {
	w, err := setup(ctx, s, "stations")
	if err != nil {
		return err
	}
	_, err = s.CreateStations(ctx, w.owner, w.group, []apiclient.Station{
		{Name: "ridge", Lat: -43.6, Lng: 172.7},
		{Name: "lake", Lat: -43.5, Lng: 172.6},
		{Name: "lake shore", Lat: -43.5001, Lng: 172.6},
	}, stationsFrom, apiclient.CheckOptions{
		Warnings: []string{`Stations too close together: "lake" and "lake shore"`},
	})
	if err != nil {
		return err
	}

	stations, err := s.GetStations(ctx, w.owner, w.group, none)
	if err != nil {
		return err
	}
	groupName := s.GroupName(w.group, none)
	station := func(name string, lat, lng float64) map[string]any {
		return map[string]any{
			"name":      name,
			"groupName": groupName,
			"location":  map[string]any{"lat": lat, "lng": lng},
			"activeAt":  stationsFrom.Format(time.RFC3339),
		}
	}
	return treecompare.Compare([]any{
		station("lake", -43.5, 172.6),
		station("lake shore", -43.5001, 172.6),
		station("ridge", -43.6, 172.7),
	}, stations, []string{"[].id", "[].groupId", "[].createdAt"})
}

func checkStationMatching(ctx context.Context, s *apiclient.Session) error {
	w, err := setup(ctx, s, "matching")
	if err != nil {
		return err
	}
	ids, err := s.CreateStations(ctx, w.owner, w.group, []apiclient.Station{{Name: "ridge", Lat: -43.6, Lng: 172.7}}, stationsFrom, none)
	if err != nil {
		return err
	}
	if len(ids) != 1 {
		return fmt.Errorf("expected one station id, got %v", ids)
	}

	tests := []struct {
		name    string
		when    string
		loc     apiclient.Location
		station int
	}{
		{"at the station", "2026-10-01T10:00:00Z", apiclient.Location{Lat: -43.6, Lng: 172.7}, ids[0]},
		{"far away", "2026-10-01T10:00:00Z", apiclient.Location{Lat: -41.3, Lng: 174.8}, 0},
		{"before the station existed", "2026-08-01T10:00:00Z", apiclient.Location{Lat: -43.6, Lng: 172.7}, 0},
	}
	for _, tt := range tests {
		loc := tt.loc
		res, err := s.UploadRecording(ctx, w.device, w.device, apiclient.Upload{
			Type:              "thermalRaw",
			RecordingDateTime: tt.when,
			Location:          &loc,
		}, []byte("frames"), none)
		if err != nil {
			return fmt.Errorf("%s: %w", tt.name, err)
		}
		if res.StationID != tt.station {
			return fmt.Errorf("%s: matched station %d, want %d", tt.name, res.StationID, tt.station)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Recordings
// ---------------------------------------------------------------------------

func checkRecordings(ctx context.Context, s *apiclient.Session) error {
	w, err := setup(ctx, s, "recordings")
	if err != nil {
		return err
	}
	cam, _ := s.Device(w.device)
	content := "thermal frames"
	sum := sha1.Sum([]byte(content))
	hash := hex.EncodeToString(sum[:])

	id, err := upload(ctx, s, w.device, apiclient.Upload{
		Type:               "thermalRaw",
		RecordingDateTime:  "2026-10-01T10:00:00Z",
		Duration:           20,
		FileHash:           hash,
		AdditionalMetadata: map[string]any{"firmware": "1.2"},
	}, content)
	if err != nil {
		return err
	}

	rec, err := s.GetRecording(ctx, w.owner, id, none)
	if err != nil {
		return err
	}
	err = treecompare.Compare(map[string]any{
		"id":                 id,
		"deviceId":           cam.ID,
		"deviceName":         cam.Name,
		"groupId":            treecompare.NotNullNumber,
		"groupName":          cam.Group,
		"type":               "thermalRaw",
		"recordingDateTime":  "2026-10-01T10:00:00Z",
		"duration":           20,
		"processingState":    "FINISHED",
		"fileHash":           hash,
		"fileSize":           len(content),
		"fileMimeType":       treecompare.NotNullString,
		"additionalMetadata": map[string]any{"firmware": "1.2"},
		"tracks":             []any{},
	}, rec, []string{".createdAt"})
	if err != nil {
		return fmt.Errorf("recording: %w", err)
	}

	return expectStatus(http.StatusUnprocessableEntity, []string{"Uploaded file integrity check failed"}, func() error {
		_, err := upload(ctx, s, w.device, apiclient.Upload{Type: "thermalRaw", FileHash: hash}, "other frames")
		return err
	})
}

func checkRecordingQuery(ctx context.Context, s *apiclient.Session) error {
	w, err := setup(ctx, s, "query")
	if err != nil {
		return err
	}
	if _, err := s.CreateDevice(ctx, "query-mic", w.group, none); err != nil {
		return err
	}
	cam, _ := s.Device(w.device)

	var audio int
	for _, u := range []struct {
		device, typ string
	}{
		{w.device, "thermalRaw"},
		{w.device, "audio"},
		{"query-mic", "audio"},
	} {
		id, err := upload(ctx, s, u.device, apiclient.Upload{Type: u.typ}, "samples")
		if err != nil {
			return err
		}
		if u.device == w.device && u.typ == "audio" {
			audio = id
		}
	}

	tests := []struct {
		name      string
		query     apiclient.RecordingQuery
		wantCount int
		wantRows  int
	}{
		{"by device", apiclient.RecordingQuery{DeviceID: cam.ID}, 2, 2},
		{"by device and type", apiclient.RecordingQuery{DeviceID: cam.ID, Type: "audio"}, 1, 1},
		{"limited", apiclient.RecordingQuery{DeviceID: cam.ID, Limit: 1}, 2, 1},
		{"past the end", apiclient.RecordingQuery{DeviceID: cam.ID, Offset: 5}, 2, 0},
	}
	for _, tt := range tests {
		page, err := s.QueryRecordings(ctx, w.owner, tt.query, none)
		if err != nil {
			return fmt.Errorf("%s: %w", tt.name, err)
		}
		if page.Count != tt.wantCount || len(page.Rows) != tt.wantRows {
			return fmt.Errorf("%s: got count %d with %d rows, want %d with %d", tt.name, page.Count, len(page.Rows), tt.wantCount, tt.wantRows)
		}
	}

	page, err := s.QueryRecordings(ctx, w.owner, apiclient.RecordingQuery{DeviceID: cam.ID, Type: "audio"}, none)
	if err != nil {
		return err
	}
	return treecompare.CompareFlat(map[string]any{"id": audio, "type": "audio", "deviceId": cam.ID}, page.Rows[0], nil)
}

func checkDeleteRecording(ctx context.Context, s *apiclient.Session) error {
	w, err := setup(ctx, s, "delete")
	if err != nil {
		return err
	}
	id, err := upload(ctx, s, w.device, apiclient.Upload{Type: "audio"}, "samples")
	if err != nil {
		return err
	}
	if err := s.DeleteRecording(ctx, w.owner, id, none); err != nil {
		return err
	}
	if _, err := s.GetRecording(ctx, w.owner, id, apiclient.CheckOptions{ExpectStatus: http.StatusNotFound}); err != nil {
		return fmt.Errorf("reading deleted recording: %w", err)
	}
	return s.DeleteRecording(ctx, w.owner, id, apiclient.CheckOptions{ExpectStatus: http.StatusNotFound})
}

// ---------------------------------------------------------------------------
// Tracks and tags
// ---------------------------------------------------------------------------

func checkTracks(ctx context.Context, s *apiclient.Session) error {
	w, err := setup(ctx, s, "tracks")
	if err != nil {
		return err
	}
	owner, _ := s.User(w.owner)
	rec, err := upload(ctx, s, w.device, apiclient.Upload{Type: "thermalRaw", Duration: 20}, "frames")
	if err != nil {
		return err
	}

	late, err := s.AddTrack(ctx, w.owner, rec, apiclient.Track{Start: 8, End: 12}, none)
	if err != nil {
		return err
	}
	early, err := s.AddTrack(ctx, w.owner, rec, apiclient.Track{Start: 1, End: 3}, none)
	if err != nil {
		return err
	}
	tagIDs := make(map[string]int)
	for _, what := range []string{"rat", "possum"} {
		id, err := s.AddTrackTag(ctx, w.owner, rec, early, apiclient.Tag{What: what, Confidence: 0.9}, none)
		if err != nil {
			return err
		}
		tagIDs[what] = id
	}

	tag := func(what string) map[string]any {
		return map[string]any{
			"id":         tagIDs[what],
			"trackId":    early,
			"what":       what,
			"confidence": 0.9,
			"automatic":  false,
			"userId":     owner.ID,
		}
	}
	track := func(id int, start, end float64, tags ...any) map[string]any {
		if tags == nil {
			tags = []any{}
		}
		return map[string]any{"id": id, "recordingId": rec, "start": start, "end": end, "tags": tags}
	}
	exclusions := []string{"[].createdAt", "[].tags[].createdAt"}

	tracks, err := s.GetTracks(ctx, w.owner, rec, none)
	if err != nil {
		return err
	}
	err = treecompare.Compare([]any{
		track(early, 1, 3, tag("possum"), tag("rat")),
		track(late, 8, 12),
	}, tracks, exclusions)
	if err != nil {
		return fmt.Errorf("tracks: %w", err)
	}

	if err := s.DeleteTrackTag(ctx, w.owner, rec, early, tagIDs["rat"], none); err != nil {
		return err
	}
	tracks, err = s.GetTracks(ctx, w.owner, rec, none)
	if err != nil {
		return err
	}
	if err := treecompare.Compare([]any{track(early, 1, 3, tag("possum")), track(late, 8, 12)}, tracks, exclusions); err != nil {
		return fmt.Errorf("tracks after deleting a tag: %w", err)
	}
	return s.DeleteTrackTag(ctx, w.owner, rec, early, tagIDs["rat"], apiclient.CheckOptions{ExpectStatus: http.StatusNotFound})
}

func checkTrackBounds(ctx context.Context, s *apiclient.Session) error {
	w, err := setup(ctx, s, "bounds")
	if err != nil {
		return err
	}
	rec, err := upload(ctx, s, w.device, apiclient.Upload{Type: "thermalRaw", Duration: 10}, "frames")
	if err != nil {
		return err
	}
	return expectStatus(http.StatusUnprocessableEntity, []string{"Track ends after the recording"}, func() error {
		_, err := s.AddTrack(ctx, w.owner, rec, apiclient.Track{Start: 5, End: 12}, none)
		return err
	})
}

// ---------------------------------------------------------------------------
// Alerts and events
// ---------------------------------------------------------------------------

func checkAlerts(ctx context.Context, s *apiclient.Session) error {
	w, err := setup(ctx, s, "alerts")
	if err != nil {
		return err
	}
	owner, _ := s.User(w.owner)
	cam, _ := s.Device(w.device)

	never := 0
	alertIDs := make(map[string]int)
	for _, what := range []string{"possum", "rat"} {
		id, err := s.CreateAlert(ctx, w.owner, w.device, apiclient.Alert{
			Name:             what + "s",
			Conditions:       []apiclient.AlertCondition{{Tag: what, Automatic: true}},
			FrequencySeconds: &never,
		}, none)
		if err != nil {
			return err
		}
		alertIDs[what] = id
	}

	rec, err := upload(ctx, s, w.device, apiclient.Upload{Type: "thermalRaw"}, "frames")
	if err != nil {
		return err
	}
	track, err := s.AddTrack(ctx, w.owner, rec, apiclient.Track{Start: 0, End: 1}, none)
	if err != nil {
		return err
	}
	if _, err := s.AddTrackTag(ctx, w.owner, rec, track, apiclient.Tag{What: "possum", Confidence: 0.8, Automatic: true}, none); err != nil {
		return err
	}

	alert := func(what string) map[string]any {
		return map[string]any{
			"id":               alertIDs[what],
			"name":             what + "s",
			"userId":           owner.ID,
			"deviceId":         cam.ID,
			"conditions":       []any{map[string]any{"tag": what, "automatic": true}},
			"frequencySeconds": 0,
			"createdAt":        treecompare.NotNullString,
		}
	}
	fired := alert("possum")
	fired["lastAlert"] = treecompare.NotNullString

	alerts, err := s.GetAlerts(ctx, w.owner, w.device, none)
	if err != nil {
		return err
	}
	return treecompare.Compare([]any{fired, alert("rat")}, alerts, nil)
}

func checkEvents(ctx context.Context, s *apiclient.Session) error {
	w, err := setup(ctx, s, "events")
	if err != nil {
		return err
	}
	cam, _ := s.Device(w.device)
	times := []time.Time{
		time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 3, 10, 0, 0, 0, time.UTC),
	}

	bait, err := s.AddEvent(ctx, w.device, w.device, apiclient.Event{
		Type:    "audioBait",
		Details: map[string]any{"volume": 8},
	}, times[:2], none)
	if err != nil {
		return err
	}
	if _, err := s.AddEvent(ctx, w.owner, w.device, apiclient.Event{Type: "powerOn"}, times[2:], none); err != nil {
		return err
	}

	page, err := s.QueryEvents(ctx, w.owner, apiclient.EventQuery{DeviceID: cam.ID, Type: "audioBait"}, none)
	if err != nil {
		return err
	}
	expected := make([]any, 0, len(bait))
	for i, id := range bait {
		expected = append(expected, map[string]any{
			"id":        id,
			"deviceId":  cam.ID,
			"eventType": "audioBait",
			"dateTime":  times[i].Format(time.RFC3339),
			"details":   map[string]any{"volume": 8},
		})
	}
	if err := treecompare.Compare(expected, page.Rows, []string{"[].createdAt"}); err != nil {
		return fmt.Errorf("audio bait events: %w", err)
	}

	page, err = s.QueryEvents(ctx, w.owner, apiclient.EventQuery{DeviceID: cam.ID, Start: times[1]}, none)
	if err != nil {
		return err
	}
	if page.Count != 2 {
		return fmt.Errorf("events since %s: got %d, want 2", times[1].Format(time.RFC3339), page.Count)
	}
	return nil
}
