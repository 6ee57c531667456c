package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wildwatch/apicheck/internal/wildtwin"
	"github.com/wildwatch/apicheck/pkg/testutil"
	"github.com/wildwatch/apicheck/pkg/twincore"
	"github.com/wildwatch/apicheck/pkg/treecompare"
)

func setup(t *testing.T) *testutil.TwinClient {
	t.Helper()
	srv, err := wildtwin.New(&twincore.Config{Name: "wildtwin-test", JWTSecret: "test-secret", LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return testutil.NewTwinClient(t, ts)
}

type account struct {
	id    int
	token string
	c     *testutil.TwinClient
}

func newUser(t *testing.T, tc *testutil.TwinClient, name string) account {
	t.Helper()
	resp := tc.Post("/api/v1/users", map[string]string{
		"userName": name,
		"email":    name + "@example.org",
		"password": "password123",
	}).AssertStatus(http.StatusOK)
	token := resp.Field("token").(string)
	id := int(resp.Field("userData").(map[string]any)["id"].(float64))
	return account{id: id, token: token, c: tc.WithToken(token)}
}

func newGroup(t *testing.T, user account, name string) int {
	t.Helper()
	return user.c.Post("/api/v1/groups", map[string]string{"groupName": name}).
		AssertStatus(http.StatusOK).ID("groupId")
}

func newDevice(t *testing.T, tc *testutil.TwinClient, group, name string) account {
	t.Helper()
	resp := tc.Post("/api/v1/devices", map[string]string{
		"deviceName": name,
		"group":      group,
		"password":   "password123",
	}).AssertStatus(http.StatusOK)
	token := resp.Field("token").(string)
	return account{id: resp.ID("id"), token: token, c: tc.WithToken(token)}
}

func multipartBody(t *testing.T, data map[string]any, content []byte) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "clip.cptv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(content)
	meta, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	mw.WriteField("data", string(meta))
	mw.Close()
	return mw.FormDataContentType(), buf.Bytes()
}

func upload(t *testing.T, c *testutil.TwinClient, deviceID int, data map[string]any) *testutil.Response {
	t.Helper()
	ct, body := multipartBody(t, data, []byte("hello possum"))
	return c.PostRaw(fmt.Sprintf("/api/v1/recordings/device/%d", deviceID), ct, body)
}

// ---------------------------------------------------------------------------
// Users and auth
// ---------------------------------------------------------------------------

func TestCreateUser(t *testing.T) {
	tc := setup(t)
	newUser(t, tc, "ranger")

	tests := []struct {
		name    string
		body    map[string]string
		status  int
		message string
	}{
		{"duplicate name", map[string]string{"userName": "ranger", "email": "other@example.org", "password": "password123"}, 422, "Username in use"},
		{"duplicate email", map[string]string{"userName": "other", "email": "RANGER@example.org", "password": "password123"}, 422, "Email address in use"},
		{"bad email", map[string]string{"userName": "other", "email": "nope", "password": "password123"}, 422, "email must be an email address"},
		{"short password", map[string]string{"userName": "other", "email": "o@example.org", "password": "short"}, 422, "password must be at least 8"},
		{"missing name", map[string]string{"email": "o@example.org", "password": "password123"}, 422, "userName is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc.Post("/api/v1/users", tt.body).
				AssertStatus(tt.status).
				AssertBodyContains(tt.message).
				AssertFlat("", map[string]any{"success": false, "errorType": "client"})
		})
	}
}

func TestAuthenticateUser(t *testing.T) {
	tc := setup(t)
	user := newUser(t, tc, "ranger")

	resp := tc.Post("/api/v1/users/authenticate", map[string]string{"email": "ranger@example.org", "password": "password123"})
	resp.AssertStatus(http.StatusOK).AssertTree("userData", map[string]any{
		"id":               user.id,
		"userName":         "ranger",
		"email":            "ranger@example.org",
		"globalPermission": "off",
	})

	tc.Post("/api/v1/users/authenticate", map[string]string{"userName": "ranger", "password": "wrong-password"}).
		AssertStatus(http.StatusUnauthorized)
	tc.Post("/api/v1/users/authenticate", map[string]string{"password": "password123"}).
		AssertStatus(http.StatusUnprocessableEntity)
}

func TestAuthRequired(t *testing.T) {
	tc := setup(t)
	newUser(t, tc, "ranger")

	tc.Get("/api/v1/devices").AssertStatus(http.StatusUnauthorized)
	tc.WithToken("not-a-jwt").Get("/api/v1/devices").AssertStatus(http.StatusUnauthorized)
	tc.DoWithHeaders("GET", "/api/v1/devices", nil, map[string]string{"Authorization": "Basic abc"}).
		AssertStatus(http.StatusUnauthorized)
}

func TestDeviceTokenRejectedOnUserRoutes(t *testing.T) {
	tc := setup(t)
	user := newUser(t, tc, "ranger")
	newGroup(t, user, "forest")
	device := newDevice(t, tc, "forest", "cam-1")

	device.c.Get("/api/v1/devices").AssertStatus(http.StatusForbidden)
}

func TestTokensExpireWithSimulatedClock(t *testing.T) {
	tc := setup(t)
	user := newUser(t, tc, "ranger")
	user.c.Get("/api/v1/devices").AssertStatus(http.StatusOK)

	testutil.NewAdminClient(tc).AdvanceTime("200h").AssertStatus(http.StatusOK)
	user.c.Get("/api/v1/devices").AssertStatus(http.StatusUnauthorized)
}

// ---------------------------------------------------------------------------
// Groups, devices, stations
// ---------------------------------------------------------------------------

func TestGroupsAndDevices(t *testing.T) {
	tc := setup(t)
	owner := newUser(t, tc, "ranger")
	stranger := newUser(t, tc, "stranger")
	groupID := newGroup(t, owner, "forest")

	owner.c.Post("/api/v1/groups", map[string]string{"groupName": "forest"}).
		AssertStatus(http.StatusUnprocessableEntity).AssertBodyContains("Group name in use")

	device := newDevice(t, tc, "forest", "cam-1")
	tc.Post("/api/v1/devices", map[string]string{"deviceName": "cam-1", "group": "forest", "password": "password123"}).
		AssertStatus(http.StatusUnprocessableEntity).AssertBodyContains("Device name in use")
	tc.Post("/api/v1/devices", map[string]string{"deviceName": "cam-2", "group": "lake", "password": "password123"}).
		AssertStatus(http.StatusUnprocessableEntity).AssertBodyContains("does not exist")

	owner.c.Get("/api/v1/groups/forest").AssertStatus(http.StatusOK).AssertTree("group", map[string]any{
		"id":        groupID,
		"groupName": "forest",
		"users":     []any{map[string]any{"id": owner.id, "userName": "ranger", "admin": true}},
		"devices":   []any{map[string]any{"id": device.id, "deviceName": "cam-1"}},
	})
	stranger.c.Get("/api/v1/groups/forest").AssertStatus(http.StatusForbidden)
	owner.c.Get("/api/v1/groups/lake").AssertStatus(http.StatusNotFound)

	owner.c.Get(fmt.Sprintf("/api/v1/devices/%d", device.id)).
		AssertStatus(http.StatusOK).
		AssertFlat("device", map[string]any{
			"id":         device.id,
			"deviceName": "cam-1",
			"groupName":  "forest",
			"active":     true,
			"type":       "thermal",
		})
	if body := string(owner.c.Get("/api/v1/devices").Body); strings.Contains(body, "passwordHash") {
		t.Errorf("device listing leaked password hash: %s", body)
	}
	stranger.c.Get(fmt.Sprintf("/api/v1/devices/%d", device.id)).AssertStatus(http.StatusForbidden)
	stranger.c.Get("/api/v1/devices").AssertTree("devices", []any{})
	owner.c.Get("/api/v1/devices/999").AssertStatus(http.StatusNotFound)
	owner.c.Get("/api/v1/devices/abc").AssertStatus(http.StatusUnprocessableEntity)
}

func TestStations(t *testing.T) {
	tc := setup(t)
	owner := newUser(t, tc, "ranger")
	newGroup(t, owner, "forest")

	resp := owner.c.Post("/api/v1/groups/forest/stations", map[string]any{
		"stations": []map[string]any{
			{"name": "lake", "lat": -43.5, "lng": 172.6},
			{"name": "lake shore", "lat": -43.5001, "lng": 172.6},
			{"name": "ridge", "lat": -43.6, "lng": 172.7},
		},
		"fromDate": "2026-09-01T00:00:00Z",
	}).AssertStatus(http.StatusOK)
	resp.AssertTree("warnings", []any{`Stations too close together: "lake" and "lake shore"`})
	ids := resp.Field("stationIdsAddedOrUpdated").([]any)
	if len(ids) != 3 {
		t.Fatalf("expected 3 station ids, got %v", ids)
	}

	// renaming by position: same name moves the station
	moved := owner.c.Post("/api/v1/groups/forest/stations", map[string]any{
		"stations": []map[string]any{{"name": "lake shore", "lat": -43.55, "lng": 172.6}},
	}).AssertStatus(http.StatusOK)
	moved.AssertTree("stationIdsAddedOrUpdated", []any{ids[1]})
	if _, ok := moved.JSONMap()["warnings"]; ok {
		t.Error("expected no warnings once stations are spread out")
	}

	owner.c.Get("/api/v1/groups/forest/stations").AssertStatus(http.StatusOK).AssertTree("stations", []any{
		map[string]any{"name": "lake", "location": map[string]any{"lat": -43.5, "lng": 172.6}},
		map[string]any{"name": "lake shore", "location": map[string]any{"lat": -43.55, "lng": 172.6}},
		map[string]any{"name": "ridge", "location": map[string]any{"lat": -43.6, "lng": 172.7}},
	}, "[].id", "[].groupId", "[].groupName", "[].activeAt", "[].createdAt")

	owner.c.Post("/api/v1/groups/forest/stations", map[string]any{"stations": []any{}}).
		AssertStatus(http.StatusUnprocessableEntity)
	owner.c.Post("/api/v1/groups/forest/stations", map[string]any{
		"stations": []map[string]any{{"name": "pole", "lat": 91, "lng": 0}},
	}).AssertStatus(http.StatusUnprocessableEntity).AssertBodyContains("stations[0].lat")
}

// ---------------------------------------------------------------------------
// Recordings, tracks and tags
// ---------------------------------------------------------------------------

func TestRecordingLifecycle(t *testing.T) {
	tc := setup(t)
	owner := newUser(t, tc, "ranger")
	newGroup(t, owner, "forest")
	device := newDevice(t, tc, "forest", "cam-1")
	stationID := owner.c.Post("/api/v1/groups/forest/stations", map[string]any{
		"stations": []map[string]any{{"name": "lake", "lat": -43.5, "lng": 172.6}},
		"fromDate": "2026-09-01T00:00:00Z",
	}).Field("stationIdsAddedOrUpdated").([]any)[0]

	up := upload(t, device.c, device.id, map[string]any{
		"type":               "thermalRaw",
		"recordingDateTime":  "2026-10-01T10:00:00Z",
		"duration":           30,
		"location":           map[string]any{"lat": -43.5, "lng": 172.6},
		"additionalMetadata": map[string]any{"batteryLevel": 87},
	}).AssertStatus(http.StatusOK)
	up.AssertFlat("", map[string]any{"stationId": stationID, "messages": []any{"Thanks for the recording!"}})
	recID := up.ID("recordingId")
	recPath := fmt.Sprintf("/api/v1/recordings/%d", recID)

	trackID := owner.c.Post(recPath+"/tracks", map[string]any{"start": 1, "end": 4.5, "data": map[string]any{"positions": 3}}).
		AssertStatus(http.StatusOK).ID("trackId")
	tagPath := fmt.Sprintf("%s/tracks/%d/tags", recPath, trackID)
	autoTag := owner.c.Post(tagPath, map[string]any{"what": "possum", "confidence": 0.9, "automatic": true}).
		AssertStatus(http.StatusOK).ID("trackTagId")
	manualTag := owner.c.Post(tagPath, map[string]any{"what": "cat", "confidence": 1}).
		AssertStatus(http.StatusOK).ID("trackTagId")

	expected := map[string]any{
		"id":                 recID,
		"deviceId":           device.id,
		"deviceName":         "cam-1",
		"groupId":            treecompare.NotNullNumber,
		"groupName":          "forest",
		"stationId":          stationID,
		"stationName":        "lake",
		"type":               "thermalRaw",
		"recordingDateTime":  "2026-10-01T10:00:00Z",
		"duration":           30,
		"location":           map[string]any{"lat": -43.5, "lng": 172.6},
		"processingState":    "FINISHED",
		"fileHash":           treecompare.NotNullString,
		"fileSize":           len("hello possum"),
		"fileMimeType":       treecompare.NotNullString,
		"additionalMetadata": map[string]any{"batteryLevel": 87},
		"tracks": []any{map[string]any{
			"id":          trackID,
			"recordingId": recID,
			"start":       1,
			"end":         4.5,
			"data":        map[string]any{"positions": 3},
			"tags": []any{
				map[string]any{"id": autoTag, "trackId": trackID, "what": "possum", "confidence": 0.9, "automatic": true},
				map[string]any{"id": manualTag, "trackId": trackID, "what": "cat", "confidence": 1, "automatic": false, "userId": owner.id},
			},
		}},
	}
	owner.c.Get(recPath).AssertStatus(http.StatusOK).
		AssertTree("recording", expected, ".createdAt", ".tracks[].createdAt", ".tracks[].tags[].createdAt")

	// delete the manual tag and check via the tracks endpoint
	owner.c.Delete(fmt.Sprintf("%s/%d", tagPath, manualTag)).AssertStatus(http.StatusOK)
	owner.c.Delete(fmt.Sprintf("%s/%d", tagPath, manualTag)).AssertStatus(http.StatusNotFound)
	owner.c.Get(recPath+"/tracks").AssertTree("tracks", []any{map[string]any{
		"id":   trackID,
		"tags": []any{map[string]any{"what": "possum"}},
	}}, "[].recordingId", "[].start", "[].end", "[].data", "[].createdAt",
		"[].tags[].id", "[].tags[].trackId", "[].tags[].confidence", "[].tags[].automatic", "[].tags[].createdAt")

	stranger := newUser(t, tc, "stranger")
	stranger.c.Get(recPath).AssertStatus(http.StatusForbidden)

	owner.c.Delete(recPath).AssertStatus(http.StatusOK)
	owner.c.Get(recPath).AssertStatus(http.StatusNotFound)
	owner.c.Post(recPath+"/tracks", map[string]any{"start": 0, "end": 1}).AssertStatus(http.StatusNotFound)
}

func TestTrackValidation(t *testing.T) {
	tc := setup(t)
	owner := newUser(t, tc, "ranger")
	newGroup(t, owner, "forest")
	device := newDevice(t, tc, "forest", "cam-1")
	recID := upload(t, owner.c, device.id, map[string]any{"type": "thermalRaw", "duration": 10}).
		AssertStatus(http.StatusOK).ID("recordingId")
	recPath := fmt.Sprintf("/api/v1/recordings/%d", recID)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"end before start", map[string]any{"start": 5, "end": 2}},
		{"negative start", map[string]any{"start": -1, "end": 2}},
		{"past the recording", map[string]any{"start": 5, "end": 11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner.c.Post(recPath+"/tracks", tt.body).AssertStatus(http.StatusUnprocessableEntity)
		})
	}

	trackID := owner.c.Post(recPath+"/tracks", map[string]any{"start": 0, "end": 10}).ID("trackId")
	owner.c.Post(fmt.Sprintf("%s/tracks/%d/tags", recPath, trackID), map[string]any{"what": "possum", "confidence": 2}).
		AssertStatus(http.StatusUnprocessableEntity).AssertBodyContains("confidence must be at most 1")
	owner.c.Post(fmt.Sprintf("%s/tracks/%d/tags", recPath, trackID+100), map[string]any{"what": "possum"}).
		AssertStatus(http.StatusNotFound)
}

func TestUploadValidation(t *testing.T) {
	tc := setup(t)
	owner := newUser(t, tc, "ranger")
	newGroup(t, owner, "forest")
	device := newDevice(t, tc, "forest", "cam-1")
	other := newDevice(t, tc, "forest", "cam-2")

	upload(t, device.c, device.id, map[string]any{"type": "video"}).
		AssertStatus(http.StatusUnprocessableEntity).AssertBodyContains("type must be one of")
	upload(t, device.c, device.id, map[string]any{"type": "audio", "fileHash": "0000000000000000000000000000000000000000"}).
		AssertStatus(http.StatusUnprocessableEntity).AssertBodyContains("integrity check failed")
	upload(t, device.c, other.id, map[string]any{"type": "audio"}).
		AssertStatus(http.StatusForbidden)
	device.c.Post(fmt.Sprintf("/api/v1/recordings/device/%d", device.id), map[string]any{"type": "audio"}).
		AssertStatus(http.StatusBadRequest)
}

func TestQueryRecordings(t *testing.T) {
	tc := setup(t)
	owner := newUser(t, tc, "ranger")
	newGroup(t, owner, "forest")
	cam := newDevice(t, tc, "forest", "cam-1")
	mic := newDevice(t, tc, "forest", "mic-1")

	first := upload(t, cam.c, cam.id, map[string]any{"type": "thermalRaw", "duration": 10}).ID("recordingId")
	upload(t, mic.c, mic.id, map[string]any{"type": "audio", "duration": 60}).AssertStatus(http.StatusOK)
	upload(t, cam.c, cam.id, map[string]any{"type": "thermalRaw", "duration": 10}).AssertStatus(http.StatusOK)

	trackID := owner.c.Post(fmt.Sprintf("/api/v1/recordings/%d/tracks", first), map[string]any{"start": 0, "end": 2}).ID("trackId")
	owner.c.Post(fmt.Sprintf("/api/v1/recordings/%d/tracks/%d/tags", first, trackID), map[string]any{"what": "possum"}).
		AssertStatus(http.StatusOK)

	tests := []struct {
		query     string
		wantCount int
		wantRows  int
	}{
		{"", 3, 3},
		{"?type=audio", 1, 1},
		{fmt.Sprintf("?deviceId=%d", cam.id), 2, 2},
		{"?tagged=possum", 1, 1},
		{"?limit=2", 3, 2},
		{"?offset=2&limit=2", 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := owner.c.Get("/api/v1/recordings" + tt.query).AssertStatus(http.StatusOK)
			if got := resp.ID("count"); got != tt.wantCount {
				t.Errorf("count = %d, want %d", got, tt.wantCount)
			}
			if rows := resp.Field("rows").([]any); len(rows) != tt.wantRows {
				t.Errorf("len(rows) = %d, want %d", len(rows), tt.wantRows)
			}
		})
	}

	owner.c.Get("/api/v1/recordings?limit=5000").AssertStatus(http.StatusUnprocessableEntity)
	newUser(t, tc, "stranger").c.Get("/api/v1/recordings").AssertFlat("", map[string]any{"count": 0, "rows": []any{}})
}

// ---------------------------------------------------------------------------
// Alerts and events
// ---------------------------------------------------------------------------

func TestAlertsFireOnMatchingTag(t *testing.T) {
	tc := setup(t)
	owner := newUser(t, tc, "ranger")
	newGroup(t, owner, "forest")
	device := newDevice(t, tc, "forest", "cam-1")

	alertID := owner.c.Post("/api/v1/alerts", map[string]any{
		"name":             "possums",
		"deviceId":         device.id,
		"conditions":       []map[string]any{{"tag": "possum", "automatic": true}},
		"frequencySeconds": 0,
	}).AssertStatus(http.StatusOK).ID("id")

	alertPath := fmt.Sprintf("/api/v1/alerts/device/%d", device.id)
	expected := []any{map[string]any{
		"id":               alertID,
		"name":             "possums",
		"userId":           owner.id,
		"deviceId":         device.id,
		"conditions":       []any{map[string]any{"tag": "possum", "automatic": true}},
		"frequencySeconds": 0,
		"createdAt":        treecompare.NotNullString,
	}}
	owner.c.Get(alertPath).AssertStatus(http.StatusOK).AssertTree("alerts", expected)

	recID := upload(t, device.c, device.id, map[string]any{"type": "thermalRaw"}).ID("recordingId")
	trackID := owner.c.Post(fmt.Sprintf("/api/v1/recordings/%d/tracks", recID), map[string]any{"start": 0, "end": 1}).ID("trackId")
	owner.c.Post(fmt.Sprintf("/api/v1/recordings/%d/tracks/%d/tags", recID, trackID), map[string]any{"what": "possum", "automatic": true}).
		AssertStatus(http.StatusOK)

	expected[0].(map[string]any)["lastAlert"] = treecompare.NotNullString
	owner.c.Get(alertPath).AssertTree("alerts", expected)

	newUser(t, tc, "stranger").c.Get(alertPath).AssertStatus(http.StatusForbidden)
	owner.c.Post("/api/v1/alerts", map[string]any{"name": "x", "deviceId": device.id, "conditions": []any{}}).
		AssertStatus(http.StatusUnprocessableEntity)
}

func TestEvents(t *testing.T) {
	tc := setup(t)
	owner := newUser(t, tc, "ranger")
	newGroup(t, owner, "forest")
	device := newDevice(t, tc, "forest", "cam-1")

	device.c.Post("/api/v1/events", map[string]any{
		"description": map[string]any{"type": "audioBait", "details": map[string]any{"volume": 8}},
		"dateTimes":   []string{"2026-10-01T10:00:00Z", "2026-10-02T10:00:00Z"},
	}).AssertStatus(http.StatusOK).AssertFlat("", map[string]any{"eventsAdded": 2})
	owner.c.Post("/api/v1/events", map[string]any{
		"deviceId":    device.id,
		"description": map[string]any{"type": "powerOn"},
		"dateTimes":   []string{"2026-10-03T10:00:00Z"},
	}).AssertStatus(http.StatusOK)

	owner.c.Post("/api/v1/events", map[string]any{
		"description": map[string]any{"type": "powerOn"},
		"dateTimes":   []string{"2026-10-03T10:00:00Z"},
	}).AssertStatus(http.StatusUnprocessableEntity).AssertBodyContains("deviceId is required")
	device.c.Post("/api/v1/events", map[string]any{
		"description": map[string]any{},
		"dateTimes":   []string{"2026-10-03T10:00:00Z"},
	}).AssertStatus(http.StatusUnprocessableEntity).AssertBodyContains("description.type is required")

	resp := owner.c.Get(fmt.Sprintf("/api/v1/events?deviceId=%d&type=audioBait&startTime=2026-10-02T00:00:00Z", device.id))
	resp.AssertStatus(http.StatusOK).AssertTree("rows", []any{map[string]any{
		"id":        treecompare.NotNullNumber,
		"deviceId":  device.id,
		"eventType": "audioBait",
		"dateTime":  "2026-10-02T10:00:00Z",
		"details":   map[string]any{"volume": 8},
		"createdAt": treecompare.NotNullString,
	}})

	if got := owner.c.Get("/api/v1/events?endTime=2026-10-03T00:00:00Z").ID("count"); got != 2 {
		t.Errorf("expected 2 events before Oct 3, got %d", got)
	}
	owner.c.Get("/api/v1/events?startTime=yesterday").AssertStatus(http.StatusUnprocessableEntity)
}

// ---------------------------------------------------------------------------
// Fault injection
// ---------------------------------------------------------------------------

func TestFaultInjectionOnAPI(t *testing.T) {
	tc := setup(t)
	owner := newUser(t, tc, "ranger")
	ac := testutil.NewAdminClient(tc)

	ac.InjectFault("/api/v1/devices", map[string]any{"status_code": 503, "message": "maintenance"}).
		AssertStatus(http.StatusOK)
	owner.c.Get("/api/v1/devices").AssertStatus(http.StatusServiceUnavailable).AssertBodyContains("maintenance")
	ac.Health().AssertStatus(http.StatusOK)

	ac.Reset().AssertStatus(http.StatusOK)
	// reset also clears users, so the old token no longer resolves
	owner.c.Get("/api/v1/devices").AssertStatus(http.StatusUnauthorized)
}
