// Package store defines the wildlife API's state types and its in-memory
// backing store.
package store

import "time"

// Global permission levels for users.
const (
	PermissionOff   = "off"
	PermissionRead  = "read"
	PermissionWrite = "write"
)

// Recording types.
const (
	RecordingThermal = "thermalRaw"
	RecordingAudio   = "audio"
)

// Processing states. Uploaded recordings start in FINISHED since the fake
// API runs no processing pipeline.
const (
	ProcessingFinished = "FINISHED"
)

// User is an API account.
type User struct {
	ID               int       `json:"id"`
	UserName         string    `json:"userName"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"passwordHash,omitempty"`
	GlobalPermission string    `json:"globalPermission"`
	CreatedAt        time.Time `json:"createdAt"`
}

// IsSuperUser reports whether u may read and write every group.
func (u User) IsSuperUser() bool {
	return u.GlobalPermission == PermissionWrite
}

// GroupMember links a user to a group.
type GroupMember struct {
	UserID int  `json:"userId"`
	Admin  bool `json:"admin"`
}

// Group owns devices and stations.
type Group struct {
	ID        int           `json:"id"`
	GroupName string        `json:"groupName"`
	Members   []GroupMember `json:"members"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Device is a recorder registered to a group.
type Device struct {
	ID                 int        `json:"id"`
	DeviceName         string     `json:"deviceName"`
	GroupID            int        `json:"groupId"`
	GroupName          string     `json:"groupName"`
	PasswordHash       string     `json:"passwordHash,omitempty"`
	Active             bool       `json:"active"`
	Type               string     `json:"type"`
	LastRecordingTime  *time.Time `json:"lastRecordingTime,omitempty"`
	LastConnectionTime *time.Time `json:"lastConnectionTime,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Station is a named location recordings get matched to.
type Station struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	GroupID   int        `json:"groupId"`
	GroupName string     `json:"groupName"`
	Location  Location   `json:"location"`
	ActiveAt  time.Time  `json:"activeAt"`
	RetiredAt *time.Time `json:"retiredAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Recording is an uploaded thermal video or audio clip.
type Recording struct {
	ID                 int            `json:"id"`
	DeviceID           int            `json:"deviceId"`
	DeviceName         string         `json:"deviceName"`
	GroupID            int            `json:"groupId"`
	GroupName          string         `json:"groupName"`
	StationID          *int           `json:"stationId,omitempty"`
	StationName        string         `json:"stationName,omitempty"`
	Type               string         `json:"type"`
	RecordingDateTime  time.Time      `json:"recordingDateTime"`
	Duration           float64        `json:"duration"`
	Location           *Location      `json:"location,omitempty"`
	ProcessingState    string         `json:"processingState"`
	FileHash           string         `json:"fileHash"`
	FileSize           int            `json:"fileSize"`
	FileMimeType       string         `json:"fileMimeType"`
	AdditionalMetadata map[string]any `json:"additionalMetadata,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
}

// Track is one detected animal path within a recording.
type Track struct {
	ID          int            `json:"id"`
	RecordingID int            `json:"recordingId"`
	Start       float64        `json:"start"`
	End         float64        `json:"end"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// TrackTag classifies a track.
type TrackTag struct {
	ID         int            `json:"id"`
	TrackID    int            `json:"trackId"`
	What       string         `json:"what"`
	Confidence float64        `json:"confidence"`
	Automatic  bool           `json:"automatic"`
	UserID     *int           `json:"userId,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// AlertCondition fires an alert when a matching tag is added.
type AlertCondition struct {
	Tag       string `json:"tag"`
	Automatic bool   `json:"automatic"`
}

// Alert notifies a user about tags on a device's recordings.
type Alert struct {
	ID               int              `json:"id"`
	Name             string           `json:"name"`
	UserID           int              `json:"userId"`
	DeviceID         int              `json:"deviceId"`
	Conditions       []AlertCondition `json:"conditions"`
	FrequencySeconds int              `json:"frequencySeconds"`
	LastAlert        *time.Time       `json:"lastAlert,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Event is a device-reported occurrence such as a power-on or an audio bait.
type Event struct {
	ID        int            `json:"id"`
	DeviceID  int            `json:"deviceId"`
	EventType string         `json:"eventType"`
	DateTime  time.Time      `json:"dateTime"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
