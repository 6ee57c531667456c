package store

import (
	"math"
	"strings"
	"time"
)

// StationRadius is how close, in metres, a recording must be to a station
// to be matched to it.
const StationRadius = 30.0

// StationSpacing is the minimum distance, in metres, between two stations
// of a group before the API warns about them.
const StationSpacing = 60.0

// UserByLogin finds a user by user name or, case-insensitively, by email.
func (s *MemoryStore) UserByLogin(login string) (User, bool) {
	return s.Users.Find(func(u User) bool {
		return u.UserName == login || strings.EqualFold(u.Email, login)
	})
}

// GroupByName finds a group by exact name.
func (s *MemoryStore) GroupByName(name string) (Group, bool) {
	return s.Groups.Find(func(g Group) bool { return g.GroupName == name })
}

// DeviceByName finds a device within a group.
func (s *MemoryStore) DeviceByName(groupID int, name string) (Device, bool) {
	return s.Devices.Find(func(d Device) bool {
		return d.GroupID == groupID && d.DeviceName == name
	})
}

// Member reports whether userID belongs to g, and whether as an admin.
func (g Group) Member(userID int) (member, admin bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return true, m.Admin
		}
	}
	return false, false
}

// CanAccessGroup reports whether u may see groupID's devices and recordings.
func (s *MemoryStore) CanAccessGroup(u User, groupID int) bool {
	if u.IsSuperUser() || u.GlobalPermission == PermissionRead {
		return true
	}
	g, ok := s.Groups.Get(groupID)
	if !ok {
		return false
	}
	member, _ := g.Member(u.ID)
	return member
}

// TracksFor lists a recording's tracks in creation order.
func (s *MemoryStore) TracksFor(recordingID int) []Track {
	return s.Tracks.Filter(func(t Track) bool { return t.RecordingID == recordingID })
}

// TagsFor lists a track's tags in creation order.
func (s *MemoryStore) TagsFor(trackID int) []TrackTag {
	return s.Tags.Filter(func(t TrackTag) bool { return t.TrackID == trackID })
}

// DeleteRecording removes a recording with its tracks and their tags.
func (s *MemoryStore) DeleteRecording(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Recordings.Delete(id) {
		return false
	}
	for _, t := range s.TracksFor(id) {
		for _, tag := range s.TagsFor(t.ID) {
			s.Tags.Delete(tag.ID)
		}
		s.Tracks.Delete(t.ID)
	}
	return true
}

// active reports whether the station existed and was not retired at t.
func (st Station) active(t time.Time) bool {
	if st.ActiveAt.After(t) {
		return false
	}
	return st.RetiredAt == nil || st.RetiredAt.After(t)
}

// NearestStation returns the closest station of groupID within
// StationRadius of loc that was active at t.
func (s *MemoryStore) NearestStation(groupID int, loc Location, t time.Time) (Station, bool) {
	var (
		best     Station
		found    bool
		bestDist = math.Inf(1)
	)
	for _, st := range s.Stations.Filter(func(st Station) bool { return st.GroupID == groupID }) {
		if !st.active(t) {
			continue
		}
		if d := Distance(st.Location, loc); d <= StationRadius && d < bestDist {
			best, found, bestDist = st, true, d
		}
	}
	return best, found
}

// Distance returns the great-circle distance between a and b in metres.
func Distance(a, b Location) float64 {
	const earthRadius = 6371e3
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(b.Lat - a.Lat)
	dLng := rad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(h))
}

// FireAlerts marks every alert on deviceID whose conditions match the tag
// as fired at now, unless it already fired within its frequency window.
// It returns the alerts that fired.
func (s *MemoryStore) FireAlerts(deviceID int, what string, automatic bool, now time.Time) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fired []Alert
	for _, a := range s.Alerts.Filter(func(a Alert) bool { return a.DeviceID == deviceID }) {
		if !a.matches(what, automatic) {
			continue
		}
		if a.LastAlert != nil && now.Sub(*a.LastAlert) < time.Duration(a.FrequencySeconds)*time.Second {
			continue
		}
		s.Alerts.Update(a.ID, func(stored *Alert) error {
			at := now
			stored.LastAlert = &at
			a = *stored
			return nil
		})
		fired = append(fired, a)
	}
	return fired
}

func (a Alert) matches(what string, automatic bool) bool {
	for _, c := range a.Conditions {
		if c.Tag == what && c.Automatic == automatic {
			return true
		}
	}
	return false
}
