package store

import (
	"encoding/json"
	"fmt"
	"sync"

	pkgstore "github.com/wildwatch/apicheck/pkg/store"
)

// MemoryStore holds all wildlife API state in memory.
type MemoryStore struct {
	mu sync.Mutex // serializes multi-table operations, see Tx

	Users      *pkgstore.Store[User]
	Groups     *pkgstore.Store[Group]
	Devices    *pkgstore.Store[Device]
	Stations   *pkgstore.Store[Station]
	Recordings *pkgstore.Store[Recording]
	Tracks     *pkgstore.Store[Track]
	Tags       *pkgstore.Store[TrackTag]
	Alerts     *pkgstore.Store[Alert]
	Events     *pkgstore.Store[Event]

	Clock *pkgstore.Clock

	seedMu sync.RWMutex
	seed   []byte
}

// New creates a MemoryStore with empty state.
func New() *MemoryStore {
	return &MemoryStore{
		Users:      pkgstore.New[User](),
		Groups:     pkgstore.New[Group](),
		Devices:    pkgstore.New[Device](),
		Stations:   pkgstore.New[Station](),
		Recordings: pkgstore.New[Recording](),
		Tracks:     pkgstore.New[Track](),
		Tags:       pkgstore.New[TrackTag](),
		Alerts:     pkgstore.New[Alert](),
		Events:     pkgstore.New[Event](),
		Clock:      pkgstore.NewClock(),
	}
}

// Tx runs fn while holding the store-wide lock. Handlers use it for
// check-then-insert sequences such as unique names.
func (s *MemoryStore) Tx(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// stateSnapshot is the JSON form served by /admin/state and read from seed files.
type stateSnapshot struct {
	Users      map[string]User      `json:"users"`
	Groups     map[string]Group     `json:"groups"`
	Devices    map[string]Device    `json:"devices"`
	Stations   map[string]Station   `json:"stations"`
	Recordings map[string]Recording `json:"recordings"`
	Tracks     map[string]Track     `json:"tracks"`
	Tags       map[string]TrackTag  `json:"tags"`
	Alerts     map[string]Alert     `json:"alerts"`
	Events     map[string]Event     `json:"events"`
}

// Snapshot returns the full state as a JSON-serializable value.
func (s *MemoryStore) Snapshot() any {
	return stateSnapshot{
		Users:      s.Users.Snapshot(),
		Groups:     s.Groups.Snapshot(),
		Devices:    s.Devices.Snapshot(),
		Stations:   s.Stations.Snapshot(),
		Recordings: s.Recordings.Snapshot(),
		Tracks:     s.Tracks.Snapshot(),
		Tags:       s.Tags.Snapshot(),
		Alerts:     s.Alerts.Snapshot(),
		Events:     s.Events.Snapshot(),
	}
}

// LoadState replaces the full state from a JSON body. Tables missing from
// the body are emptied.
func (s *MemoryStore) LoadState(data []byte) error {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	loads := []struct {
		name string
		load func() error
	}{
		{"users", func() error { return s.Users.LoadSnapshot(snap.Users) }},
		{"groups", func() error { return s.Groups.LoadSnapshot(snap.Groups) }},
		{"devices", func() error { return s.Devices.LoadSnapshot(snap.Devices) }},
		{"stations", func() error { return s.Stations.LoadSnapshot(snap.Stations) }},
		{"recordings", func() error { return s.Recordings.LoadSnapshot(snap.Recordings) }},
		{"tracks", func() error { return s.Tracks.LoadSnapshot(snap.Tracks) }},
		{"tags", func() error { return s.Tags.LoadSnapshot(snap.Tags) }},
		{"alerts", func() error { return s.Alerts.LoadSnapshot(snap.Alerts) }},
		{"events", func() error { return s.Events.LoadSnapshot(snap.Events) }},
	}
	for _, l := range loads {
		if err := l.load(); err != nil {
			return fmt.Errorf("loading %s: %w", l.name, err)
		}
	}
	return nil
}

// SetSeed loads data and remembers it so Reset restores it.
func (s *MemoryStore) SetSeed(data []byte) error {
	if err := s.LoadState(data); err != nil {
		return err
	}
	s.seedMu.Lock()
	defer s.seedMu.Unlock()
	s.seed = data
	return nil
}

// Reset clears all state, then reloads the seed if one was set.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	s.Users.Reset()
	s.Groups.Reset()
	s.Devices.Reset()
	s.Stations.Reset()
	s.Recordings.Reset()
	s.Tracks.Reset()
	s.Tags.Reset()
	s.Alerts.Reset()
	s.Events.Reset()
	s.Clock.Reset()
	s.mu.Unlock()

	s.seedMu.RLock()
	seed := s.seed
	s.seedMu.RUnlock()
	if seed != nil {
		// already validated by SetSeed
		_ = s.LoadState(seed)
	}
}
