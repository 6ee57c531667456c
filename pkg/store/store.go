// Package store provides a generic, thread-safe, in-memory table for the
// fake API. Rows are keyed by server-generated integer ids, listed in
// insertion order, and paged with offset/limit like the real API.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Store is a thread-safe, in-memory table of T keyed by integer id.
type Store[T any] struct {
	mu      sync.RWMutex
	items   map[int]T
	order   []int // insertion order for deterministic listing
	counter atomic.Int64
}

// New creates an empty Store. The first generated id is 1.
func New[T any]() *Store[T] {
	return &Store[T]{
		items: make(map[int]T),
		order: make([]int, 0),
	}
}

// NextID reserves the next id.
func (s *Store[T]) NextID() int {
	return int(s.counter.Add(1))
}

// Insert reserves an id, builds the row with it and stores it.
func (s *Store[T]) Insert(build func(id int) T) T {
	id := s.NextID()
	item := build(id)
	s.Set(id, item)
	return item
}

// Set stores an item. Overwriting keeps the original position.
func (s *Store[T]) Set(id int, item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		s.order = append(s.order, id)
	}
	s.items[id] = item
	if int64(id) > s.counter.Load() {
		s.counter.Store(int64(id))
	}
}

// Get retrieves an item by id.
func (s *Store[T]) Get(id int) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Update applies fn to a copy of the stored item and saves the result if
// fn returns nil. It returns false if the id does not exist.
func (s *Store[T]) Update(id int, fn func(item *T) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false, nil
	}
	if err := fn(&item); err != nil {
		return true, err
	}
	s.items[id] = item
	return true, nil
}

// Delete removes an item by id. Returns true if it existed.
func (s *Store[T]) Delete(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		return false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns all items in insertion order.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]T, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.items[id])
	}
	return result
}

// Filter returns the items matching predicate, in insertion order.
func (s *Store[T]) Filter(predicate func(item T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]T, 0)
	for _, id := range s.order {
		if predicate(s.items[id]) {
			result = append(result, s.items[id])
		}
	}
	return result
}

// Find returns the first item matching predicate.
func (s *Store[T]) Find(predicate func(item T) bool) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if predicate(s.items[id]) {
			return s.items[id], true
		}
	}
	var zero T
	return zero, false
}

// Page is one window of a filtered listing.
type Page[T any] struct {
	Rows   []T `json:"rows"`
	Count  int `json:"count"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Paginate filters, then returns rows [offset, offset+limit). A limit of 0
// returns everything after offset. Count is the total matching rows.
func (s *Store[T]) Paginate(predicate func(item T) bool, offset, limit int) Page[T] {
	matched := s.Filter(predicate)
	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return Page[T]{
		Rows:   matched[offset:end],
		Count:  len(matched),
		Offset: offset,
		Limit:  limit,
	}
}

// Count returns the number of items.
func (s *Store[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Reset clears all items and restarts ids at 1.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int]T)
	s.order = make([]int, 0)
	s.counter.Store(0)
}

// Snapshot returns all items keyed by decimal id, for JSON.
func (s *Store[T]) Snapshot() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]T, len(s.items))
	for k, v := range s.items {
		snapshot[strconv.Itoa(k)] = v
	}
	return snapshot
}

// LoadSnapshot replaces all items. Rows are ordered by id and the id
// counter continues after the largest loaded id.
func (s *Store[T]) LoadSnapshot(snapshot map[string]T) error {
	items := make(map[int]T, len(snapshot))
	order := make([]int, 0, len(snapshot))
	maxID := 0
	for k, v := range snapshot {
		id, err := strconv.Atoi(k)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid id %q in snapshot", k)
		}
		items[id] = v
		order = append(order, id)
		maxID = max(maxID, id)
	}
	sort.Ints(order)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.order = order
	s.counter.Store(int64(maxID))
	return nil
}

// MarshalJSON serializes the store as its snapshot.
func (s *Store[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// UnmarshalJSON replaces the store contents from a snapshot.
func (s *Store[T]) UnmarshalJSON(data []byte) error {
	var snapshot map[string]T
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	return s.LoadSnapshot(snapshot)
}

// Clock is a simulated clock. Timestamps the fake API hands out come from
// here so tests can move time forward.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
}

// NewClock creates a clock with no offset.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current simulated time in UTC, truncated to milliseconds
// to match JSON timestamps produced by the API.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset).UTC().Truncate(time.Millisecond)
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// Reset sets the offset back to zero.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
}

// Offset returns the current offset.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}
