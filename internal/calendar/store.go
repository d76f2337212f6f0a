// Package calendar stores the public event calendar in a JSON file.
package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/livebridge/internal/config"
	"github.com/smazurov/livebridge/internal/events"
	"github.com/smazurov/livebridge/internal/logging"
)

// DefaultPath is used when no file is configured.
const DefaultPath = "events.json"

// Change actions published as CalendarChangedEvent.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionReloaded = "reloaded"
)

// Store keeps the calendar in memory and writes every change to disk.
type Store struct {
	path   string
	bus    *events.Bus
	logger *slog.Logger

	mu      sync.RWMutex
	events  []Event
	watcher *config.Watcher[[]Event]
}

// Open loads the calendar at path. A missing file is an empty calendar.
// bus may be nil.
func Open(path string, bus *events.Bus) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}

	list, err := Load(path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:   path,
		bus:    bus,
		logger: logging.GetLogger("calendar"),
		events: list,
	}
	s.logger.Info("Calendar loaded", "path", path, "events", len(list))
	return s, nil
}

// Load reads a calendar file. A missing or empty file yields no events.
func Load(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar: %w", err)
	}
	if len(data) == 0 {
		return []Event{}, nil
	}

	var list []Event
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse calendar %s: %w", path, err)
	}
	if list == nil {
		list = []Event{}
	}
	return list, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// List returns events ordered by start time. With publishedOnly set,
// drafts are left out.
func (s *Store) List(publishedOnly bool) []Event {
	s.mu.RLock()
	list := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if publishedOnly && !ev.Published {
			continue
		}
		list = append(list, ev)
	}
	s.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].StartsAt.Before(list[j].StartsAt)
	})
	return list
}

// Get returns the event with id.
func (s *Store) Get(id string) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.events[i], nil
	}
	return Event{}, ErrNotFound
}

// Create validates in, assigns an id and persists the new event.
func (s *Store) Create(in Input) (Event, error) {
	if err := in.Validate(); err != nil {
		return Event{}, err
	}

	now := time.Now().UTC()
	ev := Event{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	in.apply(&ev)

	s.mu.Lock()
	next := append(append([]Event(nil), s.events...), ev)
	if err := s.saveLocked(next); err != nil {
		s.mu.Unlock()
		return Event{}, err
	}
	s.mu.Unlock()

	s.logger.Info("Calendar event created", "id", ev.ID, "title", ev.Title)
	s.publish(ActionCreated, ev.ID)
	return ev, nil
}

// Update replaces the editable fields of an existing event.
func (s *Store) Update(id string, in Input) (Event, error) {
	if err := in.Validate(); err != nil {
		return Event{}, err
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return Event{}, ErrNotFound
	}

	next := append([]Event(nil), s.events...)
	ev := next[i]
	in.apply(&ev)
	ev.UpdatedAt = time.Now().UTC()
	next[i] = ev

	if err := s.saveLocked(next); err != nil {
		s.mu.Unlock()
		return Event{}, err
	}
	s.mu.Unlock()

	s.logger.Info("Calendar event updated", "id", id)
	s.publish(ActionUpdated, id)
	return ev, nil
}

// Delete removes an event.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}

	next := make([]Event, 0, len(s.events)-1)
	next = append(next, s.events[:i]...)
	next = append(next, s.events[i+1:]...)

	if err := s.saveLocked(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.logger.Info("Calendar event deleted", "id", id)
	s.publish(ActionDeleted, id)
	return nil
}

// Watch reloads the calendar when the file is edited outside the process.
func (s *Store) Watch(debounce time.Duration) error {
	w := config.NewWatcher(s.path, Load, s.logger, config.WithDebounce[[]Event](debounce))
	w.OnReload(s.replace)
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to watch calendar: %w", err)
	}

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
	return nil
}

// Close stops the file watcher, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Stop()
}

// replace swaps in a freshly loaded list. Reloads caused by our own
// writes load identical data and are ignored.
func (s *Store) replace(list []Event) {
	s.mu.Lock()
	if reflect.DeepEqual(normalize(list), normalize(s.events)) {
		s.mu.Unlock()
		return
	}
	s.events = list
	s.mu.Unlock()

	s.logger.Info("Calendar reloaded from disk", "path", s.path, "events", len(list))
	s.publish(ActionReloaded, "")
}

// saveLocked writes next to disk and makes it current. Caller must hold s.mu.
func (s *Store) saveLocked(next []Event) error {
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal calendar: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create calendar directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}

	s.events = next
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i, ev := range s.events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) publish(action, id string) {
	s.bus.Publish(events.CalendarChangedEvent{
		Action:    action,
		EventID:   id,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// normalize drops monotonic clock readings and locations so that a list
// read back from JSON compares equal to the one that was written.
func normalize(list []Event) []Event {
	out := make([]Event, len(list))
	for i, ev := range list {
		ev.StartsAt = ev.StartsAt.UTC().Round(0)
		ev.CreatedAt = ev.CreatedAt.UTC().Round(0)
		ev.UpdatedAt = ev.UpdatedAt.UTC().Round(0)
		if ev.EndsAt != nil {
			end := ev.EndsAt.UTC().Round(0)
			ev.EndsAt = &end
		}
		out[i] = ev
	}
	return out
}
