package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"sewing-planner/internal/fsutil"
)

// Known keys.
const (
	KeyLastProjectID      = "lastProjectId"
	KeyShowCompletedItems = "showCompletedItems"
	KeyNotificationDelay  = "notificationDelay"
)

var Keys = []string{KeyLastProjectID, KeyShowCompletedItems, KeyNotificationDelay}

var ErrUnknownKey = errors.New("unknown setting")

// Store is a key -> JSON value file. Reading is best effort: a missing or
// corrupt file yields defaults.
type Store struct {
	path string

	mu     sync.Mutex
	values map[string]json.RawMessage
}

func Open(path string) *Store {
	s := &Store{path: path, values: map[string]json.RawMessage{}}
	b, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var vals map[string]json.RawMessage
	if err := json.Unmarshal(b, &vals); err == nil && vals != nil {
		s.values = vals
	}
	return s
}

func (s *Store) Path() string { return s.path }

// Get decodes the value under key into v and reports whether it was set.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("setting %s: %w", key, err)
	}
	return true, nil
}

// Set stores v under key and rewrites the file.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	b, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.path, b, 0o644)
}

// All returns every stored key with its JSON text, sorted by key.
func (s *Store) All() [][2]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][2]string, 0, len(s.values))
	for k, v := range s.values {
		out = append(out, [2]string{k, string(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func (s *Store) LastProjectID() int64 {
	var id int64
	if ok, err := s.Get(KeyLastProjectID, &id); !ok || err != nil {
		return 0
	}
	return id
}

func (s *Store) SetLastProjectID(id int64) error { return s.Set(KeyLastProjectID, id) }

// ShowCompletedItems defaults to true.
func (s *Store) ShowCompletedItems() bool {
	show := true
	if ok, err := s.Get(KeyShowCompletedItems, &show); !ok || err != nil {
		return true
	}
	return show
}

func (s *Store) SetShowCompletedItems(show bool) error { return s.Set(KeyShowCompletedItems, show) }

// NotificationDelay returns the stored delay or def.
func (s *Store) NotificationDelay(def time.Duration) time.Duration {
	var raw string
	if ok, err := s.Get(KeyNotificationDelay, &raw); !ok || err != nil {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func (s *Store) SetNotificationDelay(d time.Duration) error {
	return s.Set(KeyNotificationDelay, d.String())
}

// SetString parses a command-line value for a known key.
func (s *Store) SetString(key, value string) error {
	switch key {
	case KeyLastProjectID:
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return s.SetLastProjectID(id)
	case KeyShowCompletedItems:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return s.SetShowCompletedItems(b)
	case KeyNotificationDelay:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return s.SetNotificationDelay(d)
	}
	return fmt.Errorf("%w: %s", ErrUnknownKey, key)
}
