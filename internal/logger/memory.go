package logger

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is one captured log line.
type Entry struct {
	ID      int64  `json:"id"`
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// MemoryStore keeps the most recent log entries.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	nextID   int64
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 2000
	}
	return &MemoryStore{
		capacity: capacity,
		entries:  make([]Entry, 0, capacity),
		nextID:   1,
	}
}

func (s *MemoryStore) append(level, message string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, Entry{
		ID:      s.nextID,
		Time:    ts.Format(time.RFC3339),
		Level:   level,
		Message: strings.TrimSpace(message),
	})
	s.nextID++
	if len(s.entries) > s.capacity {
		trim := len(s.entries) - s.capacity
		s.entries = append([]Entry(nil), s.entries[trim:]...)
	}
}

// List returns up to limit entries newer than sinceID in ascending order,
// optionally filtered by level and a case-insensitive substring.
func (s *MemoryStore) List(limit int, level, search string, sinceID int64) []Entry {
	if limit <= 0 {
		limit = 200
	}
	level = strings.ToLower(strings.TrimSpace(level))
	search = strings.ToLower(strings.TrimSpace(search))

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[i]
		if sinceID > 0 && e.ID <= sinceID {
			continue
		}
		if level != "" && e.Level != level {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Message), search) {
			continue
		}
		out = append(out, e)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Hook returns a logrus hook feeding the store.
func (s *MemoryStore) Hook() logrus.Hook {
	return &memoryHook{store: s}
}

type memoryHook struct {
	store *MemoryStore
}

func (h *memoryHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *memoryHook) Fire(entry *logrus.Entry) error {
	h.store.append(entry.Level.String(), formatMessage(entry), entry.Time)
	return nil
}

func formatMessage(entry *logrus.Entry) string {
	msg := strings.TrimSpace(entry.Message)
	if len(entry.Data) == 0 {
		return msg
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, entry.Data[k])
	}
	return b.String()
}
