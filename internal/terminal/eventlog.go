package terminal

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Log levels
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// LogEntry is a single event shown on the operator console
type LogEntry struct {
	Timestamp time.Time `yaml:"timestamp"`
	Level     string    `yaml:"level"`
	Message   string    `yaml:"message"`
}

func (e LogEntry) String() string {
	return fmt.Sprintf("%s %-5s %s", e.Timestamp.Format("15:04:05"), strings.ToUpper(e.Level), e.Message)
}

// EventLog is a thread-safe ring buffer of recent terminal events
type EventLog struct {
	mu      sync.RWMutex
	entries []LogEntry
	cap     int
}

// NewEventLog creates an event log holding at most capacity entries
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = 100
	}
	return &EventLog{
		entries: make([]LogEntry, 0, capacity),
		cap:     capacity,
	}
}

// Add records an entry, dropping the oldest one when full
func (l *EventLog) Add(level, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	}

	if len(l.entries) >= l.cap {
		copy(l.entries, l.entries[1:])
		l.entries[len(l.entries)-1] = entry
	} else {
		l.entries = append(l.entries, entry)
	}
}

// Entries returns a copy of the entries, optionally filtered by level
func (l *EventLog) Entries(levels ...string) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(levels) == 0 {
		result := make([]LogEntry, len(l.entries))
		copy(result, l.entries)
		return result
	}

	want := make(map[string]bool, len(levels))
	for _, lv := range levels {
		want[strings.ToLower(lv)] = true
	}

	result := make([]LogEntry, 0)
	for _, e := range l.entries {
		if want[e.Level] {
			result = append(result, e)
		}
	}
	return result
}

// Clear removes all entries
func (l *EventLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}

func (l *EventLog) Infof(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.Add(LevelInfo, msg)
	log.Println(msg)
}

func (l *EventLog) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.Add(LevelWarn, msg)
	log.Printf("WARN: %s", msg)
}

func (l *EventLog) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.Add(LevelError, msg)
	log.Printf("ERROR: %s", msg)
}
