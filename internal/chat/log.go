package chat

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// Category tags a log entry with where it came from.
type Category int

const (
	CategorySystem Category = iota
	CategoryInbound
	CategoryOutbound
	CategoryError
)

// String returns the string representation of Category
func (c Category) String() string {
	switch c {
	case CategorySystem:
		return "system"
	case CategoryInbound:
		return "inbound"
	case CategoryOutbound:
		return "outbound"
	case CategoryError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is one immutable line of the dispatch log.
type Entry struct {
	Category Category
	Text     string
	At       time.Time
}

// Log is the append-only, insertion-ordered record of everything the user sees.
// Entries are never reordered, removed or deduplicated.
type Log struct {
	mu        sync.RWMutex
	entries   *queue.Queue
	observers []func(Entry)
	now       func() time.Time
}

// NewLog creates an empty Log. Observers are called synchronously, in append
// order, with every new entry; they must not call back into the Log.
func NewLog(observers ...func(Entry)) *Log {
	return &Log{
		entries:   queue.New(),
		observers: observers,
		now:       time.Now,
	}
}

// Append adds an entry at the end of the log.
func (l *Log) Append(category Category, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{Category: category, Text: text, At: l.now()}
	l.entries.Add(e)
	for _, fn := range l.observers {
		fn(e)
	}
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries.Length()
}

// Snapshot returns a copy of all entries in arrival order.
func (l *Log) Snapshot() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, l.entries.Length())
	for i := range out {
		out[i] = l.entries.Get(i).(Entry)
	}
	return out
}
