package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultJournalCapacity is the number of entries the log pane keeps.
const DefaultJournalCapacity = 100

// Entry is one journal line.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   string // k=v pairs, space separated
}

// String renders the entry the way the log pane shows it.
func (e Entry) String() string {
	if e.Attrs == "" {
		return fmt.Sprintf("%s %-5s %s", e.Time.Format("15:04:05"), e.Level, e.Message)
	}
	return fmt.Sprintf("%s %-5s %s %s", e.Time.Format("15:04:05"), e.Level, e.Message, e.Attrs)
}

// Journal is a bounded in-memory log. When full, the oldest entry is evicted.
type Journal struct {
	mu        sync.Mutex
	entries   []Entry // ring storage
	head      int     // index of the oldest entry
	size      int
	listeners map[int]func()
	nextID    int
}

// NewJournal creates a journal holding at most capacity entries. A
// non-positive capacity uses DefaultJournalCapacity.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultJournalCapacity
	}
	return &Journal{
		entries:   make([]Entry, capacity),
		listeners: make(map[int]func()),
	}
}

// Append adds an entry and notifies listeners after the lock is released.
func (j *Journal) Append(e Entry) {
	j.mu.Lock()
	capacity := len(j.entries)
	if j.size < capacity {
		j.entries[(j.head+j.size)%capacity] = e
		j.size++
	} else {
		j.entries[j.head] = e
		j.head = (j.head + 1) % capacity
	}
	listeners := make([]func(), 0, len(j.listeners))
	for _, l := range j.listeners {
		listeners = append(listeners, l)
	}
	j.mu.Unlock()

	for _, l := range listeners {
		l()
	}
}

// Len returns the number of stored entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.size
}

// Capacity returns the maximum number of entries.
func (j *Journal) Capacity() int {
	return len(j.entries)
}

// Range returns up to count entries starting at index start, oldest first.
// Out of range requests are clamped.
func (j *Journal) Range(start, count int) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	if start < 0 {
		start = 0
	}
	end := start + count
	if end > j.size {
		end = j.size
	}
	if start >= end {
		return nil
	}

	out := make([]Entry, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, j.entries[(j.head+i)%len(j.entries)])
	}
	return out
}

// All returns every stored entry, oldest first.
func (j *Journal) All() []Entry {
	return j.Range(0, j.Capacity())
}

// Subscribe registers fn to be called after each Append. The returned func
// removes it.
func (j *Journal) Subscribe(fn func()) (cancel func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	id := j.nextID
	j.nextID++
	j.listeners[id] = fn
	return func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		delete(j.listeners, id)
	}
}

// JournalHandler is a slog.Handler writing into a Journal.
type JournalHandler struct {
	journal *Journal
	level   slog.Leveler
	pre     string // attrs rendered by WithAttrs
	group   string
}

// NewJournalHandler creates a handler for records at or above level.
func NewJournalHandler(j *Journal, level slog.Leveler) *JournalHandler {
	return &JournalHandler{journal: j, level: level}
}

func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(h.pre)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.group, a)
		return true
	})

	h.journal.Append(Entry{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   b.String(),
	})
	return nil
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.pre)
	for _, a := range attrs {
		appendAttr(&b, h.group, a)
	}
	c := *h
	c.pre = b.String()
	return &c
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	if c.group != "" {
		c.group += "." + name
	} else {
		c.group = name
	}
	return &c
}

func appendAttr(b *strings.Builder, group string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	if group != "" {
		b.WriteString(group)
		b.WriteByte('.')
	}
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(a.Value.Resolve().String())
}
