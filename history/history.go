// Package history keeps a bounded, insertion-ordered log of transcription
// outcomes that survives restarts via a serialized blob in the settings store.
package history

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

const DefaultCapacity = 25

type Kind string

const (
	KindTranscription Kind = "transcription"
	KindError         Kind = "error"
)

// Item is one history entry. Items are immutable once enqueued; the log only
// evicts them.
type Item struct {
	Kind     Kind          `json:"kind"`
	Body     string        `json:"body"`
	Time     time.Time     `json:"time"`
	Duration time.Duration `json:"duration,omitempty"`
}

func NewTranscription(body string, duration time.Duration) Item {
	return Item{Kind: KindTranscription, Body: body, Time: time.Now(), Duration: duration}
}

func NewError(err error) Item {
	return Item{Kind: KindError, Body: err.Error(), Time: time.Now()}
}

// WordsPerSecond derives the transcription rate from the body and duration.
func (it Item) WordsPerSecond() float64 {
	if it.Duration <= 0 {
		return 0
	}
	words := len(strings.Fields(it.Body))
	return float64(words) / it.Duration.Seconds()
}

// Repository persists the serialized log. Saving happens explicitly after
// each mutation rather than through an observer.
type Repository interface {
	LoadHistory() (string, error)
	SaveHistory(blob string) error
}

// Log is a fixed-capacity FIFO of items. Oldest entries are evicted first
// when the capacity is exceeded. Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	capacity int
	items    []Item
	repo     Repository

	// onError receives persistence failures so the caller can surface
	// them without the log recursing into itself.
	onError func(error)
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// SetRepository attaches persistence and rehydrates the log from the stored
// blob. Deserialization failures are reported through fn and leave the log
// empty but usable.
func (l *Log) SetRepository(repo Repository, fn func(error)) {
	l.mu.Lock()
	l.repo = repo
	l.onError = fn
	l.mu.Unlock()

	blob, err := repo.LoadHistory()
	if err != nil {
		l.report(err)
		return
	}
	if blob == "" {
		return
	}
	restored, err := Unmarshal(blob)
	if err != nil {
		l.report(err)
		return
	}
	l.Replace(restored)
}

func (l *Log) report(err error) {
	l.mu.Lock()
	fn := l.onError
	l.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (l *Log) Capacity() int { return l.capacity }

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Enqueue appends an item, evicting the oldest entry first when the log is
// full, then persists.
func (l *Log) Enqueue(item Item) {
	l.mu.Lock()
	if len(l.items) == l.capacity {
		l.items = l.items[1:]
	}
	l.items = append(l.items, item)
	l.mu.Unlock()
	l.persist()
}

// List returns entries newest-first.
func (l *Log) List() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Item, len(l.items))
	for i, it := range l.items {
		out[len(l.items)-1-i] = it
	}
	return out
}

// Delete removes entries matching both timestamp and body.
func (l *Log) Delete(item Item) {
	l.mu.Lock()
	kept := l.items[:0]
	for _, it := range l.items {
		if it.Time.Equal(item.Time) && it.Body == item.Body {
			continue
		}
		kept = append(kept, it)
	}
	l.items = kept
	l.mu.Unlock()
	l.persist()
}

// Replace swaps in another log's contents wholesale. Used during startup
// rehydration; does not persist (the stored blob is already current).
func (l *Log) Replace(other *Log) {
	other.mu.Lock()
	items := make([]Item, len(other.items))
	copy(items, other.items)
	other.mu.Unlock()

	l.mu.Lock()
	if len(items) > l.capacity {
		items = items[len(items)-l.capacity:]
	}
	l.items = items
	l.mu.Unlock()
}

func (l *Log) persist() {
	l.mu.Lock()
	repo := l.repo
	l.mu.Unlock()
	if repo == nil {
		return
	}
	blob, err := l.Marshal()
	if err == nil {
		err = repo.SaveHistory(blob)
	}
	if err != nil {
		l.report(err)
	}
}

type serialized struct {
	Capacity int    `json:"capacity"`
	Items    []Item `json:"items"`
}

// Marshal serializes the log to a JSON blob bounded by the capacity.
func (l *Log) Marshal() (string, error) {
	l.mu.Lock()
	s := serialized{Capacity: l.capacity, Items: make([]Item, len(l.items))}
	copy(s.Items, l.items)
	l.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Unmarshal restores a log from its serialized form, preserving order.
func Unmarshal(blob string) (*Log, error) {
	var s serialized
	if err := json.Unmarshal([]byte(blob), &s); err != nil {
		return nil, err
	}
	l := NewLog(s.Capacity)
	l.items = s.Items
	return l, nil
}
