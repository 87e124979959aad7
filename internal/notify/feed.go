// Package notify holds the ordered, append-only notification feed shown to the user.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jakegt1/twitch-events/internal/domain"
	"github.com/jonboulle/clockwork"
)

type Entry struct {
	Seq   uint64                 `json:"seq"`
	ID    uuid.UUID              `json:"id"`
	At    time.Time              `json:"at"`
	Event domain.NormalizedEvent `json:"event"`
}

// Feed never drops or reorders entries. Subscribers that fall behind miss entries
// instead of blocking Append.
type Feed struct {
	clock clockwork.Clock

	mu          sync.RWMutex
	entries     []Entry
	subscribers map[uint64]chan Entry
	nextSubID   uint64
}

func NewFeed(clock clockwork.Clock) *Feed {
	return &Feed{
		clock:       clock,
		subscribers: make(map[uint64]chan Entry),
	}
}

// Append satisfies domain.NotificationSink.
func (f *Feed) Append(event domain.NormalizedEvent) {
	f.Add(event)
}

// Add appends event and returns the stored entry. Sequence numbers start at 1.
func (f *Feed) Add(event domain.NormalizedEvent) Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := Entry{
		Seq:   uint64(len(f.entries)) + 1,
		ID:    uuid.New(),
		At:    f.clock.Now(),
		Event: event,
	}
	f.entries = append(f.entries, entry)

	for _, ch := range f.subscribers {
		select {
		case ch <- entry:
		default:
		}
	}
	return entry
}

func (f *Feed) Entries() []Entry {
	return f.Since(0)
}

// Since returns the entries with a sequence number greater than seq.
func (f *Feed) Since(seq uint64) []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if seq >= uint64(len(f.entries)) {
		return []Entry{}
	}
	out := make([]Entry, len(f.entries)-int(seq))
	copy(out, f.entries[seq:])
	return out
}

func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Subscribe returns a channel receiving entries appended from now on. The cancel
// function closes the channel and is safe to call more than once.
func (f *Feed) Subscribe(buffer int) (<-chan Entry, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextSubID
	f.nextSubID++
	ch := make(chan Entry, buffer)
	f.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subscribers, id)
			close(ch)
		})
	}
	return ch, cancel
}
