package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/jakegt1/twitch-events/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ domain.NotificationSink = (*Feed)(nil)

func event(body string) domain.NormalizedEvent {
	return domain.NormalizedEvent{Severity: domain.SeverityPlain, Header: "h", Body: body}
}

func TestFeed_AppendAssignsSequenceAndTimestamp(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	feed := NewFeed(clock)

	first := feed.Add(event("a"))
	clock.Advance(time.Second)
	second := feed.Add(event("b"))

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 1, 0, time.UTC), second.At)
	assert.Equal(t, 2, feed.Len())
}

func TestFeed_EntriesPreserveOrderAndAreCopies(t *testing.T) {
	feed := NewFeed(clockwork.NewFakeClock())
	for _, body := range []string{"a", "b", "c"} {
		feed.Append(event(body))
	}

	entries := feed.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Event.Body)
	assert.Equal(t, "c", entries[2].Event.Body)

	entries[0].Event.Body = "mutated"
	assert.Equal(t, "a", feed.Entries()[0].Event.Body)
}

func TestFeed_Since(t *testing.T) {
	feed := NewFeed(clockwork.NewFakeClock())
	for _, body := range []string{"a", "b", "c"} {
		feed.Append(event(body))
	}

	since := feed.Since(1)
	require.Len(t, since, 2)
	assert.Equal(t, uint64(2), since[0].Seq)

	assert.Empty(t, feed.Since(3))
	assert.Empty(t, feed.Since(99))
	assert.NotNil(t, feed.Since(99))
}

func TestFeed_SubscribeReceivesNewEntries(t *testing.T) {
	feed := NewFeed(clockwork.NewFakeClock())
	feed.Append(event("before"))

	ch, cancel := feed.Subscribe(4)
	defer cancel()

	feed.Append(event("after"))

	got := <-ch
	assert.Equal(t, "after", got.Event.Body)
	assert.Equal(t, uint64(2), got.Seq)
}

func TestFeed_SlowSubscriberDoesNotBlockAppend(t *testing.T) {
	feed := NewFeed(clockwork.NewFakeClock())
	ch, cancel := feed.Subscribe(1)
	defer cancel()

	for range 10 {
		feed.Append(event("x"))
	}

	assert.Equal(t, 10, feed.Len())
	assert.Len(t, ch, 1)
}

func TestFeed_CancelClosesChannel(t *testing.T) {
	feed := NewFeed(clockwork.NewFakeClock())
	ch, cancel := feed.Subscribe(1)

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	feed.Append(event("after cancel"))
	assert.Equal(t, 1, feed.Len())
}

func TestFeed_ConcurrentAppend(t *testing.T) {
	feed := NewFeed(clockwork.NewFakeClock())

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() { feed.Append(event("x")) })
	}
	wg.Wait()

	entries := feed.Entries()
	require.Len(t, entries, 50)
	for i, e := range entries {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
}
