package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpguard/internal/platform/storage"
	platformtesting "wpguard/internal/platform/testing"
)

func TestAsyncEventBus_DeliversAndWaits(t *testing.T) {
	bus := NewAsyncEventBus(2, 16, platformtesting.NewLogger(t))
	bus.Start()
	defer bus.Stop()

	var got atomic.Int32
	require.NoError(t, bus.Subscribe(EventUploadRejected, func(d UploadEventData) {
		if d.Reason == "blacklisted" {
			got.Add(1)
		}
	}))
	assert.True(t, bus.HasCallback(EventUploadRejected))

	for i := 0; i < 5; i++ {
		bus.Publish(EventUploadRejected, UploadEventData{Name: "IMG_2048.jpg", Reason: "blacklisted"})
	}
	bus.Wait()
	assert.Equal(t, int32(5), got.Load())
}

func TestAsyncEventBus_DropsWhenFull(t *testing.T) {
	bus := NewAsyncEventBus(1, 1, platformtesting.NewLogger(t))

	// workers are not started, so the single slot fills immediately
	bus.Publish(EventWatchlistToggled, WatchlistEventData{Plugin: "a"})
	bus.Publish(EventWatchlistToggled, WatchlistEventData{Plugin: "b"})
	assert.Equal(t, int64(1), bus.Dropped())

	bus.Start()
	bus.Stop()
}

func TestAsyncEventBus_RecoversFromPanickingSubscriber(t *testing.T) {
	bus := NewAsyncEventBus(1, 4, platformtesting.NewLogger(t))
	bus.Start()
	defer bus.Stop()

	var mu sync.Mutex
	var seen []string
	require.NoError(t, bus.Subscribe(EventWatchlistToggled, func(d WatchlistEventData) {
		if d.Plugin == "boom" {
			panic("subscriber failure")
		}
		mu.Lock()
		seen = append(seen, d.Plugin)
		mu.Unlock()
	}))

	bus.Publish(EventWatchlistToggled, WatchlistEventData{Plugin: "boom"})
	bus.Publish(EventWatchlistToggled, WatchlistEventData{Plugin: "akismet"})
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"akismet"}, seen)
}

func TestHistoryRecorder(t *testing.T) {
	repo := storage.NewHistoryRepository(platformtesting.SetupTestDB(t))
	bus := NewAsyncEventBus(1, 8, platformtesting.NewLogger(t))
	recorder := NewHistoryRecorder(repo, 2, platformtesting.NewLogger(t))
	require.NoError(t, recorder.Attach(bus))
	bus.Start()
	defer bus.Stop()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		bus.Publish(EventChangelogChecked, CheckEventData{
			Slug:      "akismet",
			Status:    "mismatch",
			Alerted:   true,
			CheckedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	bus.Wait()

	records, err := repo.Recent(context.Background(), "akismet", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Alerted)
	assert.Equal(t, base.Add(2*time.Minute), records[0].CheckedAt.UTC())
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	p.Publish(EventChangelogAlerted, AlertEventData{Slug: "akismet"})
}
