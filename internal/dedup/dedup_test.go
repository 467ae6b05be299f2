package dedup

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/inovacc/ghnotify/internal/database"
	"github.com/inovacc/ghnotify/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) *Cache {
	t.Helper()

	s, err := database.NewBolt(filepath.Join(t.TempDir(), "dedup.bolt"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return New(s)
}

func thread(id, updatedAt string, unread bool) model.NotificationThread {
	return model.NotificationThread{ID: id, UpdatedAt: updatedAt, Unread: unread}
}

func TestShouldDeliver(t *testing.T) {
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		thread model.NotificationThread
		rec    model.SeenThread
		seen   bool
		want   bool
	}{
		{"never seen", thread("1", "a", true), model.SeenThread{}, false, true},
		{"read thread", thread("1", "a", false), model.SeenThread{}, false, false},
		{"unchanged", thread("1", "a", true), model.SeenThread{UpdatedAt: "a", LastNotifiedAt: now.Add(-time.Hour)}, true, false},
		{"changed within window", thread("1", "b", true), model.SeenThread{UpdatedAt: "a", LastNotifiedAt: now.Add(-59 * time.Second)}, true, false},
		{"changed at window", thread("1", "b", true), model.SeenThread{UpdatedAt: "a", LastNotifiedAt: now.Add(-Window)}, true, true},
		{"changed after window", thread("1", "b", true), model.SeenThread{UpdatedAt: "a", LastNotifiedAt: now.Add(-2 * time.Minute)}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldDeliver(tt.thread, tt.rec, tt.seen, now))
		})
	}
}

func TestCache_FilterAndCommit(t *testing.T) {
	c := newCache(t)
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

	threads := []model.NotificationThread{
		thread("1", "2024-10-01T10:00:00Z", true),
		thread("2", "2024-10-01T11:00:00Z", true),
		thread("3", "2024-10-01T11:30:00Z", false),
	}

	deliver, records, err := c.Filter(threads, now)
	require.NoError(t, err)
	require.Len(t, deliver, 2)
	assert.Equal(t, "1", deliver[0].ID)
	assert.Equal(t, "2", deliver[1].ID)
	require.Len(t, records, 2)
	assert.Equal(t, now, records[0].LastNotifiedAt)

	// filtering writes nothing
	again, _, err := c.Filter(threads, now)
	require.NoError(t, err)
	assert.Len(t, again, 2)

	require.NoError(t, c.Commit(model.SyncState{LastSyncAt: now}, records))

	again, recs, err := c.Filter(threads, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Empty(t, recs)

	sum, err := c.Summary()
	require.NoError(t, err)
	assert.Equal(t, 2, sum.SeenThreads)
}

func TestCache_FilterSkipsDuplicateIDs(t *testing.T) {
	c := newCache(t)

	deliver, records, err := c.Filter([]model.NotificationThread{
		thread("1", "a", true),
		thread("1", "b", true),
	}, time.Now())
	require.NoError(t, err)
	assert.Len(t, deliver, 1)
	assert.Len(t, records, 1)
}

// TestCache_DeliveryProperties replays random update sequences and checks
// that an unchanged updated_at is never redelivered and that deliveries of
// one thread are at least Window apart.
func TestCache_DeliveryProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for run := range 20 {
		t.Run(fmt.Sprintf("run-%d", run), func(t *testing.T) {
			c := newCache(t)
			now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

			version := map[string]int{}
			lastDelivered := map[string]time.Time{}
			lastDeliveredVersion := map[string]string{}

			for range 60 {
				now = now.Add(time.Duration(rng.IntN(90)) * time.Second)

				var batch []model.NotificationThread

				for id := range 4 {
					key := fmt.Sprint(id)
					if rng.IntN(3) == 0 {
						version[key]++
					}

					batch = append(batch, thread(key, fmt.Sprintf("v%d", version[key]), true))
				}

				deliver, records, err := c.Filter(batch, now)
				require.NoError(t, err)

				for _, th := range deliver {
					if prev, ok := lastDeliveredVersion[th.ID]; ok {
						assert.NotEqual(t, prev, th.UpdatedAt, "unchanged thread redelivered")
						assert.GreaterOrEqual(t, now.Sub(lastDelivered[th.ID]), Window)
					}

					lastDelivered[th.ID] = now
					lastDeliveredVersion[th.ID] = th.UpdatedAt
				}

				require.NoError(t, c.Commit(model.SyncState{LastSyncAt: now}, records))
			}
		})
	}
}
