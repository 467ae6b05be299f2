// Package dedup decides which notification threads are new enough to
// deliver and records what was delivered.
package dedup

import (
	"fmt"
	"time"

	"github.com/inovacc/ghnotify/internal/database"
	"github.com/inovacc/ghnotify/internal/model"
)

// Window is the minimum time between two deliveries of the same thread.
const Window = 60 * time.Second

// ShouldDeliver reports whether thread is delivered given its previous
// record. Read threads are never delivered. A seen thread is delivered again
// only when updated_at changed and the window since the last delivery passed.
func ShouldDeliver(thread model.NotificationThread, rec model.SeenThread, seen bool, now time.Time) bool {
	if !thread.Unread {
		return false
	}

	if !seen {
		return true
	}

	return rec.UpdatedAt != thread.UpdatedAt && now.Sub(rec.LastNotifiedAt) >= Window
}

// Cache wraps the store's delivery records.
type Cache struct {
	store database.Store
}

func New(store database.Store) *Cache {
	return &Cache{store: store}
}

// Filter returns the threads to deliver, in input order, and the records to
// commit for them. Nothing is written.
func (c *Cache) Filter(threads []model.NotificationThread, now time.Time) ([]model.NotificationThread, []model.SeenThread, error) {
	var (
		deliver []model.NotificationThread
		records []model.SeenThread
		batch   = make(map[string]struct{}, len(threads))
	)

	for _, th := range threads {
		if _, dup := batch[th.ID]; dup {
			continue
		}

		rec, seen, err := c.store.SeenThread(th.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("reading seen thread %s: %w", th.ID, err)
		}

		if !ShouldDeliver(th, rec, seen, now) {
			continue
		}

		batch[th.ID] = struct{}{}
		deliver = append(deliver, th)
		records = append(records, model.SeenThread{
			ThreadID:       th.ID,
			UpdatedAt:      th.UpdatedAt,
			LastNotifiedAt: now,
		})
	}

	return deliver, records, nil
}

// State returns the persisted sync cache row.
func (c *Cache) State() (model.SyncState, error) {
	return c.store.SyncState()
}

// Commit writes the cycle result atomically.
func (c *Cache) Commit(state model.SyncState, records []model.SeenThread) error {
	if err := c.store.CommitCycle(state, records); err != nil {
		return fmt.Errorf("committing sync cycle: %w", err)
	}

	return nil
}

// Clear drops every record and the cache row.
func (c *Cache) Clear() error {
	return c.store.Clear()
}

// Summary returns the exported view of the cache.
func (c *Cache) Summary() (database.Summary, error) {
	return database.Summarize(c.store)
}
