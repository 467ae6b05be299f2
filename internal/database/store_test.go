package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/inovacc/ghnotify/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStores(t *testing.T) map[string]Store {
	t.Helper()

	stores := map[string]Store{}

	for _, driver := range []string{DriverBolt, DriverSQLite} {
		s, err := Open(Config{Driver: driver, Path: filepath.Join(t.TempDir(), "test."+driver)})
		require.NoError(t, err, driver)

		t.Cleanup(func() {
			if err := s.Close(); err != nil {
				t.Logf("failed to close %s store: %v", driver, err)
			}
		})

		stores[driver] = s
	}

	return stores
}

func TestStore_Ping(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, s.Ping())
		})
	}
}

func TestStore_EmptyState(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			state, err := s.SyncState()
			require.NoError(t, err)
			assert.Equal(t, model.SyncState{}, state)
			assert.False(t, state.HasValidator())

			_, found, err := s.SeenThread("1")
			require.NoError(t, err)
			assert.False(t, found)

			seen, err := s.SeenThreads()
			require.NoError(t, err)
			assert.Empty(t, seen)
		})
	}
}

func TestStore_CommitCycle(t *testing.T) {
	syncAt := time.Date(2024, 10, 1, 10, 0, 0, 123456789, time.UTC)
	notified := syncAt.Add(-time.Second)

	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			state := model.SyncState{
				LastModified: "Tue, 01 Oct 2024 10:00:00 GMT",
				ETag:         `W/"abc"`,
				QueryKey:     "participating=true&per_page=50",
				LastSyncAt:   syncAt,
			}

			err := s.CommitCycle(state, []model.SeenThread{
				{ThreadID: "2", UpdatedAt: "2024-10-01T09:00:00Z", LastNotifiedAt: notified},
				{ThreadID: "1", UpdatedAt: "2024-10-01T08:00:00Z", LastNotifiedAt: notified},
			})
			require.NoError(t, err)

			got, err := s.SyncState()
			require.NoError(t, err)
			assert.Equal(t, state.LastModified, got.LastModified)
			assert.Equal(t, state.ETag, got.ETag)
			assert.Equal(t, state.QueryKey, got.QueryKey)
			assert.True(t, syncAt.Equal(got.LastSyncAt))

			rec, found, err := s.SeenThread("2")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "2024-10-01T09:00:00Z", rec.UpdatedAt)
			assert.True(t, notified.Equal(rec.LastNotifiedAt))

			seen, err := s.SeenThreads()
			require.NoError(t, err)
			require.Len(t, seen, 2)
			assert.Equal(t, "1", seen[0].ThreadID)

			// second cycle updates one record and keeps the other
			later := notified.Add(time.Minute)
			require.NoError(t, s.CommitCycle(model.SyncState{LastSyncAt: syncAt.Add(time.Minute)}, []model.SeenThread{
				{ThreadID: "1", UpdatedAt: "2024-10-01T10:30:00Z", LastNotifiedAt: later},
			}))

			rec, _, err = s.SeenThread("1")
			require.NoError(t, err)
			assert.Equal(t, "2024-10-01T10:30:00Z", rec.UpdatedAt)
			assert.True(t, later.Equal(rec.LastNotifiedAt))

			seen, err = s.SeenThreads()
			require.NoError(t, err)
			assert.Len(t, seen, 2)

			got, err = s.SyncState()
			require.NoError(t, err)
			assert.False(t, got.HasValidator())
		})
	}
}

func TestStore_CommitCycleIsAtomic(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			before := model.SyncState{ETag: "old", LastSyncAt: time.Unix(100, 0)}
			require.NoError(t, s.CommitCycle(before, nil))

			err := s.CommitCycle(model.SyncState{ETag: "new"}, []model.SeenThread{
				{ThreadID: "1", UpdatedAt: "x", LastNotifiedAt: time.Now()},
				{ThreadID: "", UpdatedAt: "y"},
			})
			require.Error(t, err)

			got, err := s.SyncState()
			require.NoError(t, err)
			assert.Equal(t, "old", got.ETag)

			_, found, err := s.SeenThread("1")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestStore_Clear(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.CommitCycle(model.SyncState{ETag: "e", LastSyncAt: time.Now()}, []model.SeenThread{
				{ThreadID: "1", UpdatedAt: "x", LastNotifiedAt: time.Now()},
			}))

			sum, err := Summarize(s)
			require.NoError(t, err)
			assert.Equal(t, 1, sum.SeenThreads)
			assert.Equal(t, "e", sum.ETag)

			require.NoError(t, s.Clear())

			sum, err = Summarize(s)
			require.NoError(t, err)
			assert.Equal(t, Summary{}, sum)
		})
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	for _, driver := range []string{DriverBolt, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "reopen."+driver)

			s, err := Open(Config{Driver: driver, Path: path})
			require.NoError(t, err)
			require.NoError(t, s.CommitCycle(model.SyncState{ETag: "kept"}, []model.SeenThread{
				{ThreadID: "9", UpdatedAt: "u", LastNotifiedAt: time.Unix(5, 0)},
			}))
			require.NoError(t, s.Close())

			s, err = Open(Config{Driver: driver, Path: path})
			require.NoError(t, err)
			defer func() { _ = s.Close() }()

			state, err := s.SyncState()
			require.NoError(t, err)
			assert.Equal(t, "kept", state.ETag)

			_, found, err := s.SeenThread("9")
			require.NoError(t, err)
			assert.True(t, found)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "postgres", Path: filepath.Join(t.TempDir(), "x")})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestMigrator_LoadMigrations(t *testing.T) {
	migrations, err := NewMigrator(nil).LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "init", migrations[0].Description)
	assert.Contains(t, migrations[0].UpSQL, "seen_threads")
	assert.NotEmpty(t, migrations[0].DownSQL)
}
