package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/inovacc/ghnotify/internal/application"
	"github.com/inovacc/ghnotify/internal/model"
)

const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Store defines the persistence operations used by the sync engine.
type Store interface {
	Ping() error

	// SyncState returns the cache row, or the zero value before the first sync.
	SyncState() (model.SyncState, error)

	// SeenThread returns the delivery record of a thread.
	SeenThread(id string) (model.SeenThread, bool, error)

	// SeenThreads returns every delivery record.
	SeenThreads() ([]model.SeenThread, error)

	// CommitCycle atomically replaces the cache row and upserts the records.
	CommitCycle(state model.SyncState, seen []model.SeenThread) error

	// Clear removes all cached state.
	Clear() error

	Close() error
}

// Config selects and locates the backend.
type Config struct {
	Driver string
	Path   string // empty means the default file in the application directory
}

// Open opens the configured backend.
func Open(cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverBolt
	}

	switch driver {
	case DriverBolt:
		path, err := resolvePath(cfg.Path, application.BoltFile)
		if err != nil {
			return nil, err
		}

		return NewBolt(path)
	case DriverSQLite:
		path, err := resolvePath(cfg.Path, application.SQLiteFile)
		if err != nil {
			return nil, err
		}

		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func resolvePath(path, file string) (string, error) {
	if path != "" {
		return path, nil
	}

	return application.Path(file)
}

// Summary is the exported view of the cache.
type Summary struct {
	LastModified string    `json:"last_modified,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastSyncAt   time.Time `json:"last_sync_at,omitzero"`
	SeenThreads  int       `json:"seen_threads"`
}

// Summarize reads the cache summary from s.
func Summarize(s Store) (Summary, error) {
	state, err := s.SyncState()
	if err != nil {
		return Summary{}, err
	}

	seen, err := s.SeenThreads()
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		LastModified: state.LastModified,
		ETag:         state.ETag,
		LastSyncAt:   state.LastSyncAt,
		SeenThreads:  len(seen),
	}, nil
}
