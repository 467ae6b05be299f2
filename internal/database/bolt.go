package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/inovacc/ghnotify/internal/model"
	"go.etcd.io/bbolt"
)

const (
	boltBucketSync    = "sync"    // key: "state" -> SyncState JSON
	boltBucketThreads = "threads" // key: thread id -> SeenThread JSON

	boltKeyState = "state"
)

type Bolt struct {
	db *bbolt.DB
}

// NewBolt opens or creates a bbolt store at path.
func NewBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	if err := db.Update(createBuckets); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Bolt{db: db}, nil
}

func createBuckets(tx *bbolt.Tx) error {
	for _, name := range []string{boltBucketSync, boltBucketThreads} {
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return err
		}
	}

	return nil
}

func (b *Bolt) Ping() error {
	return b.db.View(func(tx *bbolt.Tx) error {
		return nil
	})
}

func (b *Bolt) SyncState() (model.SyncState, error) {
	var state model.SyncState

	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(boltBucketSync)).Get([]byte(boltKeyState))
		if data == nil {
			return nil
		}

		return json.Unmarshal(data, &state)
	})

	return state, err
}

func (b *Bolt) SeenThread(id string) (model.SeenThread, bool, error) {
	var (
		rec   model.SeenThread
		found bool
	)

	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(boltBucketThreads)).Get([]byte(id))
		if data == nil {
			return nil
		}

		found = true

		return json.Unmarshal(data, &rec)
	})

	return rec, found, err
}

func (b *Bolt) SeenThreads() ([]model.SeenThread, error) {
	var out []model.SeenThread

	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketThreads)).ForEach(func(_, v []byte) error {
			var rec model.SeenThread
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}

			out = append(out, rec)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ThreadID < out[j].ThreadID })

	return out, nil
}

func (b *Bolt) CommitCycle(state model.SyncState, seen []model.SeenThread) error {
	stateData, err := json.Marshal(&state)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		threads := tx.Bucket([]byte(boltBucketThreads))

		for _, rec := range seen {
			if rec.ThreadID == "" {
				return errors.New("seen thread without id")
			}

			data, err := json.Marshal(&rec)
			if err != nil {
				return err
			}

			if err := threads.Put([]byte(rec.ThreadID), data); err != nil {
				return err
			}
		}

		return tx.Bucket([]byte(boltBucketSync)).Put([]byte(boltKeyState), stateData)
	})
}

func (b *Bolt) Clear() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{boltBucketSync, boltBucketThreads} {
			if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
		}

		return createBuckets(tx)
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
