// Package eventbus is the in-process pub/sub used to tell observers about
// login, logout, sync and scheduler status changes.
//
// Publish never blocks. Subscribers get a buffered channel and slow
// subscribers drop events.
package eventbus

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Topics published by the application.
const (
	TopicLogin           = "auth.login"
	TopicLogout          = "auth.logout"
	TopicAuthFlow        = "auth.flow"
	TopicSyncCompleted   = "sync.completed"
	TopicSyncFailed      = "sync.failed"
	TopicSchedulerStatus = "scheduler.status"
	TopicSettingsChanged = "settings.changed"
)

const defaultBuffer = 16

// Event is a small signal. Data carries a topic-specific payload.
type Event struct {
	ID   string
	Type string
	Time time.Time
	Data any
}

// Publisher is the side of the bus components depend on.
type Publisher interface {
	Publish(e Event)
}

// Bus is a simple in-memory fanout bus. It owns no goroutines.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscription
	seq  atomic.Uint64
}

type subscription struct {
	ch     chan Event
	topics []string
}

func (s *subscription) wants(topic string) bool {
	return len(s.topics) == 0 || slices.Contains(s.topics, topic)
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: map[uint64]*subscription{}}
}

// Publish fans e out to every interested subscriber without blocking.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subs))

	for _, s := range b.subs {
		if s.wants(e.Type) {
			targets = append(targets, s.ch)
		}
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		// A concurrent unsubscribe may close ch.
		func() {
			defer func() { _ = recover() }()

			select {
			case ch <- e:
			default:
			}
		}()
	}
}

// Subscribe registers for the given topics, or all topics when none are
// named. The returned function unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int, topics ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	s := &subscription{ch: make(chan Event, buffer), topics: topics}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once

	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}
