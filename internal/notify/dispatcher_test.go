package notify

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type recordingSender struct {
	name string
	mu   sync.Mutex
	got  []Notification
	err  error
	boom bool
}

func (s *recordingSender) Name() string { return s.name }

func (s *recordingSender) Send(_ context.Context, n *Notification) error {
	if s.boom {
		panic("sender exploded")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.got = append(s.got, *n)

	return s.err
}

func (s *recordingSender) Test(context.Context) error { return nil }

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.got)
}

func TestDispatcher_DeliversToAllSenders(t *testing.T) {
	d := NewDispatcher(WithRate(rate.Inf, 1))

	a := &recordingSender{name: "a"}
	b := &recordingSender{name: "b", err: errors.New("offline")}

	d.Register(a)
	d.Register(b)

	d.Deliver(context.Background(), Notification{ID: "1"})
	d.Deliver(context.Background(), Notification{ID: "2"})

	assert.Equal(t, 2, a.count())
	assert.Equal(t, 2, b.count())
	assert.Equal(t, "1", a.got[0].ID)
}

func TestDispatcher_RecoversFromPanics(t *testing.T) {
	d := NewDispatcher(WithRate(rate.Inf, 1))

	d.Register(&recordingSender{name: "panicky", boom: true})

	ok := &recordingSender{name: "ok"}
	d.Register(ok)

	assert.NotPanics(t, func() { d.Deliver(context.Background(), Notification{ID: "1"}) })
	assert.Equal(t, 1, ok.count())
}

func TestDispatcher_Unregister(t *testing.T) {
	d := NewDispatcher()
	d.Register(&recordingSender{name: "a"})
	d.Register(&recordingSender{name: "b"})

	d.Unregister("a")

	senders := d.Senders()
	assert.Len(t, senders, 1)
	assert.Equal(t, "b", senders[0].Name())
	assert.True(t, d.HasSenders())
}

func TestDispatcher_Async(t *testing.T) {
	d := NewDispatcher(WithAsync(true), WithRate(rate.Inf, 1))
	defer d.Close()

	s := &recordingSender{name: "a"}
	d.Register(s)

	ctx, cancel := context.WithCancel(context.Background())

	for range 3 {
		d.Deliver(ctx, Notification{ID: "x"})
	}

	// caller cancellation does not abort deliveries already handed off
	cancel()
	d.Wait()

	assert.Equal(t, 3, s.count())
}

func TestDispatcher_AsyncDeliversEveryQueuedAlert(t *testing.T) {
	d := NewDispatcher(WithAsync(true), WithRate(rate.Every(2*time.Millisecond), 5))
	defer d.Close()

	s := &recordingSender{name: "a"}
	d.Register(s)

	// the caller's deadline has already passed; queued alerts still go out
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	const total = 40
	for i := range total {
		d.Deliver(ctx, Notification{ID: strconv.Itoa(i)})
	}

	d.Wait()

	require.Equal(t, total, s.count())

	for i, n := range s.got {
		assert.Equal(t, strconv.Itoa(i), n.ID)
	}
}

func TestDispatcher_CloseDropsQueued(t *testing.T) {
	d := NewDispatcher(WithAsync(true), WithRate(rate.Limit(0.001), 1))

	s := &recordingSender{name: "a"}
	d.Register(s)

	for i := range 3 {
		d.Deliver(context.Background(), Notification{ID: strconv.Itoa(i)})
	}

	assert.Eventually(t, func() bool { return s.count() == 1 }, time.Second, 5*time.Millisecond)

	d.Close()
	assert.Equal(t, 1, s.count())

	d.Deliver(context.Background(), Notification{ID: "late"})
	d.Wait()
	assert.Equal(t, 1, s.count())
}

func TestDispatcher_CloseWithoutDeliveries(t *testing.T) {
	d := NewDispatcher(WithAsync(true))

	assert.NotPanics(t, d.Close)
	d.Wait()
}

func TestDispatcher_RateLimiterDropsOnCancelledContext(t *testing.T) {
	d := NewDispatcher(WithRate(rate.Limit(0.001), 1))

	s := &recordingSender{name: "a"}
	d.Register(s)

	d.Deliver(context.Background(), Notification{ID: "1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Deliver(ctx, Notification{ID: "2"})

	assert.Equal(t, 1, s.count())
}

func TestNotifierFunc(t *testing.T) {
	var got string

	var n Notifier = NotifierFunc(func(_ context.Context, n Notification) { got = n.ID })
	n.Deliver(context.Background(), Notification{ID: "7"})

	assert.Equal(t, "7", got)
}
