package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sendTimeout = 30 * time.Second

// Dispatcher routes alerts to registered senders. It implements Notifier.
//
// In async mode alerts are queued and sent in order by a single worker that
// waits on the rate limiter for as long as it takes. Queued alerts are only
// dropped by Close.
type Dispatcher struct {
	senders []Sender
	mu      sync.RWMutex
	async   bool
	limiter *rate.Limiter
	logger  *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	start   sync.Once
	qmu     sync.Mutex
	queue   []Notification
	closed  bool
	wake    chan struct{}
	pending sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithAsync queues alerts so Deliver returns immediately.
func WithAsync(async bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.async = async
	}
}

// WithRate limits deliveries to r per second with the given burst. A burst
// of new threads is spread out instead of flooding the desktop.
func WithRate(r rate.Limit, burst int) DispatcherOption {
	return func(d *Dispatcher) {
		d.limiter = rate.NewLimiter(r, burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// NewDispatcher creates a dispatcher. The default limit is one alert per
// second with a burst of five.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		senders: make([]Sender, 0),
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		logger:  slog.Default(),
		wake:    make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())

	return d
}

// Register adds a sender.
func (d *Dispatcher) Register(sender Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.senders = append(d.senders, sender)
}

// Unregister removes a sender by name.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	filtered := make([]Sender, 0, len(d.senders))

	for _, s := range d.senders {
		if s.Name() != name {
			filtered = append(filtered, s)
		}
	}

	d.senders = filtered
}

// Deliver sends n to every registered sender. In sync mode it blocks until
// the rate limiter admits n or ctx is done.
func (d *Dispatcher) Deliver(ctx context.Context, n Notification) {
	if !d.async {
		d.deliver(ctx, &n)
		return
	}

	d.start.Do(func() { go d.run() })

	d.qmu.Lock()
	if d.closed {
		d.qmu.Unlock()
		d.logger.Warn("notification dropped, dispatcher closed", "thread_id", n.ID)

		return
	}

	d.queue = append(d.queue, n)
	d.pending.Add(1)
	d.qmu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// run drains the queue until Close.
func (d *Dispatcher) run() {
	for {
		n, ok, done := d.next()
		if done {
			return
		}

		if !ok {
			select {
			case <-d.wake:
			case <-d.ctx.Done():
			}

			continue
		}

		if d.ctx.Err() == nil {
			d.deliver(d.ctx, &n)
		}

		d.pending.Done()
	}
}

// next pops the head of the queue. done is set once the dispatcher is
// closed and the queue is empty; Deliver refuses new alerts from then on.
func (d *Dispatcher) next() (n Notification, ok, done bool) {
	d.qmu.Lock()
	defer d.qmu.Unlock()

	if len(d.queue) == 0 {
		if d.ctx.Err() != nil {
			d.closed = true
			return n, false, true
		}

		return n, false, false
	}

	n = d.queue[0]
	d.queue[0] = Notification{}
	d.queue = d.queue[1:]

	return n, true, false
}

func (d *Dispatcher) deliver(ctx context.Context, n *Notification) {
	senders := d.Senders()
	if len(senders) == 0 {
		return
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.logger.Warn("notification dropped by rate limiter", "thread_id", n.ID, "error", err)
		return
	}

	for _, sender := range senders {
		d.sendWithRecover(ctx, sender, n)
	}
}

// sendWithRecover sends n and recovers from sender panics.
func (d *Dispatcher) sendWithRecover(ctx context.Context, sender Sender, n *Notification) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in sender", "sender", sender.Name(), "panic", r)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := sender.Send(sendCtx, n); err != nil {
		d.logger.Warn("notification send failed", "sender", sender.Name(), "thread_id", n.ID, "error", err)
	}
}

// Wait blocks until every queued alert has been sent or dropped.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// Close stops the worker. Alerts still queued are dropped.
func (d *Dispatcher) Close() {
	d.qmu.Lock()
	queued := len(d.queue)
	d.qmu.Unlock()

	if queued > 0 {
		d.logger.Warn("dropping queued notifications on shutdown", "count", queued)
	}

	d.cancel()

	if d.async {
		d.start.Do(func() { go d.run() })
	}

	d.pending.Wait()
}

// HasSenders reports whether any senders are registered.
func (d *Dispatcher) HasSenders() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.senders) > 0
}

// Senders returns a copy of the registered senders.
func (d *Dispatcher) Senders() []Sender {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]Sender, len(d.senders))
	copy(result, d.senders)

	return result
}
