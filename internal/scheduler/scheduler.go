// Package scheduler polls the notification collection on a timer, filters
// already delivered threads and hands new ones to a Notifier.
//
// At most one cycle runs at a time. Manual and timer triggered cycles that
// overlap collapse into the one in flight.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inovacc/ghnotify/internal/config"
	"github.com/inovacc/ghnotify/internal/dedup"
	"github.com/inovacc/ghnotify/internal/eventbus"
	"github.com/inovacc/ghnotify/internal/ghapi"
	"github.com/inovacc/ghnotify/internal/model"
	"github.com/inovacc/ghnotify/internal/notify"
	"github.com/robfig/cron/v3"
)

// RecentCount is how many threads the recent view keeps.
const RecentCount = 5

var (
	ErrAlreadySyncing = errors.New("sync already in progress")
	ErrPaused         = errors.New("notifications are paused")
)

// NotificationSource fetches the notification collection.
type NotificationSource interface {
	ListNotifications(ctx context.Context, q ghapi.NotificationsQuery, cond ghapi.Conditional) ([]model.NotificationThread, *ghapi.Response, error)
}

// SettingsProvider returns the current settings.
type SettingsProvider interface {
	Get() config.Settings
}

// RateLimitSource reports the last known quota.
type RateLimitSource interface {
	Current() (model.RateLimit, bool)
}

// Scheduler is the sync engine.
type Scheduler struct {
	api      NotificationSource
	cache    *dedup.Cache
	notifier notify.Notifier
	settings SettingsProvider
	limits   RateLimitSource
	bus      eventbus.Publisher
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    State
	reason   string
	cycleID  string
	lastSync time.Time
	recent   []model.NotificationThread
	runCtx   context.Context
	timer    *cron.Cron
	entry    cron.EntryID
	interval time.Duration
	inflight sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithPublisher publishes sync and status events.
func WithPublisher(p eventbus.Publisher) Option {
	return func(s *Scheduler) {
		s.bus = p
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithRateLimits exposes the client's quota in Status.
func WithRateLimits(r RateLimitSource) Option {
	return func(s *Scheduler) {
		s.limits = r
	}
}

// New creates an idle scheduler. Call Start to run the timer.
func New(api NotificationSource, cache *dedup.Cache, notifier notify.Notifier, settings SettingsProvider, opts ...Option) *Scheduler {
	s := &Scheduler{
		api:      api,
		cache:    cache,
		notifier: notifier,
		settings: settings,
		bus:      eventbus.Nop{},
		logger:   slog.Default(),
		now:      time.Now,
		runCtx:   context.Background(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.timer = cron.New(cron.WithChain(cron.Recover(cronLogger{s.logger})))

	if state, err := cache.State(); err == nil {
		s.lastSync = state.LastSyncAt
	}

	if settings.Get().NotificationsPaused {
		s.state = StatePaused
	}

	return s
}

// Start (re)starts the periodic timer at the configured interval and runs
// one cycle immediately in the background. An errored scheduler is reset.
func (s *Scheduler) Start(ctx context.Context) {
	set := s.settings.Get()

	s.inflight.Add(1)

	s.mu.Lock()
	s.runCtx = ctx
	s.scheduleLocked(set.Interval())

	if s.state == StateErrored {
		s.state, s.reason = idleState(set), ""
	}
	s.mu.Unlock()

	s.timer.Start()
	s.logger.Info("scheduler started", "interval", set.Interval())
	s.publishStatus()

	go func() {
		defer s.inflight.Done()

		if _, err := s.SyncNow(ctx, false); err != nil && !errors.Is(err, ErrPaused) && !errors.Is(err, ErrAlreadySyncing) {
			s.logger.Debug("initial sync failed", "error", err)
		}
	}()
}

// Stop cancels the timer. A cycle in flight finishes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
	s.publishStatus()
}

// Close stops the timer and waits for in-flight cycles.
func (s *Scheduler) Close() {
	s.Stop()
	<-s.timer.Stop().Done()
	s.inflight.Wait()
}

// Wait blocks until background cycles started by Start have finished.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// TimerRunning reports whether the periodic timer is armed.
func (s *Scheduler) TimerRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.entry != 0
}

// LastSync returns when the last successful or not-modified poll finished.
func (s *Scheduler) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastSync
}

// Recent returns the most recent threads of the last fetched collection.
func (s *Scheduler) Recent() []model.NotificationThread {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]model.NotificationThread(nil), s.recent...)
}

// Status returns a snapshot.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := Status{
		State:        s.state,
		Reason:       s.reason,
		CycleID:      s.cycleID,
		LastSyncAt:   s.lastSync,
		TimerRunning: s.entry != 0,
		Interval:     s.interval,
		Recent:       append([]model.NotificationThread(nil), s.recent...),
	}
	s.mu.Unlock()

	if s.limits != nil {
		if rl, ok := s.limits.Current(); ok {
			st.RateLimit = &rl
		}
	}

	return st
}

// ApplySettings reacts to a settings change: a new interval recreates the
// timer and the paused flag toggles between Idle and Paused. A cycle in
// flight is not interrupted.
func (s *Scheduler) ApplySettings(set config.Settings) {
	s.mu.Lock()

	if s.entry != 0 && set.Interval() != s.interval {
		s.scheduleLocked(set.Interval())
		s.logger.Info("polling interval changed", "interval", set.Interval())
	}

	switch {
	case s.state == StateIdle && set.NotificationsPaused:
		s.state = StatePaused
	case s.state == StatePaused && !set.NotificationsPaused:
		s.state = StateIdle
	}

	s.mu.Unlock()

	s.publishStatus()
}

// WatchSettings applies every update received on ch until ctx is done or ch
// is closed.
func (s *Scheduler) WatchSettings(ctx context.Context, ch <-chan config.Settings) {
	for {
		select {
		case <-ctx.Done():
			return
		case set, ok := <-ch:
			if !ok {
				return
			}

			s.ApplySettings(set)
		}
	}
}

// WatchAuth restarts the scheduler on login and stops it on logout.
func (s *Scheduler) WatchAuth(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			switch ev.Type {
			case eventbus.TopicLogin:
				s.Start(ctx)
			case eventbus.TopicLogout:
				s.Stop()
			}
		}
	}
}

// SyncNow runs one cycle. Unless force is set it does nothing while
// notifications are paused. It returns ErrAlreadySyncing when a cycle is in
// flight.
func (s *Scheduler) SyncNow(ctx context.Context, force bool) (CycleResult, error) {
	set := s.settings.Get()

	s.mu.Lock()
	if s.state == StateSyncing {
		s.mu.Unlock()
		s.logger.Debug("sync skipped, already in progress")

		return CycleResult{}, ErrAlreadySyncing
	}

	if !force && set.NotificationsPaused {
		s.mu.Unlock()
		s.logger.Debug("sync skipped, notifications paused")

		return CycleResult{}, ErrPaused
	}

	id := uuid.NewString()
	s.state, s.reason, s.cycleID = StateSyncing, "", id
	s.mu.Unlock()

	s.publishStatus()

	res, err := s.cycle(ctx, id, set)
	if err != nil {
		s.fail(id, err)
		return res, err
	}

	return res, nil
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	if _, err := s.SyncNow(ctx, true); err != nil && !errors.Is(err, ErrAlreadySyncing) {
		s.logger.Debug("scheduled sync failed", "error", err)
	}
}

func (s *Scheduler) cycle(ctx context.Context, id string, set config.Settings) (CycleResult, error) {
	log := s.logger.With("cycle_id", id)
	res := CycleResult{CycleID: id, Paused: set.NotificationsPaused}

	q := ghapi.NewNotificationsQuery(set.ParticipatingOnly, set.PerPage)

	prev, err := s.cache.State()
	if err != nil {
		return res, fmt.Errorf("reading sync state: %w", err)
	}

	var cond ghapi.Conditional
	if prev.QueryKey == q.Key() && prev.HasValidator() {
		cond = ghapi.Conditional{IfModifiedSince: prev.LastModified, IfNoneMatch: prev.ETag}
	}

	threads, resp, err := s.api.ListNotifications(ctx, q, cond)
	now := s.now()

	if ghapi.IsNotModified(err) {
		next := prev
		next.QueryKey = q.Key()
		next.LastSyncAt = advance(prev.LastSyncAt, now)

		if err := s.cache.Commit(next, nil); err != nil {
			return res, err
		}

		res.NotModified = true
		res.LastSyncAt = next.LastSyncAt

		log.Info("sync completed, not modified")
		s.finish(res, nil, false)

		return res, nil
	}

	if err != nil {
		return res, err
	}

	next := model.SyncState{QueryKey: q.Key(), LastSyncAt: advance(prev.LastSyncAt, now)}
	if resp != nil {
		next.LastModified, next.ETag = resp.LastModified, resp.ETag
	}

	var (
		deliver []model.NotificationThread
		records []model.SeenThread
	)

	if !set.NotificationsPaused {
		deliver, records, err = s.cache.Filter(threads, now)
		if err != nil {
			return res, err
		}
	}

	if err := s.cache.Commit(next, records); err != nil {
		return res, err
	}

	for _, th := range deliver {
		s.notifier.Deliver(ctx, notify.FromThread(th, set.SoundEnabled))
	}

	res.Threads = len(threads)
	res.Delivered = len(deliver)
	res.LastSyncAt = next.LastSyncAt

	log.Info("sync completed", "threads", res.Threads, "delivered", res.Delivered, "paused", res.Paused)
	s.finish(res, threads[:min(len(threads), RecentCount)], true)

	return res, nil
}

func (s *Scheduler) finish(res CycleResult, recent []model.NotificationThread, replaceRecent bool) {
	set := s.settings.Get()

	s.mu.Lock()
	s.lastSync = res.LastSyncAt
	if replaceRecent {
		s.recent = append([]model.NotificationThread(nil), recent...)
	}
	s.state = idleState(set)
	s.mu.Unlock()

	s.bus.Publish(eventbus.Event{Type: eventbus.TopicSyncCompleted, Data: res})
	s.publishStatus()
}

func (s *Scheduler) fail(id string, err error) {
	limited := ghapi.IsRateLimited(err)

	s.mu.Lock()
	s.state, s.reason = StateErrored, err.Error()
	if limited {
		s.stopTimerLocked()
	}
	s.mu.Unlock()

	attrs := []any{"cycle_id", id, "kind", ghapi.KindOf(err).String(), "error", err}

	var apiErr *ghapi.Error
	if limited && errors.As(err, &apiErr) {
		attrs = append(attrs, "reset_at", apiErr.ResetAt)
	}

	if limited {
		s.logger.Warn("rate limit exhausted, scheduler stopped", attrs...)
	} else {
		s.logger.Error("sync failed", attrs...)
	}

	s.bus.Publish(eventbus.Event{Type: eventbus.TopicSyncFailed, Data: err})
	s.publishStatus()
}

// scheduleLocked replaces the timer entry. The caller holds s.mu.
func (s *Scheduler) scheduleLocked(d time.Duration) {
	if s.entry != 0 {
		s.timer.Remove(s.entry)
	}

	s.interval = d
	s.entry = s.timer.Schedule(cron.Every(d), cron.FuncJob(s.tick))
}

func (s *Scheduler) stopTimerLocked() {
	if s.entry != 0 {
		s.timer.Remove(s.entry)
		s.entry = 0
	}
}

func (s *Scheduler) publishStatus() {
	s.bus.Publish(eventbus.Event{Type: eventbus.TopicSchedulerStatus, Data: s.Status()})
}

func idleState(set config.Settings) State {
	if set.NotificationsPaused {
		return StatePaused
	}

	return StateIdle
}

// advance returns now, or just after prev when the clock did not move, so
// the sync timestamp strictly increases.
func advance(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}

	return prev.Add(time.Millisecond)
}

type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug("timer: "+msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error("timer: "+msg, append(kv, "error", err)...)
}
