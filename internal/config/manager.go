package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/inovacc/ghnotify/internal/eventbus"
	yaml "go.yaml.in/yaml/v3"
)

const (
	debounceDelay      = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Manager owns the settings file.
type Manager struct {
	path string

	mu       sync.RWMutex
	cur      Settings
	lastHash uint64

	// subsMu guards subs so publish never sends on a closed channel.
	subsMu sync.Mutex
	subs   []chan Settings

	logger *slog.Logger
	bus    eventbus.Publisher
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithPublisher publishes settings.changed events.
func WithPublisher(p eventbus.Publisher) Option {
	return func(m *Manager) {
		m.bus = p
	}
}

// NewManager creates a manager for path, initially holding the defaults.
func NewManager(path string, opts ...Option) *Manager {
	m := &Manager{
		path:   path,
		cur:    Defaults(),
		logger: slog.Default(),
		bus:    eventbus.Nop{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Path returns the settings file path.
func (m *Manager) Path() string {
	return m.path
}

// Parse reads the file. A missing file yields the defaults.
func (m *Manager) Parse() (Settings, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}

	if err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}

	return decode(data)
}

func decode(data []byte) (Settings, error) {
	s := Defaults()

	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("parsing settings: %w", err)
	}

	return s.normalize(), nil
}

// Load parses the file and makes it current.
func (m *Manager) Load() (Settings, error) {
	s, err := m.Parse()
	if err != nil {
		return Settings{}, err
	}

	m.commit(s)

	return s, nil
}

// Get returns the current settings.
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.cur
}

// Save validates s, writes it and notifies subscribers.
func (m *Manager) Save(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	if err := writeFileAtomic(m.path, data); err != nil {
		return err
	}

	if m.commit(s) {
		m.publish(s)
	}

	return nil
}

// Update applies fn to a copy of the current settings and saves the result.
func (m *Manager) Update(fn func(*Settings)) (Settings, error) {
	s := m.Get()
	s.Slack.Repos = append([]string(nil), s.Slack.Repos...)

	fn(&s)

	if err := m.Save(s); err != nil {
		return Settings{}, err
	}

	return s, nil
}

// Reset restores the defaults, keeping the OAuth client ID.
func (m *Manager) Reset() (Settings, error) {
	clientID := m.Get().ClientID

	s := Defaults()
	s.ClientID = clientID

	if err := m.Save(s); err != nil {
		return Settings{}, err
	}

	return s, nil
}

// commit makes s current and reports whether it differs from before.
func (m *Manager) commit(s Settings) bool {
	h := hashSettings(s)

	m.mu.Lock()
	defer m.mu.Unlock()

	changed := h != m.lastHash
	m.cur = s
	m.lastHash = h

	return changed
}

func hashSettings(s Settings) uint64 {
	data, err := yaml.Marshal(&s)
	if err != nil {
		return 0
	}

	h := fnv.New64a()
	_, _ = h.Write(data)

	return h.Sum64()
}

// Subscribe returns a channel receiving every committed change.
func (m *Manager) Subscribe(buffer int) <-chan Settings {
	if buffer <= 0 {
		buffer = 1
	}

	ch := make(chan Settings, buffer)

	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()

	return ch
}

// Unsubscribe removes and closes ch.
func (m *Manager) Unsubscribe(ch <-chan Settings) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for i, s := range m.subs {
		if s == ch {
			last := len(m.subs) - 1
			m.subs[i] = m.subs[last]
			m.subs[last] = nil
			m.subs = m.subs[:last]
			close(s)

			return
		}
	}
}

// publish delivers the latest settings, dropping the oldest queued value of
// a slow subscriber.
func (m *Manager) publish(s Settings) {
	m.subsMu.Lock()
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}

			select {
			case ch <- s:
			default:
				m.logger.Debug("settings update dropped (subscriber slow)")
			}
		}
	}
	m.subsMu.Unlock()

	m.bus.Publish(eventbus.Event{Type: eventbus.TopicSettingsChanged, Data: s})
}

// Watch reloads the file on change until ctx is done. Invalid files are
// logged and ignored.
func (m *Manager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	backoff := restartBackoffBase

	nextWait := func() time.Duration {
		wait := backoff + rand.N(backoff/2+1)
		backoff = min(backoff*2, restartBackoffMax)

		return wait
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)

	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()

		if timer != nil {
			timer.Stop()
		}

		timer = time.AfterFunc(debounceDelay, m.reload)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.Add(dir); err != nil {
				_ = w.Close()
			}
		}

		if err != nil {
			m.logger.Warn("settings watch init failed", "dir", dir, "error", err)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(nextWait()):
				continue
			}
		}

		backoff = restartBackoffBase
		m.logger.Debug("settings watcher started", "path", m.path)

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}

				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}

				if errors.Is(err, fsnotify.ErrEventOverflow) {
					m.logger.Warn("settings watch overflow, forcing reload")
					debounce()

					continue
				}

				m.logger.Warn("settings watch error", "error", err)
			}
		}

		_ = w.Close()

		wait := nextWait()
		m.logger.Warn("settings watcher stopped, restarting", "backoff", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (m *Manager) reload() {
	s, err := m.Parse()
	if err != nil {
		m.logger.Warn("settings reload failed", "path", m.path, "error", err)
		return
	}

	if !m.commit(s) {
		m.logger.Debug("settings unchanged, skipping publish")
		return
	}

	m.logger.Info("settings reloaded", "interval_minutes", s.PollingIntervalMinutes, "participating_only", s.ParticipatingOnly, "paused", s.NotificationsPaused)
	m.publish(s)
}

// writeFileAtomic writes through a temp file so the watcher never sees a
// partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing settings: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing settings: %w", err)
	}

	return nil
}
