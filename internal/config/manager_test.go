package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/inovacc/ghnotify/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	return NewManager(filepath.Join(t.TempDir(), "settings.yaml"), opts...)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	m := newManager(t)

	s, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
	assert.Equal(t, 5, s.PollingIntervalMinutes)
	assert.True(t, s.ParticipatingOnly)
	assert.False(t, s.NotificationsPaused)
	assert.True(t, s.SoundEnabled)
	assert.Empty(t, s.ClientID)
}

func TestLoad_ClampsOutOfRangeInterval(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"polling_interval_minutes: 0\n", MinInterval},
		{"polling_interval_minutes: -4\n", MinInterval},
		{"polling_interval_minutes: 90\n", MaxInterval},
		{"polling_interval_minutes: 12\n", 12},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			m := newManager(t)
			require.NoError(t, os.WriteFile(m.Path(), []byte(tt.raw), 0o600))

			s, err := m.Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.PollingIntervalMinutes)
		})
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	m := newManager(t)
	require.NoError(t, os.WriteFile(m.Path(), []byte("sound_enabled: false\n"), 0o600))

	s, err := m.Load()
	require.NoError(t, err)
	assert.False(t, s.SoundEnabled)
	assert.True(t, s.ParticipatingOnly)
	assert.Equal(t, DefaultScope, s.Scope)
	assert.Equal(t, DefaultDriver, s.Storage.Driver)
	assert.Equal(t, DefaultPerPage, s.PerPage)
}

func TestLoad_ClampsPerPage(t *testing.T) {
	tests := []struct {
		file string
		want int
	}{
		{"per_page: 0\n", DefaultPerPage},
		{"per_page: -3\n", DefaultPerPage},
		{"per_page: 500\n", MaxPerPage},
		{"per_page: 20\n", 20},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			m := newManager(t)
			require.NoError(t, os.WriteFile(m.Path(), []byte(tt.file), 0o600))

			s, err := m.Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.PerPage)
		})
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	m := newManager(t)
	require.NoError(t, os.WriteFile(m.Path(), []byte("bogus: 1\n"), 0o600))

	_, err := m.Load()
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	m := newManager(t)

	s := Defaults()
	s.PollingIntervalMinutes = 15
	s.ClientID = "Iv1.abc"
	s.Slack.Repos = []string{"octo/*"}

	require.NoError(t, m.Save(s))

	other := NewManager(m.Path())
	got, err := other.Load()
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSave_RejectsInvalidInterval(t *testing.T) {
	m := newManager(t)

	for _, n := range []int{0, 31} {
		s := Defaults()
		s.PollingIntervalMinutes = n
		assert.ErrorIs(t, m.Save(s), ErrInvalidInterval)
	}

	_, err := os.Stat(m.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestSave_RejectsUnknownDriver(t *testing.T) {
	m := newManager(t)

	s := Defaults()
	s.Storage.Driver = "postgres"
	assert.Error(t, m.Save(s))
}

func TestReset_KeepsClientID(t *testing.T) {
	m := newManager(t)

	_, err := m.Update(func(s *Settings) {
		s.ClientID = "Iv1.keep"
		s.PollingIntervalMinutes = 20
		s.SoundEnabled = false
	})
	require.NoError(t, err)

	s, err := m.Reset()
	require.NoError(t, err)
	assert.Equal(t, "Iv1.keep", s.ClientID)
	assert.Equal(t, DefaultInterval, s.PollingIntervalMinutes)
	assert.True(t, s.SoundEnabled)
}

func TestSet(t *testing.T) {
	m := newManager(t)

	s, err := m.Set("polling_interval_minutes", "7")
	require.NoError(t, err)
	assert.Equal(t, 7, s.PollingIntervalMinutes)

	s, err = m.Set("participating_only", "false")
	require.NoError(t, err)
	assert.False(t, s.ParticipatingOnly)

	s, err = m.Set("slack.repos", "octo/a, octo/b ,")
	require.NoError(t, err)
	assert.Equal(t, []string{"octo/a", "octo/b"}, s.Slack.Repos)

	_, err = m.Set("sound_enabled", "maybe")
	assert.Error(t, err)

	_, err = m.Set("polling_interval_minutes", "45")
	assert.ErrorIs(t, err, ErrInvalidInterval)
	assert.Equal(t, 7, m.Get().PollingIntervalMinutes)

	s, err = m.Set("per_page", "25")
	require.NoError(t, err)
	assert.Equal(t, 25, s.PerPage)

	_, err = m.Set("per_page", "101")
	assert.ErrorIs(t, err, ErrInvalidPerPage)
	assert.Equal(t, 25, m.Get().PerPage)

	_, err = m.Set("nope", "1")
	assert.Error(t, err)
}

func TestSubscribe_ReceivesChanges(t *testing.T) {
	bus := eventbus.New()
	events, cancel := bus.Subscribe(4, eventbus.TopicSettingsChanged)
	defer cancel()

	m := newManager(t, WithPublisher(bus))
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	_, err := m.Set("polling_interval_minutes", "9")
	require.NoError(t, err)

	select {
	case s := <-ch:
		assert.Equal(t, 9, s.PollingIntervalMinutes)
	case <-time.After(time.Second):
		t.Fatal("no settings update")
	}

	select {
	case ev := <-events:
		assert.Equal(t, eventbus.TopicSettingsChanged, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no bus event")
	}
}

func TestSubscribe_UnchangedSaveIsSilent(t *testing.T) {
	m := newManager(t)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	require.NoError(t, m.Save(m.Get()))

	select {
	case <-ch:
		t.Fatal("unexpected update")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_SlowSubscriberGetsLatest(t *testing.T) {
	m := newManager(t)
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	for _, n := range []string{"2", "3", "4"} {
		_, err := m.Set("polling_interval_minutes", n)
		require.NoError(t, err)
	}

	s := <-ch
	assert.Equal(t, 4, s.PollingIntervalMinutes)
}

func TestWatch_ReloadsOnExternalEdit(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Save(Defaults()))

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(m.Path(), []byte("polling_interval_minutes: 3\nparticipating_only: false\n"), 0o600))

	select {
	case s := <-ch:
		assert.Equal(t, 3, s.PollingIntervalMinutes)
		assert.False(t, s.ParticipatingOnly)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not reload")
	}

	cancel()
	<-done
}

func TestSettings_Interval(t *testing.T) {
	s := Defaults()
	assert.Equal(t, 5*time.Minute, s.Interval())
}
