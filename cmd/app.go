package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/inovacc/ghnotify/internal/application"
	"github.com/inovacc/ghnotify/internal/auth"
	"github.com/inovacc/ghnotify/internal/config"
	"github.com/inovacc/ghnotify/internal/database"
	"github.com/inovacc/ghnotify/internal/dedup"
	"github.com/inovacc/ghnotify/internal/eventbus"
	"github.com/inovacc/ghnotify/internal/ghapi"
	"github.com/inovacc/ghnotify/internal/notify"
	"github.com/inovacc/ghnotify/internal/scheduler"
)

var errNotLoggedIn = errors.New("not logged in; run 'ghnotify login' first")

// app holds the process-wide components shared by the commands.
type app struct {
	logger   *slog.Logger
	bus      *eventbus.Bus
	settings *config.Manager
	creds    auth.CredentialStore
	client   *ghapi.Client
	store    database.Store
}

func newApp() (*app, error) {
	logger := slog.Default()

	path := configPath
	if path == "" {
		p, err := application.Path(application.SettingsFile)
		if err != nil {
			return nil, err
		}

		path = p
	}

	bus := eventbus.New()

	mgr := config.NewManager(path, config.WithLogger(logger), config.WithPublisher(bus))

	set, err := mgr.Load()
	if err != nil {
		return nil, err
	}

	creds := auth.NewKeyringStore()

	client := ghapi.NewClient(auth.NewHTTPClient(creds, logger),
		ghapi.WithBaseURL(set.APIBaseURL),
		ghapi.WithLogger(logger),
	)

	return &app{
		logger:   logger,
		bus:      bus,
		settings: mgr,
		creds:    creds,
		client:   client,
	}, nil
}

func (a *app) Close() {
	if a.store == nil {
		return
	}

	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}

	a.store = nil
}

// openStore opens the configured cache backend once.
func (a *app) openStore() (database.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	set := a.settings.Get()

	store, err := database.Open(database.Config{Driver: set.Storage.Driver, Path: set.Storage.Path})
	if err != nil {
		return nil, fmt.Errorf("opening %s cache: %w", set.Storage.Driver, err)
	}

	a.store = store

	return store, nil
}

func (a *app) requireLogin() error {
	_, ok, err := a.creds.Load()
	if err != nil {
		return err
	}

	if !ok {
		return errNotLoggedIn
	}

	return nil
}

func (a *app) controller() (*auth.Controller, error) {
	host, err := auth.NewHost(a.settings.Get().OAuthHost)
	if err != nil {
		return nil, err
	}

	return auth.NewController(a.creds,
		auth.WithOAuthHost(host),
		auth.WithPublisher(a.bus),
		auth.WithFlowLogger(a.logger),
	), nil
}

// ghHost returns the host name used by the gh CLI for the OAuth host.
func (a *app) ghHost() string {
	u, err := url.Parse(a.settings.Get().OAuthHost)
	if err != nil || u.Hostname() == "" {
		return "github.com"
	}

	return u.Hostname()
}

// dispatcher registers the console sender and, when configured, Slack.
func (a *app) dispatcher(opts ...notify.DispatcherOption) *notify.Dispatcher {
	d := notify.NewDispatcher(append([]notify.DispatcherOption{notify.WithLogger(a.logger)}, opts...)...)
	d.Register(notify.NewConsoleSender(os.Stdout))

	a.configureSlack(d, a.settings.Get())

	return d
}

// configureSlack replaces the Slack sender of d to match set. An empty or
// invalid webhook leaves Slack unregistered.
func (a *app) configureSlack(d *notify.Dispatcher, set config.Settings) {
	d.Unregister(notify.SlackSenderName)

	if set.Slack.WebhookURL == "" {
		return
	}

	if err := notify.ValidateWebhookURL(set.Slack.WebhookURL); err != nil {
		a.logger.Warn("slack webhook ignored", "error", err)
		return
	}

	d.Register(notify.NewSlackSender(set.Slack.WebhookURL,
		notify.WithChannel(set.Slack.Channel),
		notify.WithRepoFilters(set.Slack.Repos...),
	))
}

func (a *app) scheduler(n notify.Notifier) (*scheduler.Scheduler, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}

	return scheduler.New(a.client, dedup.New(store), n, a.settings,
		scheduler.WithLogger(a.logger),
		scheduler.WithPublisher(a.bus),
		scheduler.WithRateLimits(a.client.Tracker()),
	), nil
}
