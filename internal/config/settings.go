// Package config holds the user settings file and notifies subscribers when
// it changes.
package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	MinInterval     = 1
	MaxInterval     = 30
	DefaultInterval = 5

	MinPerPage     = 1
	MaxPerPage     = 100
	DefaultPerPage = 50

	DefaultScope      = "notifications repo"
	DefaultAPIBaseURL = "https://api.github.com"
	DefaultOAuthHost  = "https://github.com"
	DefaultDriver     = "bolt"
)

// ErrInvalidInterval is returned for a polling interval outside [1,30].
var ErrInvalidInterval = fmt.Errorf("polling interval must be between %d and %d minutes", MinInterval, MaxInterval)

// ErrInvalidPerPage is returned for a page size outside [1,100].
var ErrInvalidPerPage = fmt.Errorf("per_page must be between %d and %d", MinPerPage, MaxPerPage)

// Settings are the user preferences.
type Settings struct {
	PollingIntervalMinutes int     `yaml:"polling_interval_minutes"`
	ParticipatingOnly      bool    `yaml:"participating_only"`
	PerPage                int     `yaml:"per_page"`
	NotificationsPaused    bool    `yaml:"notifications_paused"`
	SoundEnabled           bool    `yaml:"sound_enabled"`
	ClientID               string  `yaml:"client_id"`
	Scope                  string  `yaml:"scope"`
	APIBaseURL             string  `yaml:"api_base_url"`
	OAuthHost              string  `yaml:"oauth_host"`
	Storage                Storage `yaml:"storage"`
	Slack                  Slack   `yaml:"slack"`
}

// Storage selects the cache backend.
type Storage struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"`
}

// Slack configures optional forwarding to an incoming webhook.
type Slack struct {
	WebhookURL string   `yaml:"webhook_url,omitempty"`
	Channel    string   `yaml:"channel,omitempty"`
	Repos      []string `yaml:"repos,omitempty"`
}

// Defaults returns the settings of a fresh install.
func Defaults() Settings {
	return Settings{
		PollingIntervalMinutes: DefaultInterval,
		ParticipatingOnly:      true,
		PerPage:                DefaultPerPage,
		NotificationsPaused:    false,
		SoundEnabled:           true,
		Scope:                  DefaultScope,
		APIBaseURL:             DefaultAPIBaseURL,
		OAuthHost:              DefaultOAuthHost,
		Storage:                Storage{Driver: DefaultDriver},
	}
}

// Interval returns the polling interval as a duration.
func (s Settings) Interval() time.Duration {
	return time.Duration(s.PollingIntervalMinutes) * time.Minute
}

// Validate checks values written through the CLI.
func (s Settings) Validate() error {
	var errs []error

	if s.PollingIntervalMinutes < MinInterval || s.PollingIntervalMinutes > MaxInterval {
		errs = append(errs, ErrInvalidInterval)
	}

	if s.PerPage < MinPerPage || s.PerPage > MaxPerPage {
		errs = append(errs, ErrInvalidPerPage)
	}

	switch s.Storage.Driver {
	case "bolt", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", s.Storage.Driver))
	}

	return errors.Join(errs...)
}

// normalize clamps a hand-edited file into range and fills empty fields.
func (s Settings) normalize() Settings {
	d := Defaults()

	s.PollingIntervalMinutes = max(MinInterval, min(MaxInterval, s.PollingIntervalMinutes))

	if s.PerPage <= 0 {
		s.PerPage = d.PerPage
	}

	s.PerPage = min(MaxPerPage, s.PerPage)

	if s.Scope == "" {
		s.Scope = d.Scope
	}

	if s.APIBaseURL == "" {
		s.APIBaseURL = d.APIBaseURL
	}

	if s.OAuthHost == "" {
		s.OAuthHost = d.OAuthHost
	}

	if s.Storage.Driver == "" {
		s.Storage.Driver = d.Storage.Driver
	}

	return s
}
