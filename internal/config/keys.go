package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type setter func(*Settings, string) error

var keys = map[string]setter{
	"polling_interval_minutes": func(s *Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("polling_interval_minutes: %w", err)
		}
		s.PollingIntervalMinutes = n
		return nil
	},
	"per_page": func(s *Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("per_page: %w", err)
		}
		s.PerPage = n
		return nil
	},
	"participating_only":   boolSetter(func(s *Settings) *bool { return &s.ParticipatingOnly }),
	"notifications_paused": boolSetter(func(s *Settings) *bool { return &s.NotificationsPaused }),
	"sound_enabled":        boolSetter(func(s *Settings) *bool { return &s.SoundEnabled }),
	"client_id":            stringSetter(func(s *Settings) *string { return &s.ClientID }),
	"scope":                stringSetter(func(s *Settings) *string { return &s.Scope }),
	"api_base_url":         stringSetter(func(s *Settings) *string { return &s.APIBaseURL }),
	"oauth_host":           stringSetter(func(s *Settings) *string { return &s.OAuthHost }),
	"storage.driver":       stringSetter(func(s *Settings) *string { return &s.Storage.Driver }),
	"storage.path":         stringSetter(func(s *Settings) *string { return &s.Storage.Path }),
	"slack.webhook_url":    stringSetter(func(s *Settings) *string { return &s.Slack.WebhookURL }),
	"slack.channel":        stringSetter(func(s *Settings) *string { return &s.Slack.Channel }),
	"slack.repos": func(s *Settings, v string) error {
		s.Slack.Repos = nil
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				s.Slack.Repos = append(s.Slack.Repos, r)
			}
		}
		return nil
	},
}

func boolSetter(field func(*Settings) *bool) setter {
	return func(s *Settings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		*field(s) = b
		return nil
	}
}

func stringSetter(field func(*Settings) *string) setter {
	return func(s *Settings, v string) error {
		*field(s) = strings.TrimSpace(v)
		return nil
	}
}

// Keys lists the names accepted by Set.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

// Set assigns a single key from its string form and saves the result.
func (m *Manager) Set(key, value string) (Settings, error) {
	fn, ok := keys[strings.ToLower(key)]
	if !ok {
		return Settings{}, fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}

	s := m.Get()
	s.Slack.Repos = append([]string(nil), s.Slack.Repos...)

	if err := fn(&s, value); err != nil {
		return Settings{}, err
	}

	if err := m.Save(s); err != nil {
		return Settings{}, err
	}

	return s, nil
}
