package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	ghauth "github.com/cli/go-gh/v2/pkg/auth"
)

// Source indicates where an imported token was found.
type Source string

const (
	SourceFlag Source = "flag"
	SourceEnv  Source = "env"
	SourceCLI  Source = "cli"
	SourceNone Source = "none"
)

// Result contains the resolved token and its source.
type Result struct {
	Token  string
	Source Source
	Name   string // e.g. "GITHUB_TOKEN", "cli:oauth_token"
}

// TokenProvider returns a token and the name of its source, or an empty
// token when it has none. Errors are reserved for unexpected failures.
type TokenProvider func() (token string, sourceName string, err error)

// ErrNoToken is returned when no provider has a token.
var ErrNoToken = errors.New("no existing GitHub token found; set GITHUB_TOKEN or run 'gh auth login'")

// Resolver finds an existing token to import, checking providers in order.
type Resolver struct {
	providers []TokenProvider
	getenv    func(string) string
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{getenv: os.Getenv}
}

// DefaultResolver checks GITHUB_TOKEN, GH_TOKEN and then the gh CLI login
// for host.
func DefaultResolver(host string) *Resolver {
	return NewResolver().WithEnvs("GITHUB_TOKEN", "GH_TOKEN").WithGitHubCLI(host)
}

// WithFlagValue adds a token passed on the command line.
func (r *Resolver) WithFlagValue(value string) *Resolver {
	r.providers = append(r.providers, func() (string, string, error) {
		return strings.TrimSpace(value), "flag", nil
	})

	return r
}

// WithEnvs adds environment variables, checked in order.
func (r *Resolver) WithEnvs(envVars ...string) *Resolver {
	for _, envVar := range envVars {
		r.providers = append(r.providers, func() (string, string, error) {
			return strings.TrimSpace(r.getenv(envVar)), envVar, nil
		})
	}

	return r
}

// WithGitHubCLI adds the token stored by an existing gh CLI login.
func (r *Resolver) WithGitHubCLI(host string) *Resolver {
	r.providers = append(r.providers, func() (string, string, error) {
		token, source := ghauth.TokenForHost(host)
		if token == "" {
			return "", "", nil
		}

		return token, "cli:" + source, nil
	})

	return r
}

// WithProvider adds a custom provider.
func (r *Resolver) WithProvider(provider TokenProvider) *Resolver {
	r.providers = append(r.providers, provider)
	return r
}

// Resolve returns the first token found.
func (r *Resolver) Resolve() (*Result, error) {
	for _, provider := range r.providers {
		token, sourceName, err := provider()
		if err != nil {
			return nil, fmt.Errorf("token provider error: %w", err)
		}

		if token != "" {
			return &Result{
				Token:  token,
				Source: categorizeSource(sourceName),
				Name:   sourceName,
			}, nil
		}
	}

	return nil, ErrNoToken
}

func categorizeSource(name string) Source {
	switch {
	case name == "flag":
		return SourceFlag
	case strings.HasPrefix(name, "cli"):
		return SourceCLI
	case strings.Contains(name, "_") || strings.Contains(name, "TOKEN"):
		return SourceEnv
	default:
		return SourceNone
	}
}
