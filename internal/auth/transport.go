package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/inovacc/ghnotify/internal/ghapi"
	"golang.org/x/oauth2"
)

type storeTokenSource struct {
	store CredentialStore
}

// TokenSource reads the credential from store on every call. Tokens are not
// cached between requests.
func TokenSource(store CredentialStore) oauth2.TokenSource {
	return storeTokenSource{store: store}
}

func (s storeTokenSource) Token() (*oauth2.Token, error) {
	token, ok, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrNoCredential
	}

	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

// Transport attaches the stored bearer token to outgoing requests. Requests
// go out unauthenticated when no token is available.
type Transport struct {
	Base   http.RoundTripper
	Source oauth2.TokenSource
	Logger *slog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	tok, err := t.Source.Token()
	if err != nil {
		if !errors.Is(err, ErrNoCredential) && t.Logger != nil {
			t.Logger.Debug("credential unavailable, sending unauthenticated request", "error", err)
		}

		return base.RoundTrip(req)
	}

	r2 := req.Clone(req.Context())
	tok.SetAuthHeader(r2)

	return base.RoundTrip(r2)
}

// NewHTTPClient returns an API client transport authenticated from store.
func NewHTTPClient(store CredentialStore, logger *slog.Logger) *http.Client {
	if logger == nil {
		logger = slog.Default()
	}

	return ghapi.NewHTTPClient(func(base http.RoundTripper) http.RoundTripper {
		return &Transport{Base: base, Source: TokenSource(store), Logger: logger}
	})
}
