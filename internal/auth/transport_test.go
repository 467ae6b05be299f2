package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errStore struct{ MemoryStore }

func (*errStore) Load() (string, bool, error) {
	return "", false, &StoreError{Operation: "get", Err: errors.New("locked")}
}

func TestTransport_AuthorizationHeader(t *testing.T) {
	var got string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	tests := []struct {
		name  string
		store CredentialStore
		want  string
	}{
		{"with token", func() CredentialStore { s := &MemoryStore{}; _ = s.Save("gho_abc"); return s }(), "Bearer gho_abc"},
		{"without token", &MemoryStore{}, ""},
		{"store failure", &errStore{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = "unset"

			client := NewHTTPClient(tt.store, nil)

			resp, err := client.Get(srv.URL)
			require.NoError(t, err)
			_ = resp.Body.Close()

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransport_DoesNotMutateRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	store := &MemoryStore{}
	require.NoError(t, store.Save("tok"))

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := NewHTTPClient(store, nil).Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestTokenSource_ReadsStoreEachTime(t *testing.T) {
	store := &MemoryStore{}
	ts := TokenSource(store)

	_, err := ts.Token()
	assert.ErrorIs(t, err, ErrNoCredential)

	require.NoError(t, store.Save("one"))
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "one", tok.AccessToken)

	require.NoError(t, store.Save("two"))
	tok, err = ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "two", tok.AccessToken)
}
