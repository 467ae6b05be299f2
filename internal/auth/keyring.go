package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/inovacc/ghnotify/internal/application"
	"github.com/zalando/go-keyring"
)

// keyringTimeout bounds every keyring call; some backends hang without a
// session bus.
const keyringTimeout = 5 * time.Second

// KeyringStore keeps the token in the OS keyring.
type KeyringStore struct {
	service string
	account string
	timeout time.Duration
}

// NewKeyringStore returns a store under the application's keyring entry.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{
		service: application.KeyringService,
		account: application.KeyringAccount,
		timeout: keyringTimeout,
	}
}

func (s *KeyringStore) Save(token string) error {
	_, err := s.do("set", func() (string, error) {
		return "", keyring.Set(s.service, s.account, token)
	})

	return err
}

func (s *KeyringStore) Load() (string, bool, error) {
	token, err := s.do("get", func() (string, error) {
		return keyring.Get(s.service, s.account)
	})
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}

		return "", false, err
	}

	return token, token != "", nil
}

func (s *KeyringStore) Delete() error {
	_, err := s.do("delete", func() (string, error) {
		return "", keyring.Delete(s.service, s.account)
	})
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}

	return err
}

// do runs fn with the store timeout and wraps failures in StoreError.
func (s *KeyringStore) do(op string, fn func() (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	type result struct {
		value string
		err   error
	}

	resultCh := make(chan result, 1)

	go func() {
		v, err := fn()
		resultCh <- result{value: v, err: err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return "", &StoreError{Operation: op, Err: r.err}
		}

		return r.value, nil
	case <-ctx.Done():
		return "", &StoreError{Operation: op, Err: ctx.Err()}
	}
}

// MemoryStore is an in-process CredentialStore, used when no keyring is
// available and in tests.
type MemoryStore struct {
	mu    sync.Mutex
	token string
	set   bool
}

func (m *MemoryStore) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token, m.set = token, true

	return nil
}

func (m *MemoryStore) Load() (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.token, m.set, nil
}

func (m *MemoryStore) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token, m.set = "", false

	return nil
}
