// Package memory provides a process-local credential store.
package memory

import (
	"context"
	"sync"

	"github.com/jakegt1/twitch-events/internal/domain"
)

type CredentialStore struct {
	mu             sync.RWMutex
	token          string
	subscriptionID string
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

func (s *CredentialStore) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return "", domain.ErrNoCredentials
	}
	return s.token, nil
}

func (s *CredentialStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	return nil
}

func (s *CredentialStore) HasToken(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token != "", nil
}

func (s *CredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.subscriptionID = ""
	return nil
}

// SubscriptionID returns "" when none is stored.
func (s *CredentialStore) SubscriptionID(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.subscriptionID, nil
}

func (s *CredentialStore) SetSubscriptionID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscriptionID = id
	return nil
}

func (s *CredentialStore) DeleteSubscriptionID(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscriptionID = ""
	return nil
}

func (s *CredentialStore) Ping(_ context.Context) error {
	return nil
}
