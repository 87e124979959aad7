package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/jakegt1/twitch-events/internal/domain"
	"github.com/jakegt1/twitch-events/internal/platform/crypto"
	goredis "github.com/redis/go-redis/v9"
)

const (
	tokenKey          = "twitch-events:credentials:token"
	subscriptionIDKey = "twitch-events:credentials:subscription_id"
)

type CredentialStore struct {
	rdb    goredis.Cmdable
	cipher crypto.Cipher
}

type Option func(*CredentialStore)

// WithCipher seals the access token before it is written. The subscription id is stored as is.
func WithCipher(c crypto.Cipher) Option {
	return func(s *CredentialStore) { s.cipher = c }
}

func NewCredentialStore(rdb goredis.Cmdable, opts ...Option) *CredentialStore {
	s := &CredentialStore{rdb: rdb, cipher: crypto.Plaintext{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CredentialStore) Token(ctx context.Context) (string, error) {
	sealed, err := s.get(ctx, tokenKey)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if sealed == "" {
		return "", domain.ErrNoCredentials
	}

	// A token sealed under another key is as good as no token.
	token, err := s.cipher.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNoCredentials, err)
	}
	return token, nil
}

func (s *CredentialStore) SetToken(ctx context.Context, token string) error {
	sealed, err := s.cipher.Seal(token)
	if err != nil {
		return fmt.Errorf("failed to seal token: %w", err)
	}
	if err := s.rdb.Set(ctx, tokenKey, sealed, 0).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// HasToken reports whether Token would succeed, so a token sealed under a rotated key
// counts as absent.
func (s *CredentialStore) HasToken(ctx context.Context) (bool, error) {
	_, err := s.Token(ctx)
	switch {
	case errors.Is(err, domain.ErrNoCredentials):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to check token: %w", err)
	default:
		return true, nil
	}
}

// Clear removes the token and the stored subscription id.
func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, tokenKey, subscriptionIDKey).Err(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

func (s *CredentialStore) SubscriptionID(ctx context.Context) (string, error) {
	id, err := s.get(ctx, subscriptionIDKey)
	if err != nil {
		return "", fmt.Errorf("failed to read subscription id: %w", err)
	}
	return id, nil
}

func (s *CredentialStore) SetSubscriptionID(ctx context.Context, id string) error {
	if err := s.rdb.Set(ctx, subscriptionIDKey, id, 0).Err(); err != nil {
		return fmt.Errorf("failed to store subscription id: %w", err)
	}
	return nil
}

func (s *CredentialStore) DeleteSubscriptionID(ctx context.Context) error {
	if err := s.rdb.Del(ctx, subscriptionIDKey).Err(); err != nil {
		return fmt.Errorf("failed to delete subscription id: %w", err)
	}
	return nil
}

func (s *CredentialStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// get returns "" for a missing key.
func (s *CredentialStore) get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return val, err
}
