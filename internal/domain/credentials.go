package domain

import "context"

// CredentialStore holds the bearer token and the last-known subscription id.
// Token returns ErrNoCredentials when no token is stored.
type CredentialStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	HasToken(ctx context.Context) (bool, error)
	Clear(ctx context.Context) error

	// Legacy accessors for the single last-created subscription id.

	SubscriptionID(ctx context.Context) (string, error)
	SetSubscriptionID(ctx context.Context, id string) error
	DeleteSubscriptionID(ctx context.Context) error

	Ping(ctx context.Context) error
}
