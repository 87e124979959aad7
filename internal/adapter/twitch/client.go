package twitch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jakegt1/twitch-events/internal/domain"
	apperrors "github.com/jakegt1/twitch-events/internal/platform/errors"
	"github.com/jakegt1/twitch-events/internal/platform/version"
	"github.com/nicklaw5/helix/v2"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAPIURL            = "https://api.twitch.tv/helix"
	defaultHTTPTimeout       = 10 * time.Second
	defaultDeleteConcurrency = 4
	transportWebSocket       = "websocket"
)

// Client talks to the Helix REST API with the user token held in the credential store.
// No call is retried. A failed CreateSubscription wipes the credentials and triggers a reload.
type Client struct {
	clientID          string
	apiURL            string
	httpClient        *http.Client
	store             domain.CredentialStore
	reloader          domain.Reloader
	deleteConcurrency int
}

type Option func(*Client)

func WithAPIURL(url string) Option {
	return func(c *Client) { c.apiURL = url }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithReloader sets the hard reset invoked after a failed subscription create.
func WithReloader(r domain.Reloader) Option {
	return func(c *Client) { c.reloader = r }
}

func WithDeleteConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.deleteConcurrency = n
		}
	}
}

func NewClient(clientID string, store domain.CredentialStore, opts ...Option) *Client {
	c := &Client{
		clientID:          clientID,
		apiURL:            DefaultAPIURL,
		httpClient:        &http.Client{Timeout: defaultHTTPTimeout},
		store:             store,
		deleteConcurrency: defaultDeleteConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// requestDoer binds one call's context and attaches the auth headers to every request.
// It remembers the last status so a 200 with an undecodable body can be told apart
// from a transport failure.
type requestDoer struct {
	ctx        context.Context
	base       *http.Client
	token      string
	clientID   string
	lastStatus int
}

func (d *requestDoer) Do(req *http.Request) (*http.Response, error) {
	req = req.WithContext(d.ctx)
	req.Header.Set("Authorization", "Bearer "+d.token)
	req.Header.Set("Client-Id", d.clientID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.base.Do(req)
	if err != nil {
		return nil, err
	}
	d.lastStatus = resp.StatusCode
	return resp, nil
}

func (d *requestDoer) malformed(err error) bool {
	return err != nil && d.lastStatus == http.StatusOK
}

func (c *Client) helixFor(ctx context.Context) (*helix.Client, *requestDoer, error) {
	token, err := c.store.Token(ctx)
	if err != nil {
		return nil, nil, apperrors.AuthError("no access token available", err)
	}

	doer := &requestDoer{ctx: ctx, base: c.httpClient, token: token, clientID: c.clientID}
	hc, err := helix.NewClient(&helix.Options{
		ClientID:        c.clientID,
		UserAccessToken: token,
		APIBaseURL:      c.apiURL,
		UserAgent:       version.UserAgent(),
		HTTPClient:      doer,
	})
	if err != nil {
		return nil, nil, apperrors.InternalError("failed to create helix client", err)
	}
	return hc, doer, nil
}

// ResolveCurrentUser returns the user the stored token belongs to.
func (c *Client) ResolveCurrentUser(ctx context.Context) (domain.User, error) {
	hc, doer, err := c.helixFor(ctx)
	if err != nil {
		return domain.User{}, err
	}

	resp, err := hc.GetUsers(&helix.UsersParams{})
	if err != nil && !doer.malformed(err) {
		return domain.User{}, apperrors.AuthError("failed to resolve current user", fmt.Errorf("%w: %w", domain.ErrAuth, err))
	}
	if err != nil || resp.StatusCode != http.StatusOK || len(resp.Data.Users) == 0 {
		return domain.User{}, apperrors.AuthError("no user for access token", domain.ErrAuth).
			WithField("status", doer.lastStatus)
	}

	u := resp.Data.Users[0]
	return domain.User{ID: u.ID, Login: u.Login, DisplayName: u.DisplayName}, nil
}

// ListSubscriptions follows the pagination cursor. A malformed envelope ends the listing
// with whatever was collected so far.
func (c *Client) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	hc, doer, err := c.helixFor(ctx)
	if err != nil {
		return nil, err
	}

	subs := []domain.Subscription{}
	params := &helix.EventSubSubscriptionsParams{}
	for {
		resp, err := hc.GetEventSubSubscriptions(params)
		if doer.malformed(err) {
			slog.WarnContext(ctx, "Malformed subscription listing, treating as empty", "error", err)
			return subs, nil
		}
		if err != nil {
			return nil, apperrors.ExternalError("failed to list subscriptions", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, apperrors.ExternalError("failed to list subscriptions", fmt.Errorf("status %d: %s", resp.StatusCode, resp.ErrorMessage)).
				WithField("status", resp.StatusCode)
		}

		for _, s := range resp.Data.EventSubSubscriptions {
			subs = append(subs, domain.Subscription{
				ID:        s.ID,
				Type:      domain.SubscriptionKind(s.Type),
				Version:   s.Version,
				Status:    s.Status,
				SessionID: s.Transport.SessionID,
			})
		}

		cursor := resp.Data.Pagination.Cursor
		if cursor == "" || cursor == params.After {
			return subs, nil
		}
		params.After = cursor
	}
}

func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	hc, _, err := c.helixFor(ctx)
	if err != nil {
		return err
	}

	resp, err := hc.RemoveEventSubSubscription(id)
	if err != nil {
		return apperrors.ExternalError("failed to delete subscription", err).WithField("subscription_id", id)
	}
	if resp.StatusCode != http.StatusNoContent {
		return apperrors.ExternalError("failed to delete subscription", fmt.Errorf("status %d: %s", resp.StatusCode, resp.ErrorMessage)).
			WithField("subscription_id", id).
			WithField("status", resp.StatusCode)
	}
	return nil
}

// DeleteAllSubscriptions deletes every listed subscription and waits for all of them.
// Outcomes are returned in listing order. Only a failed listing is returned as an error.
func (c *Client) DeleteAllSubscriptions(ctx context.Context) ([]domain.DeleteOutcome, error) {
	subs, err := c.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := make([]domain.DeleteOutcome, len(subs))
	var g errgroup.Group
	g.SetLimit(c.deleteConcurrency)
	for i, sub := range subs {
		g.Go(func() error {
			outcomes[i] = domain.DeleteOutcome{SubscriptionID: sub.ID, Err: c.DeleteSubscription(ctx, sub.ID)}
			return nil
		})
	}
	_ = g.Wait()

	if err := c.store.DeleteSubscriptionID(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to clear stored subscription id", "error", err)
	}
	return outcomes, nil
}

// NewSubscriptionRequest builds the create payload binding kind to the websocket session.
func NewSubscriptionRequest(sessionID string, kind domain.SubscriptionKind, version, userID string) *helix.EventSubSubscription {
	return &helix.EventSubSubscription{
		Type:    string(kind),
		Version: version,
		Condition: helix.EventSubCondition{
			BroadcasterUserID: userID,
			ModeratorUserID:   userID,
			UserID:            userID,
		},
		Transport: helix.EventSubTransport{
			Method:    transportWebSocket,
			SessionID: sessionID,
		},
	}
}

// CreateSubscription registers kind for the session and returns the new subscription id.
// On failure the stored credentials are cleared and a reload is requested before the
// error is returned.
func (c *Client) CreateSubscription(ctx context.Context, sessionID string, kind domain.SubscriptionKind, version string) (string, error) {
	id, err := c.createSubscription(ctx, sessionID, kind, version)
	if err != nil {
		c.resetCredentials(ctx, kind, err)
		return "", err
	}
	return id, nil
}

func (c *Client) createSubscription(ctx context.Context, sessionID string, kind domain.SubscriptionKind, version string) (string, error) {
	user, err := c.ResolveCurrentUser(ctx)
	if err != nil {
		return "", err
	}

	hc, _, err := c.helixFor(ctx)
	if err != nil {
		return "", err
	}

	resp, err := hc.CreateEventSubSubscription(NewSubscriptionRequest(sessionID, kind, version, user.ID))
	if err != nil {
		return "", apperrors.ExternalError("failed to create subscription", err).WithField("type", string(kind))
	}
	if resp.StatusCode != http.StatusAccepted || len(resp.Data.EventSubSubscriptions) == 0 {
		cause := fmt.Errorf("%w: status %d: %s", domain.ErrSubscriptionRejected, resp.StatusCode, resp.ErrorMessage)
		return "", apperrors.ExternalError("failed to create subscription", cause).
			WithField("type", string(kind)).
			WithField("status", resp.StatusCode)
	}

	id := resp.Data.EventSubSubscriptions[0].ID
	if err := c.store.SetSubscriptionID(ctx, id); err != nil {
		slog.WarnContext(ctx, "Failed to store subscription id", "subscription_id", id, "error", err)
	}

	slog.InfoContext(ctx, "Subscription created", "subscription_id", id, "type", kind, "session_id", sessionID)
	return id, nil
}

func (c *Client) resetCredentials(ctx context.Context, kind domain.SubscriptionKind, cause error) {
	slog.ErrorContext(ctx, "Subscription create failed, resetting credentials", "type", kind, "error", cause)

	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		slog.ErrorContext(ctx, "Failed to clear credentials", "error", err)
	}
	if c.reloader != nil {
		c.reloader.Reload(cause)
	}
}
