package domain

import "errors"

var (
	ErrAuth                 = errors.New("authentication failed")
	ErrNoCredentials        = errors.New("no credentials stored")
	ErrMalformedFrame       = errors.New("malformed frame")
	ErrSubscriptionRejected = errors.New("subscription rejected")
)
