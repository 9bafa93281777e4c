package discord

import (
	"errors"
	"fmt"
)

// Sentinel errors exposed to callers for errors.Is checks.
var (
	// ErrConfig is returned when a required Discord configuration value
	// (client id, client secret, guild id, bot token) is missing at the
	// point of use.
	ErrConfig = errors.New("discord config value missing")

	// ErrUpstreamAuth is returned when Discord rejects our credentials or
	// tokens: an expired/reused authorization code, a revoked refresh
	// token, or a 401/403 on an API call. Callers must treat this as
	// "linkage broken", not as a transient failure.
	ErrUpstreamAuth = errors.New("discord rejected credentials")

	// ErrUpstreamAPI is returned for any other non-success response from
	// the Discord API.
	ErrUpstreamAPI = errors.New("discord api request failed")
)

// APIError carries the HTTP status and a truncated response body for a
// failed Discord API call. It unwraps to ErrUpstreamAuth for auth-shaped
// statuses and ErrUpstreamAPI otherwise.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api: status=%d body=%s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	if e.Status == 401 || e.Status == 403 {
		return ErrUpstreamAuth
	}
	return ErrUpstreamAPI
}

// AuthError is a failed call to the OAuth2 token endpoint. The token
// endpoint rejecting a grant always means the code or refresh token is
// dead, so it always unwraps to ErrUpstreamAuth.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("discord token endpoint: status=%d body=%s", e.Status, e.Body)
}

func (e *AuthError) Unwrap() error {
	return ErrUpstreamAuth
}
