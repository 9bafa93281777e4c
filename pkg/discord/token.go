package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	baseURL = "https://discord.com"
	apiURL  = baseURL + "/api/v10"
	cdnURL  = "https://cdn.discordapp.com"

	authorizeEndpoint = baseURL + "/oauth2/authorize"
)

// Scopes requested during the authorization redirect.
var Scopes = []string{"email", "identify"}

// Config holds the Discord-side configuration for the application. Values
// are validated at the point of use, not at construction, so a deployment
// without Discord configured still starts.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	GuildID      string
	BotToken     string
	AvatarSize   int
}

// TokenPair is the response of the OAuth2 token endpoint. Both tokens are
// opaque secrets and must never be logged in full.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// TokenClient performs the OAuth2 authorization-code and refresh-token
// exchanges against the Discord token endpoint. It is stateless: every
// call is independently authenticated with the client credentials.
type TokenClient struct {
	cfg        Config
	tokenURL   string
	httpClient *http.Client
}

// NewTokenClient builds a TokenClient with its own HTTP client so no
// state leaks between components.
func NewTokenClient(cfg Config) *TokenClient {
	return &TokenClient{
		cfg:        cfg,
		tokenURL:   apiURL + "/oauth2/token",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthorizationURL builds the authorization redirect for the given
// anti-CSRF state token. The state must be generated by the caller with
// cryptographically random entropy and verified on callback before any
// code exchange is attempted.
func (c *TokenClient) AuthorizationURL(state string) string {
	values := url.Values{}
	values.Set("client_id", c.cfg.ClientID)
	values.Set("redirect_uri", c.cfg.RedirectURL)
	values.Set("response_type", "code")
	values.Set("scope", strings.Join(Scopes, " "))
	if state != "" {
		values.Set("state", state)
	}
	return authorizeEndpoint + "?" + values.Encode()
}

// ExchangeCode trades an authorization code for a token pair. Codes are
// single-use: a failure must not be retried with the same code.
func (c *TokenClient) ExchangeCode(ctx context.Context, code string) (*TokenPair, error) {
	values := url.Values{}
	values.Set("grant_type", "authorization_code")
	values.Set("code", code)
	values.Set("redirect_uri", c.cfg.RedirectURL)
	return c.postToken(ctx, values)
}

// Refresh trades a stored refresh token for a new token pair. A rejection
// means the linkage is broken (token revoked), not a transient failure.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", refreshToken)
	return c.postToken(ctx, values)
}

func (c *TokenClient) postToken(ctx context.Context, values url.Values) (*TokenPair, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client id/secret", ErrConfig)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &AuthError{Status: resp.StatusCode, Body: string(body)}
	}

	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token in response", ErrUpstreamAuth)
	}
	return &pair, nil
}

// Redact shortens a token for log output. Tokens are opaque secrets and
// never appear in full in logs or audit events.
func Redact(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****"
}
