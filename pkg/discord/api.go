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

// membersPageLimit is the maximum page size Discord accepts on the guild
// members endpoint.
const membersPageLimit = 1000

// TokenKind selects the Authorization scheme for API calls.
type TokenKind int

const (
	// TokenUser authenticates as a user via "Bearer <token>".
	TokenUser TokenKind = iota
	// TokenBot authenticates as the application bot via "Bot <token>".
	TokenBot
)

func (k TokenKind) scheme() string {
	if k == TokenBot {
		return "Bot"
	}
	return "Bearer"
}

// InferTokenKind guesses the token kind from its shape: bot tokens contain
// a "." separator, user access tokens do not. This heuristic is fragile;
// new call sites must pass an explicit TokenKind instead.
func InferTokenKind(token string) TokenKind {
	if strings.Contains(token, ".") {
		return TokenBot
	}
	return TokenUser
}

// API is an authenticated client for the Discord REST API. It holds no
// session-spanning cache; every instance is bound to one token.
type API struct {
	token      string
	kind       TokenKind
	baseURL    string
	httpClient *http.Client
}

// NewAPI builds an API client for the given token. The token kind is
// explicit at every call site.
func NewAPI(token string, kind TokenKind) (*API, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: access token", ErrConfig)
	}
	return &API{
		token:      token,
		kind:       kind,
		baseURL:    apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (a *API) do(ctx context.Context, method, path string, query url.Values, out interface{}) error {
	u := a.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create api request: %w", err)
	}
	req.Header.Set("Authorization", a.kind.scheme()+" "+a.token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode api response: %w", err)
	}
	return nil
}

// CurrentUser fetches the profile of the token's owner.
func (a *API) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := a.do(ctx, http.MethodGet, "/users/@me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Guild fetches a guild with its roles sorted by descending position.
func (a *API) Guild(ctx context.Context, guildID string) (*Guild, error) {
	if guildID == "" {
		return nil, fmt.Errorf("%w: guild id", ErrConfig)
	}
	var guild Guild
	if err := a.do(ctx, http.MethodGet, "/guilds/"+guildID, nil, &guild); err != nil {
		return nil, err
	}
	guild.sortRoles()
	return &guild, nil
}

// GuildMembers lists every member of the guild, paginating with an
// "after" cursor set to the last seen member id. Each page strictly
// advances the cursor or the loop terminates.
func (a *API) GuildMembers(ctx context.Context, guildID string) ([]Member, error) {
	if guildID == "" {
		return nil, fmt.Errorf("%w: guild id", ErrConfig)
	}

	var members []Member
	after := ""
	for {
		query := url.Values{}
		query.Set("limit", fmt.Sprintf("%d", membersPageLimit))
		if after != "" {
			query.Set("after", after)
		}

		var page []Member
		if err := a.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members", query, &page); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return members, nil
		}

		members = append(members, page...)
		last := page[len(page)-1].User.ID
		if last == "" || last == after {
			return members, nil
		}
		after = last
	}
}

// AddMemberRole grants a role to a guild member. Discord treats re-adding
// an already-held role as success, so the call is idempotent for callers.
func (a *API) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return a.do(ctx, http.MethodPut, memberRolePath(guildID, userID, roleID), nil, nil)
}

// RemoveMemberRole revokes a role from a guild member. Removing an absent
// role is also success on Discord's side.
func (a *API) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return a.do(ctx, http.MethodDelete, memberRolePath(guildID, userID, roleID), nil, nil)
}

func memberRolePath(guildID, userID, roleID string) string {
	return "/guilds/" + guildID + "/members/" + userID + "/roles/" + roleID
}
