package discord

import (
	"fmt"
	"sort"
)

// User is the subset of the Discord /users/@me response this application
// cares about. Discord returns a much larger object.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"` // avatar hash, empty when the user has none
	Email      string `json:"email"`
	Verified   bool   `json:"verified"` // whether Discord considers the email verified
}

// DisplayName returns the user-facing name: the global display name when
// set, the account username otherwise.
func (u *User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// AvatarURL returns the CDN URL for the user's avatar at the given size,
// or an empty string when the user has no avatar set. A non-positive size
// falls back to 128.
func (u *User) AvatarURL(size int) string {
	if u.Avatar == "" {
		return ""
	}
	if size <= 0 {
		size = 128
	}
	return fmt.Sprintf("%s/avatars/%s/%s.webp?size=%d", cdnURL, u.ID, u.Avatar, size)
}

// Role is a guild role. Position orders roles within the guild; higher
// positions sit higher in the role list.
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Color    int    `json:"color"`
}

// Guild is a Discord guild with its role list. Roles are kept sorted by
// descending position so that name lookups are deterministic.
type Guild struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Roles []Role `json:"roles"`
}

func (g *Guild) sortRoles() {
	sort.SliceStable(g.Roles, func(i, j int) bool {
		return g.Roles[i].Position > g.Roles[j].Position
	})
}

// RoleByName returns the first role in the sorted role list whose name is
// an exact, case-sensitive match, or nil when none matches.
func (g *Guild) RoleByName(name string) *Role {
	for i := range g.Roles {
		if g.Roles[i].Name == name {
			return &g.Roles[i]
		}
	}
	return nil
}

// Member is a guild member entry from the members listing endpoint.
type Member struct {
	User  User     `json:"user"`
	Nick  string   `json:"nick"`
	Roles []string `json:"roles"`
}
