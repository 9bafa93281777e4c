package repository

import (
	"github.com/ShenYT0/msn-web/internal/domain/entity"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByLogin(login string) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	GetByDiscordID(discordID string) (*entity.User, error)
	Update(user *entity.User) error
	UpdateProfile(userID uint, updates map[string]interface{}) error
	UpdatePassword(userID uint, newPassword string) error
	ClearPassword(userID uint) error
	// List returns one page of users visible in the public member list,
	// excluding those who opted out via hide_in_list.
	List(limit, offset int) ([]entity.User, error)
	// ListLinked returns users holding a Discord linkage, optionally
	// filtered to one login. Used by the maintenance sweeps.
	ListLinked(login string) ([]entity.User, error)
	// ListByAvatarSource returns users whose displayed avatar comes from
	// the given source, optionally filtered to one login.
	ListByAvatarSource(source entity.AvatarSource, login string) ([]entity.User, error)
}
