package repository

import "github.com/ShenYT0/msn-web/internal/domain/entity"

// GameRepository defines persistence operations for games and the
// user-game membership relation.
type GameRepository interface {
	GetBySlug(slug string) (*entity.Game, error)
	List() ([]entity.Game, error)
	AddMember(userID, gameID uint) error
	RemoveMember(userID, gameID uint) error
	ListMemberships(userID uint) ([]entity.UserGame, error)
	// ListMemberGames returns the games the user is a member of.
	ListMemberGames(userID uint) ([]entity.Game, error)
}
