package postgres

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ShenYT0/msn-web/internal/domain/entity"
	apperrors "github.com/ShenYT0/msn-web/internal/pkg/errors"
)

// GameRepo implements repository.GameRepository.
type GameRepo struct {
	db *gorm.DB
}

func NewGameRepo(db *gorm.DB) *GameRepo {
	return &GameRepo{db: db}
}

func (r *GameRepo) GetBySlug(slug string) (*entity.Game, error) {
	var game entity.Game
	err := r.db.Where("slug = ?", slug).First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &game, nil
}

func (r *GameRepo) List() ([]entity.Game, error) {
	var games []entity.Game
	err := r.db.Order("name").Find(&games).Error
	return games, err
}

// AddMember records a user playing a game. Re-adding an existing
// membership is a no-op.
func (r *GameRepo) AddMember(userID, gameID uint) error {
	membership := entity.UserGame{UserID: userID, GameID: gameID}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&membership).Error
}

func (r *GameRepo) RemoveMember(userID, gameID uint) error {
	return r.db.
		Where("user_id = ? AND game_id = ?", userID, gameID).
		Delete(&entity.UserGame{}).Error
}

func (r *GameRepo) ListMemberships(userID uint) ([]entity.UserGame, error) {
	var memberships []entity.UserGame
	err := r.db.Where("user_id = ?", userID).Find(&memberships).Error
	return memberships, err
}

func (r *GameRepo) ListMemberGames(userID uint) ([]entity.Game, error) {
	var games []entity.Game
	err := r.db.
		Joins("JOIN user_games ON user_games.game_id = games.id").
		Where("user_games.user_id = ?", userID).
		Order("games.name").
		Find(&games).Error
	return games, err
}
