package entity

import "time"

// Game is a community game. The Discord guild carries a role named after
// each game; membership changes are mirrored onto that role best-effort.
type Game struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Slug      string    `gorm:"size:50;not null;uniqueIndex" json:"slug"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (Game) TableName() string {
	return "games"
}

// UserGame links a user to a game they play.
type UserGame struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_game,priority:1" json:"user_id"`
	GameID    uint      `gorm:"not null;uniqueIndex:idx_user_game,priority:2" json:"game_id"`
	Favorite  bool      `gorm:"not null;default:false" json:"favorite"`
	CreatedAt time.Time `json:"created_at"`
}

func (UserGame) TableName() string {
	return "user_games"
}
