package entity

import (
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AvatarSource is the selected origin of a user's displayed profile image.
type AvatarSource string

const (
	AvatarNone     AvatarSource = "none"
	AvatarUpload   AvatarSource = "upload"
	AvatarGravatar AvatarSource = "gravatar"
	AvatarDiscord  AvatarSource = "discord"
)

// User is a local account, created either through password registration or
// on first successful Discord login.
//
// Invariant (enforced in services): AvatarSource == AvatarDiscord implies a
// non-empty DiscordID and a non-empty DiscordAccessToken.
type User struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Login        string       `gorm:"size:30;not null;uniqueIndex" json:"login"`
	Email        string       `gorm:"size:100;not null;default:''" json:"email"`
	Password     string       `gorm:"size:100;not null;default:''" json:"-"`
	DisplayName  string       `gorm:"size:100;not null;default:''" json:"display_name"`
	Bio          string       `gorm:"size:1000;not null;default:''" json:"bio"`
	Image        string       `gorm:"size:255;not null;default:''" json:"image"`
	AvatarSource AvatarSource `gorm:"size:20;not null;default:'none'" json:"avatar_source"`
	LastSeen     *time.Time   `gorm:"type:timestamp" json:"last_seen,omitempty"`
	HideInList   bool         `gorm:"not null;default:false" json:"hide_in_list"`

	DiscordID           string `gorm:"size:30;not null;default:'';index" json:"-"`
	DiscordAccessToken  string `gorm:"size:255;not null;default:''" json:"-"`
	DiscordRefreshToken string `gorm:"size:255;not null;default:''" json:"-"`

	EmailVerifiedAt *time.Time `gorm:"type:timestamp" json:"email_verified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName defines the GORM table name.
func (User) TableName() string {
	return "users"
}

// BeforeSave hashes the password before persisting, unless it is empty or
// already a bcrypt hash.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if len(u.Password) > 0 && !strings.HasPrefix(u.Password, "$2a$") &&
		!strings.HasPrefix(u.Password, "$2b$") && !strings.HasPrefix(u.Password, "$2y$") {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[User.BeforeSave] failed to hash password for login=%s: %v", u.Login, err)
			return err
		}
		u.Password = string(hashedPassword)
	}
	return nil
}

// CheckPassword reports whether the given password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	if u.Password == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// HasPassword reports whether password authentication is available for
// this account.
func (u *User) HasPassword() bool {
	return u.Password != ""
}

// HasDiscord reports whether the account is linked to a Discord identity.
func (u *User) HasDiscord() bool {
	return u.DiscordID != ""
}

// EmailVerified reports whether the user's email has been confirmed.
func (u *User) EmailVerified() bool {
	return u.Email != "" && u.EmailVerifiedAt != nil
}

// Name returns the display name when set, the login otherwise.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Login
}
