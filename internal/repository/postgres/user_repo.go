package postgres

import (
	"errors"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ShenYT0/msn-web/internal/domain/entity"
	apperrors "github.com/ShenYT0/msn-web/internal/pkg/errors"
)

// UserRepo implements repository.UserRepository.
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo creates a user repository.
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create persists a new user.
func (r *UserRepo) Create(user *entity.User) error {
	return r.db.Create(user).Error
}

// GetByID returns a user by primary key.
func (r *UserRepo) GetByID(id uint) (*entity.User, error) {
	var user entity.User
	err := r.db.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByLogin returns a user by login handle.
func (r *UserRepo) GetByLogin(login string) (*entity.User, error) {
	var user entity.User
	err := r.db.Where("login = ?", login).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns a user by email.
func (r *UserRepo) GetByEmail(email string) (*entity.User, error) {
	if email == "" {
		return nil, apperrors.ErrNotFound
	}
	var user entity.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByDiscordID returns a user by linked Discord identity id.
func (r *UserRepo) GetByDiscordID(discordID string) (*entity.User, error) {
	if discordID == "" {
		return nil, apperrors.ErrNotFound
	}
	var user entity.User
	err := r.db.Where("discord_id = ?", discordID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Update saves all fields of the user.
func (r *UserRepo) Update(user *entity.User) error {
	return r.db.Save(user).Error
}

// UpdateProfile updates the given fields without touching the password.
func (r *UserRepo) UpdateProfile(userID uint, updates map[string]interface{}) error {
	delete(updates, "password")
	updates["updated_at"] = time.Now()
	return r.db.Model(&entity.User{}).Where("id = ?", userID).Updates(updates).Error
}

// UpdatePassword hashes and stores a new password. The raw SQL bypasses
// the BeforeSave hook to avoid double hashing.
func (r *UserRepo) UpdatePassword(userID uint, newPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[UserRepo.UpdatePassword] failed to hash password for user id=%d: %v", userID, err)
		return err
	}

	return r.db.Exec(
		"UPDATE users SET password = ?, updated_at = ? WHERE id = ?",
		string(hashedPassword), time.Now(), userID,
	).Error
}

// ClearPassword removes password authentication from the account. Callers
// must first check that a Discord linkage remains.
func (r *UserRepo) ClearPassword(userID uint) error {
	return r.db.Exec(
		"UPDATE users SET password = '', updated_at = ? WHERE id = ?",
		time.Now(), userID,
	).Error
}

// List returns one page of users who have not opted out of the public
// member list. Filtering in the query keeps pages full: a hidden user
// never consumes a page slot.
func (r *UserRepo) List(limit, offset int) ([]entity.User, error) {
	var users []entity.User
	err := r.db.Where("hide_in_list = ?", false).Limit(limit).Offset(offset).Order("id").Find(&users).Error
	return users, err
}

// ListLinked returns users holding a Discord linkage, optionally filtered
// to one login.
func (r *UserRepo) ListLinked(login string) ([]entity.User, error) {
	query := r.db.Where("discord_id <> ''")
	if login != "" {
		query = query.Where("login = ?", login)
	}
	var users []entity.User
	err := query.Order("id").Find(&users).Error
	return users, err
}

// ListByAvatarSource returns users whose avatar comes from the given
// source, optionally filtered to one login.
func (r *UserRepo) ListByAvatarSource(source entity.AvatarSource, login string) ([]entity.User, error) {
	query := r.db.Where("avatar_source = ?", source)
	if login != "" {
		query = query.Where("login = ?", login)
	}
	var users []entity.User
	err := query.Order("id").Find(&users).Error
	return users, err
}
