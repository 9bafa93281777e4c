package service

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ShenYT0/msn-web/internal/domain/entity"
	"github.com/ShenYT0/msn-web/internal/domain/repository"
	apperrors "github.com/ShenYT0/msn-web/internal/pkg/errors"
)

// avatarExtensions maps the sniffed content type of an upload to the
// file extension it is stored under. Anything else is rejected.
var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// AvatarService resolves and stores user avatars.
type AvatarService struct {
	userRepo     repository.UserRepository
	uploadDir    string
	gravatarSize int
	maxUploadKB  int
}

// NewAvatarService creates the avatar service. uploadDir is created if
// it does not exist yet.
func NewAvatarService(userRepo repository.UserRepository, uploadDir string, gravatarSize, maxUploadKB int) (*AvatarService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for AvatarService")
	}
	if uploadDir == "" {
		uploadDir = "uploads/avatars"
	}
	if gravatarSize <= 0 {
		gravatarSize = 80
	}
	if maxUploadKB <= 0 {
		maxUploadKB = 512
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create avatar upload dir: %w", err)
	}
	return &AvatarService{
		userRepo:     userRepo,
		uploadDir:    uploadDir,
		gravatarSize: gravatarSize,
		maxUploadKB:  maxUploadKB,
	}, nil
}

// EligibleSources reports which avatar sources the user can select.
// The result depends only on the user record: 'none' and 'upload' are
// always available, 'gravatar' needs an email address and 'discord'
// needs a live Discord linkage.
func EligibleSources(user *entity.User) []entity.AvatarSource {
	sources := []entity.AvatarSource{entity.AvatarNone, entity.AvatarUpload}
	if user.Email != "" {
		sources = append(sources, entity.AvatarGravatar)
	}
	if user.DiscordAccessToken != "" {
		sources = append(sources, entity.AvatarDiscord)
	}
	return sources
}

// SourceEligible reports whether the user may use the given source.
func SourceEligible(user *entity.User, source entity.AvatarSource) bool {
	for _, s := range EligibleSources(user) {
		if s == source {
			return true
		}
	}
	return false
}

// GravatarURL builds the gravatar URL for the user's email. An account
// without an email gets the anonymous placeholder.
func (s *AvatarService) GravatarURL(user *entity.User) string {
	if user.Email == "" {
		return fmt.Sprintf("https://www.gravatar.com/avatar/?s=%d&d=mp", s.gravatarSize)
	}
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(user.Email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?s=%d", hex.EncodeToString(sum[:]), s.gravatarSize)
}

// MaxUploadBytes is the upload size cap in bytes.
func (s *AvatarService) MaxUploadBytes() int64 {
	return int64(s.maxUploadKB) * 1024
}

// SaveUpload stores an uploaded avatar image and switches the user to
// the upload source. The image format is sniffed from the content, not
// the file name; only PNG, JPEG and WebP are accepted.
func (s *AvatarService) SaveUpload(user *entity.User, data []byte) (string, error) {
	if int64(len(data)) > s.MaxUploadBytes() {
		return "", fmt.Errorf("%w: avatar exceeds %d KB", apperrors.ErrValidation, s.maxUploadKB)
	}
	contentType := http.DetectContentType(data)
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return "", ErrUnsupportedAvatarFormat
	}

	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:16]) + ext
	path := filepath.Join(s.uploadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store avatar: %w", err)
	}

	image := "/" + filepath.ToSlash(path)
	if err := s.userRepo.UpdateProfile(user.ID, map[string]interface{}{
		"image":         image,
		"avatar_source": entity.AvatarUpload,
	}); err != nil {
		return "", err
	}
	user.Image = image
	user.AvatarSource = entity.AvatarUpload
	return image, nil
}

// Apply switches the user to the requested source and recomputes the
// stored image URL for sources that derive it.
func (s *AvatarService) Apply(user *entity.User, source entity.AvatarSource) error {
	if !SourceEligible(user, source) {
		return fmt.Errorf("%w: avatar source %q is not available for this account", apperrors.ErrValidation, source)
	}

	image := user.Image
	switch source {
	case entity.AvatarNone:
		image = ""
	case entity.AvatarGravatar:
		image = s.GravatarURL(user)
	case entity.AvatarUpload:
		// keeps whatever SaveUpload stored
	case entity.AvatarDiscord:
		// cleared until the avatar sync resolves the CDN URL, so an
		// image from another source never shows under this one
		image = ""
	}

	if err := s.userRepo.UpdateProfile(user.ID, map[string]interface{}{
		"image":         image,
		"avatar_source": source,
	}); err != nil {
		return err
	}
	user.Image = image
	user.AvatarSource = source
	return nil
}

// Reset clears the avatar back to 'none'. Used when the source that
// produced the current image becomes unavailable.
func (s *AvatarService) Reset(user *entity.User) error {
	return s.Apply(user, entity.AvatarNone)
}
