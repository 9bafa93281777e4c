package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ShenYT0/msn-web/internal/pkg/errors"
	"github.com/ShenYT0/msn-web/internal/service"
	"github.com/ShenYT0/msn-web/pkg/discord"
)

// respondError maps service and repository errors onto a JSON error
// response with a stable error_type the frontend can switch on.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid login or password", "error_type": "invalid_credentials"})
	case errors.Is(err, service.ErrStateMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Login attempt expired or tampered with, please retry", "error_type": "oauth_state_mismatch"})
	case errors.Is(err, service.ErrRegistrationRequired):
		c.JSON(http.StatusConflict, gin.H{"error": "No account for this Discord identity yet", "error_type": "registration_required"})
	case errors.Is(err, service.ErrPasswordRequired):
		c.JSON(http.StatusConflict, gin.H{"error": "Set a password before unlinking Discord", "error_type": "password_required"})
	case errors.Is(err, service.ErrDiscordRequired):
		c.JSON(http.StatusConflict, gin.H{"error": "Link Discord before removing your password", "error_type": "discord_link_required"})
	case errors.Is(err, service.ErrUnsupportedAvatarFormat):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Avatar must be a PNG, JPEG or WebP image", "error_type": "unsupported_avatar_format"})
	case errors.Is(err, service.ErrInvalidVerificationCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Verification code is incorrect", "error_type": "invalid_verification_code"})
	case errors.Is(err, service.ErrVerificationExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Verification code expired, request a new one", "error_type": "verification_expired"})
	case errors.Is(err, service.ErrVerificationCooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Please wait before requesting another code", "error_type": "verification_resend_cooldown"})
	case errors.Is(err, service.ErrVerificationAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many attempts, request a new code", "error_type": "verification_attempts_exceeded"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "conflict"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "error_type": "unauthorized"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden", "error_type": "forbidden"})
	case errors.Is(err, discord.ErrConfig):
		log.Printf("[Handler] discord configuration missing: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Discord integration is not configured", "error_type": "discord_not_configured"})
	case errors.Is(err, discord.ErrUpstreamAuth):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Discord rejected the linked credentials, please re-link", "error_type": "discord_auth_failed"})
	case errors.Is(err, discord.ErrUpstreamAPI):
		log.Printf("[Handler] discord api error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Discord is unavailable, try again later", "error_type": "discord_unavailable"})
	default:
		log.Printf("[Handler] internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "server_error"})
	}
}
