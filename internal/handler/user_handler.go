package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ShenYT0/msn-web/internal/domain/entity"
	"github.com/ShenYT0/msn-web/internal/middleware"
	"github.com/ShenYT0/msn-web/internal/service"
)

// UserHandler serves the member list, profile pages and settings.
type UserHandler struct {
	userService  *service.UserService
	avatars      *service.AvatarService
	verification *service.EmailVerificationService
}

func NewUserHandler(
	userService *service.UserService,
	avatars *service.AvatarService,
	verification *service.EmailVerificationService,
) *UserHandler {
	return &UserHandler{
		userService:  userService,
		avatars:      avatars,
		verification: verification,
	}
}

// SettingsRequest carries the editable profile fields. Absent fields are
// left untouched.
type SettingsRequest struct {
	Login        *string `json:"login"`
	Email        *string `json:"email"`
	DisplayName  *string `json:"display_name"`
	Bio          *string `json:"bio"`
	HideInList   *bool   `json:"hide_in_list"`
	AvatarSource *string `json:"avatar_source"`
}

// ChangePasswordRequest sets or changes the account password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// DeletePasswordRequest removes password authentication.
type DeletePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
}

// ConfirmEmailRequest carries the emailed verification code.
type ConfirmEmailRequest struct {
	Code string `json:"code" binding:"required"`
}

// List returns one page of visible members.
func (h *UserHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	users, err := h.userService.List(page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "page": page})
}

// Get returns one member's public profile.
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.userService.GetByLogin(c.Param("login"))
	if err != nil {
		respondError(c, err)
		return
	}

	games, err := h.userService.Games(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "games": games})
}

// Settings returns the authenticated account with its eligible avatar
// sources, so the form only offers what the account can actually use.
func (h *UserHandler) Settings(c *gin.Context) {
	user := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"user":           user,
		"avatar_sources": service.EligibleSources(user),
	})
}

// UpdateSettings applies submitted profile fields.
func (h *UserHandler) UpdateSettings(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	input := service.SettingsInput{
		Login:       req.Login,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		HideInList:  req.HideInList,
	}
	if req.AvatarSource != nil {
		src := entity.AvatarSource(*req.AvatarSource)
		input.AvatarSource = &src
	}

	if err := h.userService.UpdateSettings(c.Request.Context(), user, input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":           user,
		"avatar_sources": service.EligibleSources(user),
	})
}

// UploadAvatar stores a new avatar image and switches to it.
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	user := middleware.CurrentUser(c)

	file, _, err := c.Request.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing avatar file", "error_type": "invalid_request"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.avatars.MaxUploadBytes()+1))
	if err != nil {
		respondError(c, err)
		return
	}

	image, err := h.avatars.SaveUpload(user, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": image, "user": user})
}

// ChangePassword sets a new password, requiring the current one when set.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	if err := h.userService.ChangePassword(user, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// DeletePassword removes password authentication from the account.
func (h *UserHandler) DeletePassword(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req DeletePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	if err := h.userService.DeletePassword(user, req.CurrentPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password removed"})
}

// SendVerificationCode emails a fresh verification code.
func (h *UserHandler) SendVerificationCode(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.verification.SendCode(c.Request.Context(), user); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent"})
}

// ConfirmEmail checks the submitted code and marks the email verified.
func (h *UserHandler) ConfirmEmail(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req ConfirmEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	if err := h.verification.ConfirmCode(c.Request.Context(), user, req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// VerificationStatus reports the email verification state.
func (h *UserHandler) VerificationStatus(c *gin.Context) {
	user := middleware.CurrentUser(c)
	status, err := h.verification.Status(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
