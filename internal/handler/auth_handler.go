package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ShenYT0/msn-web/internal/middleware"
	"github.com/ShenYT0/msn-web/internal/service"
	"github.com/ShenYT0/msn-web/pkg/auth"
)

// AuthHandler serves password registration, login and logout.
type AuthHandler struct {
	authService *service.AuthService
	jwtService  *auth.JWTService
}

func NewAuthHandler(authService *service.AuthService, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		jwtService:  jwtService,
	}
}

// RegisterRequest is the password registration payload.
type RegisterRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the password login payload.
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account and starts a session.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	user, err := h.authService.Register(req.Login, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.startSession(c, user.ID, user.Login); err != nil {
		respondError(c, err)
		return
	}
	log.Printf("[AuthHandler] user id=%d login=%s registered and logged in", user.ID, user.Login)
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login checks credentials and starts a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	user, err := h.authService.Login(req.Login, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.startSession(c, user.ID, user.Login); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout drops the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.jwtService.ClearSessionCookie(c.Writer)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "error_type": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) startSession(c *gin.Context, userID uint, login string) error {
	token, err := h.jwtService.Issue(userID, login)
	if err != nil {
		return err
	}
	h.jwtService.SetSessionCookie(c.Writer, token)
	return nil
}
