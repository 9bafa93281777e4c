package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ShenYT0/msn-web/internal/middleware"
	"github.com/ShenYT0/msn-web/internal/service"
	"github.com/ShenYT0/msn-web/pkg/auth"
)

// oauthSessionCookie identifies the browser across the OAuth redirect
// round trip; the anti-CSRF state nonce is stored server-side under it.
const oauthSessionCookie = "msn_oauth_sess"

const oauthSessionMaxAge = 900 // seconds, outlives the state TTL

// DiscordHandler serves the Discord OAuth login, registration completion
// and unlinking endpoints.
type DiscordHandler struct {
	discordAuth *service.DiscordAuthService
	syncService *service.DiscordSyncService
	jwtService  *auth.JWTService
	production  bool
}

func NewDiscordHandler(
	discordAuth *service.DiscordAuthService,
	syncService *service.DiscordSyncService,
	jwtService *auth.JWTService,
	production bool,
) *DiscordHandler {
	return &DiscordHandler{
		discordAuth: discordAuth,
		syncService: syncService,
		jwtService:  jwtService,
		production:  production,
	}
}

// CompleteRegistrationRequest finishes a Discord-initiated signup.
type CompleteRegistrationRequest struct {
	Login     string `json:"login" binding:"required"`
	UseAvatar bool   `json:"use_avatar"`
}

// Begin starts the OAuth flow: issues the browser an opaque flow cookie,
// stores a state nonce under it and redirects to Discord.
func (h *DiscordHandler) Begin(c *gin.Context) {
	sessionID, err := h.ensureOAuthSession(c)
	if err != nil {
		respondError(c, err)
		return
	}

	authURL, err := h.discordAuth.BeginLogin(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// Callback receives code and state from Discord. Three outcomes: an
// existing account logs in, an unknown identity is told to register, or
// the state check fails and the flow aborts.
func (h *DiscordHandler) Callback(c *gin.Context) {
	sessionID, err := c.Cookie(oauthSessionCookie)
	if err != nil || sessionID == "" {
		respondError(c, service.ErrStateMismatch)
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Discord did not return an authorization code", "error_type": "invalid_request"})
		return
	}

	user, identity, err := h.discordAuth.HandleCallback(c.Request.Context(), sessionID, state, code)
	if err != nil {
		if errors.Is(err, service.ErrRegistrationRequired) {
			c.JSON(http.StatusConflict, gin.H{
				"error_type": "registration_required",
				"identity": gin.H{
					"username":     identity.Username,
					"display_name": identity.DisplayName(),
					"has_avatar":   identity.Avatar != "",
				},
			})
			return
		}
		respondError(c, err)
		return
	}

	// keep the displayed avatar current on every Discord login
	if _, syncErr := h.syncService.SyncAvatar(c.Request.Context(), user); syncErr != nil {
		log.Printf("[DiscordHandler] avatar sync after login failed for user=%s: %v", user.Login, syncErr)
	}

	if err := h.startSession(c, user.ID, user.Login); err != nil {
		respondError(c, err)
		return
	}
	h.clearOAuthSession(c)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CompleteRegistration creates the account for a staged Discord identity
// and logs it in.
func (h *DiscordHandler) CompleteRegistration(c *gin.Context) {
	sessionID, err := c.Cookie(oauthSessionCookie)
	if err != nil || sessionID == "" {
		respondError(c, service.ErrStateMismatch)
		return
	}

	var req CompleteRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	user, err := h.discordAuth.CompleteRegistration(c.Request.Context(), sessionID, req.Login, req.UseAvatar)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.startSession(c, user.ID, user.Login); err != nil {
		respondError(c, err)
		return
	}
	h.clearOAuthSession(c)
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Unlink removes the Discord linkage from the authenticated account.
func (h *DiscordHandler) Unlink(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "error_type": "unauthorized"})
		return
	}

	if err := h.discordAuth.Unlink(user); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *DiscordHandler) startSession(c *gin.Context, userID uint, login string) error {
	token, err := h.jwtService.Issue(userID, login)
	if err != nil {
		return err
	}
	h.jwtService.SetSessionCookie(c.Writer, token)
	return nil
}

// ensureOAuthSession returns the browser's flow id, minting a fresh one
// when absent so repeated Begin calls reuse the same server-side slot.
func (h *DiscordHandler) ensureOAuthSession(c *gin.Context) (string, error) {
	if existing, err := c.Cookie(oauthSessionCookie); err == nil && existing != "" {
		return existing, nil
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	sessionID := hex.EncodeToString(buf)

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     oauthSessionCookie,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   oauthSessionMaxAge,
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID, nil
}

func (h *DiscordHandler) clearOAuthSession(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     oauthSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteLaxMode,
	})
}
