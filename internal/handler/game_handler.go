package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ShenYT0/msn-web/internal/middleware"
	"github.com/ShenYT0/msn-web/internal/service"
)

// GameHandler serves the game list and membership changes.
type GameHandler struct {
	userService *service.UserService
}

func NewGameHandler(userService *service.UserService) *GameHandler {
	return &GameHandler{userService: userService}
}

// List returns every game.
func (h *GameHandler) List(c *gin.Context) {
	games, err := h.userService.AllGames()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

// Mine returns the games the authenticated user plays.
func (h *GameHandler) Mine(c *gin.Context) {
	user := middleware.CurrentUser(c)
	games, err := h.userService.Games(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

// Join adds the authenticated user to a game. The matching guild role is
// mirrored best effort.
func (h *GameHandler) Join(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.userService.JoinGame(c.Request.Context(), user, c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined"})
}

// Leave removes the authenticated user from a game.
func (h *GameHandler) Leave(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.userService.LeaveGame(c.Request.Context(), user, c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left"})
}
