package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ShenYT0/msn-web/internal/service"
)

// MaintenanceHandler exposes the bulk Discord sweeps for operators and
// cron jobs. Routes behind it are guarded by the maintenance token.
type MaintenanceHandler struct {
	syncService *service.DiscordSyncService
}

func NewMaintenanceHandler(syncService *service.DiscordSyncService) *MaintenanceHandler {
	return &MaintenanceHandler{syncService: syncService}
}

// RefreshTokens rotates stored Discord tokens for every linked account,
// or one login when the login query parameter is set.
func (h *MaintenanceHandler) RefreshTokens(c *gin.Context) {
	refreshed, err := h.syncService.RefreshAll(c.Request.Context(), c.Query("login"))
	if err != nil {
		respondError(c, err)
		return
	}
	if refreshed == nil {
		refreshed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": refreshed})
}

// SyncAvatars refreshes stale Discord avatar URLs for every account
// using the Discord avatar, or one login when filtered.
func (h *MaintenanceHandler) SyncAvatars(c *gin.Context) {
	updated, err := h.syncService.SyncAllAvatars(c.Request.Context(), c.Query("login"))
	if err != nil {
		respondError(c, err)
		return
	}
	if updated == nil {
		updated = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
