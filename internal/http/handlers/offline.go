package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rivergarden/training-portal/internal/http/middleware"
	"github.com/rivergarden/training-portal/internal/http/response"
	"github.com/rivergarden/training-portal/internal/services"
)

type OfflineHandler struct {
	sync services.OfflineSyncService
}

func NewOfflineHandler(sync services.OfflineSyncService) *OfflineHandler {
	return &OfflineHandler{sync: sync}
}

// POST /api/offline/sync
func (h *OfflineHandler) Sync(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing session"))
		return
	}
	report, err := h.sync.Flush(c.Request.Context(), sess)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "offline_sync_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"report": report})
}
