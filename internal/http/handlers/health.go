package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rivergarden/training-portal/internal/progress"
)

type HealthHandler struct {
	portal progress.Connectivity
}

// NewHealthHandler reports liveness; with a probe it also reports whether the portal answers.
func NewHealthHandler(portal progress.Connectivity) *HealthHandler {
	return &HealthHandler{portal: portal}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.portal == nil {
		c.String(http.StatusOK, "ok")
		return
	}
	state := "reachable"
	if !h.portal.Online(c.Request.Context()) {
		state = "unreachable"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "portal": state})
}
