package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rivergarden/training-portal/internal/domain"
	"github.com/rivergarden/training-portal/internal/http/middleware"
	"github.com/rivergarden/training-portal/internal/http/response"
	"github.com/rivergarden/training-portal/internal/platform/apierr"
	"github.com/rivergarden/training-portal/internal/platform/logger"
	"github.com/rivergarden/training-portal/internal/progress"
	"github.com/rivergarden/training-portal/internal/services"
)

type PlayerHandler struct {
	log    *logger.Logger
	player services.PlayerService
}

func NewPlayerHandler(log *logger.Logger, player services.PlayerService) *PlayerHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &PlayerHandler{log: log.With("handler", "PlayerHandler"), player: player}
}

type openSessionRequest struct {
	CourseID int64 `json:"course_id" binding:"required"`
}

type positionRequest struct {
	Current float64 `json:"current"`
	Total   float64 `json:"total"`
}

type seekRequest struct {
	Target *float64 `json:"target" binding:"required"`
}

type sessionView struct {
	SessionID uuid.UUID         `json:"session_id"`
	Course    domain.Course     `json:"course"`
	State     progress.Snapshot `json:"state"`
}

func viewOf(ps *services.PlayerSession, snap progress.Snapshot) sessionView {
	return sessionView{SessionID: ps.ID, Course: ps.Course, State: snap}
}

// POST /api/player/sessions
func (h *PlayerHandler) Open(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing session"))
		return
	}
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ps, err := h.player.Open(c.Request.Context(), sess, req.CourseID)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	response.RespondCreated(c, viewOf(ps, ps.Tracker.Snapshot()))
}

// GET /api/player/sessions/:id
func (h *PlayerHandler) Get(c *gin.Context) {
	ps, ok := h.session(c)
	if !ok {
		return
	}
	response.RespondOK(c, viewOf(ps, ps.Tracker.Snapshot()))
}

// POST /api/player/sessions/:id/position
func (h *PlayerHandler) Position(c *gin.Context) {
	ps, ok := h.session(c)
	if !ok {
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	snap := ps.Tracker.OnPositionChanged(domain.Position{Current: req.Current, Total: req.Total})
	response.RespondOK(c, viewOf(ps, snap))
}

// POST /api/player/sessions/:id/ended
func (h *PlayerHandler) Ended(c *gin.Context) {
	ps, ok := h.session(c)
	if !ok {
		return
	}
	response.RespondOK(c, viewOf(ps, ps.Tracker.OnPlaybackEnded()))
}

// POST /api/player/sessions/:id/seek
func (h *PlayerHandler) Seek(c *gin.Context) {
	ps, ok := h.session(c)
	if !ok {
		return
	}
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	response.RespondOK(c, ps.Tracker.OnSeekAttempt(*req.Target))
}

// POST /api/player/sessions/:id/attendance
func (h *PlayerHandler) Attendance(c *gin.Context) {
	ps, ok := h.session(c)
	if !ok {
		return
	}
	if ps.Course.Delivery != domain.DeliveryLiveSession {
		response.RespondError(c, http.StatusBadRequest, "not_live_session", errors.New("attendance applies to live sessions only"))
		return
	}
	response.RespondOK(c, viewOf(ps, ps.Tracker.AcknowledgeAttendance()))
}

// POST /api/player/sessions/:id/complete
func (h *PlayerHandler) Complete(c *gin.Context) {
	ps, ok := h.session(c)
	if !ok {
		return
	}
	if err := ps.Tracker.OnCompleteRequested(c.Request.Context()); err != nil {
		h.respondErr(c, err)
		return
	}
	response.RespondOK(c, viewOf(ps, ps.Tracker.Snapshot()))
}

// DELETE /api/player/sessions/:id
func (h *PlayerHandler) Close(c *gin.Context) {
	sess, _ := middleware.SessionFrom(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusNotFound, "session_not_found", services.ErrSessionNotFound)
		return
	}
	if err := h.player.Close(sess, id); err != nil {
		h.respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PlayerHandler) session(c *gin.Context) (*services.PlayerSession, bool) {
	sess, _ := middleware.SessionFrom(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusNotFound, "session_not_found", services.ErrSessionNotFound)
		return nil, false
	}
	ps, err := h.player.Get(sess, id)
	if err != nil {
		h.respondErr(c, err)
		return nil, false
	}
	return ps, true
}

func (h *PlayerHandler) respondErr(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= 500 {
		h.log.Warn("player request failed", "path", c.FullPath(), "code", code, "error", err)
	}
	response.RespondError(c, status, code, err)
}

func classify(err error) (int, string) {
	var ae *apierr.Error
	hasAPI := errors.As(err, &ae)
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case hasAPI && (ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden):
		return ae.Status, ae.Code
	case progress.IsKind(err, progress.KindGate):
		return http.StatusConflict, "gate_locked"
	case errors.Is(err, progress.ErrTrackerClosed):
		return http.StatusGone, "session_closed"
	case progress.IsKind(err, progress.KindLoad) && errors.Is(err, progress.ErrCourseMissing):
		return http.StatusNotFound, "course_not_found"
	case progress.IsKind(err, progress.KindLoad):
		return http.StatusBadGateway, "load_failed"
	case progress.IsKind(err, progress.KindCompletion):
		return http.StatusBadGateway, "completion_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
