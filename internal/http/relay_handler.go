package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"email-gate/internal/bot"
)

// MessageDispatcher es lo que el relay necesita del bot.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, msg bot.Message) string
	Welcome(ctx context.Context, memberID string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// RelayHandler recibe eventos del gateway de chat.
type RelayHandler struct {
	logger     *zap.Logger
	dispatcher MessageDispatcher
	store      Pinger
}

func NewRelayHandler(logger *zap.Logger, dispatcher MessageDispatcher, store Pinger) *RelayHandler {
	return &RelayHandler{
		logger:     logger,
		dispatcher: dispatcher,
		store:      store,
	}
}

// PostMessage maneja POST /v1/messages.
func (h *RelayHandler) PostMessage(c *gin.Context) {
	var req struct {
		AuthorID      string `json:"author_id" binding:"required"`
		Username      string `json:"username"`
		Discriminator string `json:"discriminator"`
		Content       string `json:"content"`
		IsBot         bool   `json:"is_bot"`
		IsDirect      bool   `json:"is_direct"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid relay message", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctx := bot.WithRequestID(c.Request.Context(), c.GetString(requestIDKey))
	reply := h.dispatcher.Dispatch(ctx, bot.Message{
		AuthorID:      req.AuthorID,
		Username:      req.Username,
		Discriminator: req.Discriminator,
		Content:       req.Content,
		IsBot:         req.IsBot,
		IsDirect:      req.IsDirect,
	})
	if reply == "" {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// MemberJoined maneja POST /v1/events/member-join.
func (h *RelayHandler) MemberJoined(c *gin.Context) {
	var req struct {
		MemberID string `json:"member_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid member join event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.dispatcher.Welcome(c.Request.Context(), req.MemberID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not send welcome"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "welcomed"})
}

// Health maneja GET /healthz.
func (h *RelayHandler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
