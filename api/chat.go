package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/Domenick1991/airbot/internal/service/dialogue"
)

const (
	guestUserID       = "guest"
	internalErrorText = "internal error"
)

type ChatService interface {
	ProcessMessage(ctx context.Context, in dialogue.MessageInput) (*dialogue.Reply, error)
	RecordFeedback(ctx context.Context, fb domain.Feedback) error
}

type ChatHandler struct {
	service ChatService
}

type messageRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message" binding:"required"`
}

type messageResponse struct {
	SessionID string `json:"session_id"`
	*dialogue.Reply
}

type feedbackRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	UserID    string `json:"user_id"`
	MessageID *int64 `json:"message_id"`
	Rating    int    `json:"rating" binding:"required"`
	Comment   string `json:"comment"`
}

func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) Register(router *gin.RouterGroup) {
	router.POST("/message", h.message)
	router.POST("/feedback", h.feedback)
}

func (h *ChatHandler) message(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if req.UserID == "" {
		req.UserID = guestUserID
	}

	reply, err := h.service.ProcessMessage(c.Request.Context(), dialogue.MessageInput{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Text:      req.Message,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{SessionID: req.SessionID, Reply: reply})
}

func (h *ChatHandler) feedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.service.RecordFeedback(c.Request.Context(), domain.Feedback{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		MessageID: req.MessageID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Feedback recorded"})
}

// fail reports caller mistakes verbatim; anything else is logged and hidden
// behind a generic message.
func (h *ChatHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, dialogue.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slog.ErrorContext(c.Request.Context(), "chat request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": internalErrorText})
}
