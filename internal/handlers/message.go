package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"school-service/internal/middleware"
	"school-service/internal/models"
	"school-service/internal/services"
)

// MessageHandler serves the messaging endpoints.
type MessageHandler struct {
	messages *services.MessageService
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type sendMessageRequest struct {
	RecipientIDs    []string            `json:"recipient_ids" binding:"required,min=1,dive,notblank"`
	Subject         string              `json:"subject" binding:"notblank,max=100"`
	Body            string              `json:"body" binding:"notblank"`
	ParentMessageID *string             `json:"parent_message_id" binding:"omitempty,uuid"`
	Attachments     []models.Attachment `json:"attachments" binding:"omitempty,dive"`
}

// Send creates a root message or a reply.
func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), c.GetString(middleware.UserIDKey), services.Draft{
		RecipientIDs:    req.RecipientIDs,
		Subject:         req.Subject,
		Body:            req.Body,
		ParentMessageID: req.ParentMessageID,
		Attachments:     req.Attachments,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Inbox lists received messages.
func (h *MessageHandler) Inbox(c *gin.Context) {
	msgs, err := h.messages.Inbox(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Sent lists sent messages.
func (h *MessageHandler) Sent(c *gin.Context) {
	msgs, err := h.messages.Sent(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.messages.UnreadCount(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *MessageHandler) Get(c *gin.Context) {
	msg, err := h.messages.Get(c.Request.Context(), c.Param("message_id"), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Thread returns the live thread around a message, oldest first.
func (h *MessageHandler) Thread(c *gin.Context) {
	thread, err := h.messages.ThreadFor(c.Request.Context(), c.Param("message_id"), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": thread})
}

// MarkRead marks a message read for the caller. updated is false when it
// was already read or the caller is not a recipient.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	updated, err := h.messages.MarkRead(c.Request.Context(), c.Param("message_id"), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// Delete hides a message for the caller.
func (h *MessageHandler) Delete(c *gin.Context) {
	msg, err := h.messages.Delete(c.Request.Context(), c.Param("message_id"), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": msg.ID, "is_deleted": msg.IsDeleted})
}
