// Message HTTP handlers.
//
// Sending persists first; the live push to the receiver is triggered by the
// service only after the insert succeeded.
//
// Idempotency: with an Idempotency-Key header and a stored record for
// (caller, "messages.send", key), the handler answers with the recorded
// message and sets `Idempotency-Replayed: true` instead of sending again.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
	"github.com/tbourn/go-jobportal-chat/internal/http/middleware"
	"github.com/tbourn/go-jobportal-chat/internal/repo"
)

// ScopeSendMessage names the idempotency scope of POST /messages.
const ScopeSendMessage = "messages.send"

// SendMessageRequest is the JSON payload for sending a message.
type SendMessageRequest struct {
	// ReceiverID is the directory id of the recipient.
	ReceiverID string `json:"receiver_id" binding:"required" example:"64b7f0c2a1b2c3d4e5f60718"`
	// Text is normalized and length-checked by the service.
	Text string `json:"text" binding:"required" example:"Hi, is the internship still open?"`
}

// MessageResponse wraps a single message.
type MessageResponse struct {
	Message *domain.Message `json:"message"`
}

// UnreadTotalResponse carries the caller's unread badge count.
type UnreadTotalResponse struct {
	Total int64 `json:"total" example:"3"`
}

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a direct message
// @Description Persists the message, then pushes it to the receiver if online.
// @Description Supports idempotency via the Idempotency-Key header.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"
// @Param       body             body    handlers.SendMessageRequest  true  "Message"
// @Success     201  {object}  handlers.MessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Receiver not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	uid, authed := caller(c)
	if !authed {
		return
	}
	ctx := c.Request.Context()

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "receiver_id and text are required")
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	if key != "" && h.idem != nil {
		if rec, err := h.idem.Lookup(ctx, uid, ScopeSendMessage, key); err == nil {
			if prev, err := h.svc.GetMessage(ctx, uid, rec.MessageID); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, rec.Status, MessageResponse{Message: prev})
				return
			}
		} else if !errors.Is(err, repo.ErrNotFound) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		}
	}

	m, err := h.svc.Send(ctx, uid, req.ReceiverID, req.Text)
	if err != nil {
		serviceError(c, err, ErrCodeSendFailed)
		return
	}

	if key != "" && h.idem != nil {
		if err := h.idem.Remember(ctx, uid, ScopeSendMessage, key, m.ID, http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("message_id", m.ID).Msg("idempotency record not stored")
		}
	}
	ok(c, http.StatusCreated, MessageResponse{Message: m})
}

// GetMessage godoc
// @ID          getMessage
// @Summary     Get one message
// @Description Returns a message the caller sent or received.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Message ID"
// @Success     200  {object}  handlers.MessageResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /messages/{id} [get]
func (h *Handlers) GetMessage(c *gin.Context) {
	uid, authed := caller(c)
	if !authed {
		return
	}
	m, err := h.svc.GetMessage(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		serviceError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: m})
}

// UnreadTotal godoc
// @ID          unreadTotal
// @Summary     Unread message count
// @Description Counts messages addressed to the caller that are still unread, across all senders.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.UnreadTotalResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /messages/unread-total [get]
func (h *Handlers) UnreadTotal(c *gin.Context) {
	uid, authed := caller(c)
	if !authed {
		return
	}
	n, err := h.svc.UnreadTotal(c.Request.Context(), uid)
	if err != nil {
		serviceError(c, err, ErrCodeCountFailed)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, UnreadTotalResponse{Total: n})
}
