// Conversation HTTP handlers.
//
// Opening a conversation is the read-state synchronization point: unread
// messages from the peer are flipped in one update before the history is
// fetched, so the returned history already shows them as read and the unread
// total contribution of this peer drops to zero.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
	"github.com/tbourn/go-jobportal-chat/internal/http/middleware"
	"github.com/tbourn/go-jobportal-chat/internal/utils"
)

const maxHistoryLimit = 500

// PeersResponse is the conversation sidebar.
type PeersResponse struct {
	Users []domain.Peer `json:"users"`
}

// ConversationResponse is an opened conversation.
type ConversationResponse struct {
	Peer       *domain.UserCard `json:"peer,omitempty"`
	Messages   []domain.Message `json:"messages"`
	MarkedRead int64            `json:"marked_read" example:"2"`
}

// peersETag derives a weak validator from everything the peer list shows.
func (h *Handlers) peersETag(c *gin.Context, uid string) string {
	if h.stats == nil {
		return ""
	}
	st, err := h.stats.InboxStats(c.Request.Context(), uid)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("inbox stats unavailable")
		return ""
	}
	var usersTS, activityTS int64
	if st.UsersUpdated != nil {
		usersTS = st.UsersUpdated.UnixNano()
	}
	if st.LastActivity != nil {
		activityTS = st.LastActivity.UnixNano()
	}
	return fmt.Sprintf(`W/"peers:%s:%d:%d:%d:%d"`, uid, st.Users, usersTS, st.Unread, activityTS)
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversation peers
// @Description Every directory user except the caller, each with the number of unread messages they sent the caller.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false  "ETag from a previous response"
// @Success     200  {object}  handlers.PeersResponse
// @Success     304  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	uid, authed := caller(c)
	if !authed {
		return
	}
	if etag := h.peersETag(c, uid); etag != "" && notModified(c, etag) {
		return
	}
	peers, err := h.svc.ListPeers(c.Request.Context(), uid)
	if err != nil {
		serviceError(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, PeersResponse{Users: peers})
}

// OpenConversation godoc
// @ID          openConversation
// @Summary     Open a conversation
// @Description Marks the peer's unread messages as read, returns the history visible to the caller (oldest first)
// @Description and tells the peer their messages were seen.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       peerId  path   string  true   "Peer user ID"
// @Param       limit   query  int     false  "Most recent N messages (0 = all)"  minimum(0) maximum(500)
// @Success     200  {object}  handlers.ConversationResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations/{peerId} [get]
func (h *Handlers) OpenConversation(c *gin.Context) {
	uid, authed := caller(c)
	if !authed {
		return
	}
	peer := c.Param("peerId")
	if peer == uid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot open a conversation with yourself")
		return
	}
	limit, valid := utils.ParseLimit(c.Query("limit"), 0, maxHistoryLimit)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a non-negative integer")
		return
	}

	conv, err := h.svc.OpenConversation(c.Request.Context(), uid, peer, limit)
	if err != nil {
		serviceError(c, err, ErrCodeOpenFailed)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, ConversationResponse{
		Peer:       conv.Peer,
		Messages:   conv.Messages,
		MarkedRead: conv.MarkedRead,
	})
}

// DeleteConversation godoc
// @ID          deleteConversation
// @Summary     Delete a conversation for the caller
// @Description Hides every message between the caller and the peer from the caller's view only.
// @Description The peer's view and all read flags are unchanged. Repeating the call is harmless.
// @Tags        Conversations
// @Security    BearerAuth
// @Param       peerId  path  string  true  "Peer user ID"
// @Success     204  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations/{peerId} [delete]
func (h *Handlers) DeleteConversation(c *gin.Context) {
	uid, authed := caller(c)
	if !authed {
		return
	}
	peer := c.Param("peerId")
	if peer == uid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot delete a conversation with yourself")
		return
	}
	n, err := h.svc.SoftDeleteConversation(c.Request.Context(), uid, peer)
	if err != nil {
		serviceError(c, err, ErrCodeDeleteFailed)
		return
	}
	middleware.LoggerFrom(c).Debug().Str("peer_id", peer).Int64("hidden", n).Msg("conversation hidden")
	noContent(c)
}
