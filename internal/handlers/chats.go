package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/landchat/internal/api/middleware"
	"github.com/eldtechnologies/landchat/internal/models"
)

// ChatsResponse is a recipient's chat list, newest conversation first.
type ChatsResponse struct {
	Status string               `json:"status"`
	Chats  []models.ChatSummary `json:"chats"`
}

// GetAdminChats lists the conversations of the admin account.
func (h *Handler) GetAdminChats(w http.ResponseWriter, r *http.Request) {
	admin, err := h.resolveAdmin(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("admin lookup failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch chats")
		return
	}
	if admin == nil {
		h.Error(w, http.StatusNotFound, "admin user not found")
		return
	}

	h.writeChats(w, r, admin.ID)
}

// GetChats lists the conversations of any recipient. Callers may only read
// their own list unless their token carries the admin role.
func (h *Handler) GetChats(w http.ResponseWriter, r *http.Request) {
	recipientID := chi.URLParam(r, "recipientId")

	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil &&
		claims.Subject != recipientID && claims.Role != h.adminRole {
		h.Error(w, http.StatusForbidden, "not allowed to read this chat list")
		return
	}

	h.writeChats(w, r, recipientID)
}

func (h *Handler) writeChats(w http.ResponseWriter, r *http.Request, recipientID string) {
	summaries, err := h.store.ChatSummaries(r.Context(), recipientID)
	if err != nil {
		h.logger.Error().Err(err).Str("recipient_id", recipientID).Msg("chat summaries query failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch chats")
		return
	}
	if summaries == nil {
		summaries = []models.ChatSummary{}
	}

	h.JSON(w, http.StatusOK, ChatsResponse{Status: "success", Chats: summaries})
}
