package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/landchat/internal/api/middleware"
	"github.com/eldtechnologies/landchat/internal/delivery"
	"github.com/eldtechnologies/landchat/internal/models"
	"github.com/eldtechnologies/landchat/internal/store"
)

// MessagesResponse wraps message lists. Latest uses it too, with zero or one entry.
type MessagesResponse struct {
	Messages []models.Message `json:"messages"`
}

// GetMessages returns one page of the conversation between two users, newest
// first.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	senderID := chi.URLParam(r, "senderId")
	receiverID := chi.URLParam(r, "receiverId")
	page := parsePage(r.URL.Query().Get("page"))

	messages, err := h.store.History(r.Context(), senderID, receiverID, page, store.DefaultPageSize)
	if err != nil {
		h.logger.Error().Err(err).Str("sender_id", senderID).Str("receiver_id", receiverID).Msg("history query failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, MessagesResponse{Messages: messages})
}

// GetLatestMessage returns the newest message between two users.
func (h *Handler) GetLatestMessage(w http.ResponseWriter, r *http.Request) {
	senderID := chi.URLParam(r, "senderId")
	receiverID := chi.URLParam(r, "receiverId")

	msg, err := h.store.Latest(r.Context(), senderID, receiverID)
	if err != nil {
		h.logger.Error().Err(err).Str("sender_id", senderID).Str("receiver_id", receiverID).Msg("latest query failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	messages := []models.Message{}
	if msg != nil {
		messages = append(messages, *msg)
	}
	h.JSON(w, http.StatusOK, MessagesResponse{Messages: messages})
}

// SendMessage stores and delivers a message, exactly as a socket sendMessage
// event would.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req delivery.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil && claims.Subject != req.SenderID {
		h.Error(w, http.StatusForbidden, "senderId does not match authenticated user")
		return
	}

	msg, err := h.sender.Deliver(r.Context(), req)
	if err != nil {
		if errors.Is(err, delivery.ErrValidation) {
			h.Error(w, http.StatusBadRequest, "senderId, receiverId and message are required")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}
