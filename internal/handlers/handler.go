package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/landchat/internal/delivery"
	"github.com/eldtechnologies/landchat/internal/models"
	"github.com/eldtechnologies/landchat/internal/presence"
	"github.com/eldtechnologies/landchat/internal/store"
)

// MessageSender is the delivery path POST /api/v1/messages goes through.
type MessageSender interface {
	Deliver(ctx context.Context, req delivery.Request) (*models.Message, error)
}

// Deps are the collaborators shared by all HTTP handlers.
type Deps struct {
	Store    store.DataStore
	Redis    *store.RedisStore // optional
	Sender   MessageSender
	Registry *presence.Registry

	// AdminUserID names the chat list owner. When empty the first user with
	// AdminRole is used.
	AdminUserID string
	AdminRole   string

	Logger zerolog.Logger
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store       store.DataStore
	redis       *store.RedisStore
	sender      MessageSender
	registry    *presence.Registry
	adminUserID string
	adminRole   string
	logger      zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps) *Handler {
	role := deps.AdminRole
	if role == "" {
		role = models.RoleAdmin
	}
	return &Handler{
		store:       deps.Store,
		redis:       deps.Redis,
		sender:      deps.Sender,
		registry:    deps.Registry,
		adminUserID: deps.AdminUserID,
		adminRole:   role,
		logger:      deps.Logger.With().Str("component", "http").Logger(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// parsePage reads a 1-based page number. Absent, non-numeric and
// non-positive values mean the first page.
func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// resolveAdmin returns the configured admin account, or nil if none exists.
func (h *Handler) resolveAdmin(ctx context.Context) (*models.User, error) {
	if h.adminUserID != "" {
		user, err := h.store.GetUser(ctx, h.adminUserID)
		if err != nil || user != nil {
			return user, err
		}
		// Configured but never seen: still a valid chat list owner.
		return &models.User{ID: h.adminUserID, Role: h.adminRole}, nil
	}
	return h.store.GetUserByRole(ctx, h.adminRole)
}
