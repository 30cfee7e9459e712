package handlers

import "net/http"

// ProfileResponse is the public part of a user record.
type ProfileResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage"`
}

// ProfileEnvelope wraps a profile the way the mobile apps expect it.
type ProfileEnvelope struct {
	Status string          `json:"status"`
	Data   ProfileResponse `json:"data"`
}

// GetAdminProfile returns the admin account users open a chat with.
func (h *Handler) GetAdminProfile(w http.ResponseWriter, r *http.Request) {
	admin, err := h.resolveAdmin(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("admin lookup failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch admin")
		return
	}
	if admin == nil {
		h.Error(w, http.StatusNotFound, "admin user not found")
		return
	}

	h.JSON(w, http.StatusOK, ProfileEnvelope{
		Status: "success",
		Data: ProfileResponse{
			ID:           admin.ID,
			Name:         admin.Name,
			Email:        admin.Email,
			ProfileImage: admin.ProfileImage,
		},
	})
}
