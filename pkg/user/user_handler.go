package user

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

type UserDTO struct {
	Uid         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

type Handler struct {
	userService Service
}

func NewHandler(userService Service) *Handler {
	return &Handler{
		userService: userService,
	}
}

// CurrentUser godoc
// @Summary Get the current user
// @Description Returns the profile resolved from the X-User-Id header
// @Tags User
// @Produce json
// @Success 200 {object} UserDTO
// @Failure 403 {string} string "User not found"
// @Router /api/user/current [get]
// @Security XUserId
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	u, err := CurrentUser(r.Context())
	if err != nil {
		log.Debugf("no user in request context: %v", err)
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(UserDTO{Uid: u.Uid, DisplayName: u.DisplayName, Role: u.Role}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
