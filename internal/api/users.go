package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/locallend/internal/model"
	"github.com/erazemk/locallend/internal/store"
	"github.com/erazemk/locallend/internal/trust"
)

// UsersHandler handles profiles and user administration.
type UsersHandler struct {
	DB *sql.DB
}

type updateProfileRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func publicProfile(u *model.User) model.PublicUser {
	return model.PublicUser{
		ID:                  u.ID,
		Username:            u.Username,
		Name:                u.Name,
		TrustScore:          u.TrustScore,
		TrustCategory:       trust.Category(u.TrustScore),
		BorrowerRatingCount: u.BorrowerRatingCount,
		BorrowerRatingAvg:   u.BorrowerRatingAvg,
		LenderRatingCount:   u.LenderRatingCount,
		LenderRatingAvg:     u.LenderRatingAvg,
		CreatedAt:           u.CreatedAt,
	}
}

// activeUser loads a user by path ID, writing 400 or 404 when it cannot.
func (h *UsersHandler) activeUser(w http.ResponseWriter, r *http.Request) *model.User {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return nil
	}
	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get user")
		return nil
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return nil
	}
	return user
}

// Profile handles GET /api/users/{id}.
func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if user := h.activeUser(w, r); user != nil {
		jsonResponse(w, http.StatusOK, publicProfile(user))
	}
}

// UpdateMe handles PUT /api/users/me.
func (h *UsersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || len(req.Name) > 100 {
		jsonError(w, http.StatusBadRequest, "name must be between 1 and 100 characters")
		return
	}
	if !validEmail(req.Email) {
		jsonError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	id, _ := caller(r)
	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil || user == nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !strings.EqualFold(user.Email, req.Email) {
		taken, err := store.UserExists(r.Context(), h.DB, "", req.Email)
		if err != nil {
			slog.Error("checking email", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to update profile")
			return
		}
		if taken {
			jsonError(w, http.StatusConflict, "email already taken")
			return
		}
	}

	if err := store.UpdateUserProfile(r.Context(), h.DB, id, req.Name, req.Email, strings.TrimSpace(req.PhoneNumber)); err != nil {
		slog.Error("updating profile", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	user, err = store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// SetRole handles PUT /api/users/{id}/role.
func (h *UsersHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	user := h.activeUser(w, r)
	if user == nil {
		return
	}

	var req setRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if err := store.UpdateUserRole(r.Context(), h.DB, user.ID, req.Role); err != nil {
		slog.Error("failed to update role", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("user role updated", "user", claims.Username, "target_user", user.Username, "new_role", req.Role)
	user.Role = req.Role
	jsonResponse(w, http.StatusOK, user)
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := h.activeUser(w, r)
	if user == nil {
		return
	}

	self, _ := caller(r)
	if self == user.ID {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := store.DeleteUser(r.Context(), h.DB, user.ID); err != nil {
		slog.Error("failed to delete user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	slog.Info("user deleted", "user", GetClaims(r.Context()).Username, "deleted_user", user.Username)
	jsonMessage(w, "user deleted")
}
