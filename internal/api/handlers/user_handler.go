package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "backoffice/internal/api/context"
	"backoffice/internal/api/middleware"
	"backoffice/internal/pkg/errors"
	"backoffice/internal/platform/models"
	"backoffice/internal/platform/repositories"
)

type UserHandler struct {
	users  *repositories.UserRepository
	grants *repositories.RoleGrantRepository
}

func NewUserHandler(users *repositories.UserRepository, grants *repositories.RoleGrantRepository) *UserHandler {
	return &UserHandler{users: users, grants: grants}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	users, err := h.users.ListByOrg(tenant.OrgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"users": users,
		"total": len(users),
	})
}

type UserDetailResponse struct {
	User   *models.User        `json:"user"`
	Grants []*models.RoleGrant `json:"grants"`
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	ps := r.Context().Value(apiContext.Params).(httprouter.Params)

	user, err := h.users.GetByID(ps.ByName("user_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if user == nil || user.OrganizationID != tenant.OrgID {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "User not found", nil)
		return
	}

	grants, err := h.grants.ListByUser(user.ID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UserDetailResponse{User: user, Grants: grants})
}
