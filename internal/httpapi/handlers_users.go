package httpapi

import (
	"errors"
	"net/http"

	"botpanel/internal/store"
)

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePage(r)
	q := r.URL.Query()
	filter := store.UserFilter{
		Query:   q.Get("search"),
		Status:  q.Get("status"),
		Role:    q.Get("role"),
		Page:    page,
		PerPage: perPage,
	}

	users, total, err := s.store.ListUsers(r.Context(), filter)
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if users == nil {
		users = []store.User{}
	}
	writeJSON(w, http.StatusOK, paginated(users, page, perPage, total))
}

func (s *Server) handleAdminApproveUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.UpdateUserStatus(r.Context(), id, store.UserStatusActive); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "User not found.")
			return
		}
		s.logger.Error("approve user failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	s.notify(r, id, "account", "Account approved", "Your account has been approved. Welcome aboard!")
	respondMessage(w, "User approved.")
}

func (s *Server) handleAdminSuspendUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == userIDFromCtx(r) {
		fail(w, http.StatusBadRequest, "You cannot suspend your own account.")
		return
	}
	if err := s.store.UpdateUserStatus(r.Context(), id, store.UserStatusSuspended); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "User not found.")
			return
		}
		s.logger.Error("suspend user failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respondMessage(w, "User suspended.")
}

func (s *Server) handleAdminSetRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.Role != store.RoleUser && req.Role != store.RoleSuperAdmin {
		failFields(w, map[string]string{"role": "The selected role is invalid."})
		return
	}

	id := r.PathValue("id")
	if id == userIDFromCtx(r) {
		fail(w, http.StatusBadRequest, "You cannot change your own role.")
		return
	}
	if err := s.store.UpdateUserRole(r.Context(), id, req.Role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "User not found.")
			return
		}
		s.logger.Error("set role failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respondMessage(w, "Role updated.")
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == userIDFromCtx(r) {
		fail(w, http.StatusBadRequest, "You cannot delete your own account.")
		return
	}
	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "User not found.")
			return
		}
		s.logger.Error("delete user failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respondMessage(w, "User deleted.")
}
