package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"botpanel/internal/store"

	"github.com/google/uuid"
)

const gatewayCatalogCacheTTL = 10 * time.Minute

func (s *Server) handleListGateways(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "gateways:catalog"
	if s.cache != nil {
		var cached []store.Gateway
		ok, err := s.cache.GetJSON(r.Context(), cacheKey, &cached)
		if err != nil {
			s.logger.Warn("read gateway cache failed", "error", err)
		} else if ok {
			respondData(w, cached)
			return
		}
	}

	gateways, err := s.store.ListGateways(r.Context())
	if err != nil {
		s.logger.Error("list gateways failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if gateways == nil {
		gateways = []store.Gateway{}
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(r.Context(), cacheKey, gateways, gatewayCatalogCacheTTL); err != nil {
			s.logger.Warn("set gateway cache failed", "error", err)
		}
	}
	respondData(w, gateways)
}

func (s *Server) handleListUserGateways(w http.ResponseWriter, r *http.Request) {
	gateways, err := s.store.ListUserGateways(r.Context(), userIDFromCtx(r))
	if err != nil {
		s.logger.Error("list user gateways failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if gateways == nil {
		gateways = []store.UserGateway{}
	}
	respondData(w, gateways)
}

type userGatewayRequest struct {
	GatewayID   string            `json:"gateway_id"`
	Label       string            `json:"label"`
	Credentials map[string]string `json:"credentials"`
}

// validateCredentials checks every schema-required field is present.
func validateCredentials(gw *store.Gateway, credentials map[string]string) map[string]string {
	errs := map[string]string{}
	for _, field := range gw.RequiredFields {
		if strings.TrimSpace(credentials[field]) == "" {
			errs[field] = requiredFieldMessage(field)
		}
	}
	return errs
}

func (s *Server) handleCreateUserGateway(w http.ResponseWriter, r *http.Request) {
	var req userGatewayRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.GatewayID) == "" {
		failFields(w, map[string]string{"gateway_id": requiredFieldMessage("gateway")})
		return
	}

	gw, err := s.store.GetGatewayByID(r.Context(), req.GatewayID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusBadRequest, "The selected gateway is invalid.")
			return
		}
		s.logger.Error("load gateway failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if errs := validateCredentials(gw, req.Credentials); len(errs) > 0 {
		failFields(w, errs)
		return
	}

	userID := userIDFromCtx(r)
	ug := &store.UserGateway{
		ID:          uuid.NewString(),
		UserID:      userID,
		GatewayID:   gw.ID,
		Label:       strings.TrimSpace(req.Label),
		Credentials: req.Credentials,
		IsActive:    true,
	}
	if ug.Label == "" {
		ug.Label = gw.Name
	}
	if err := s.store.CreateUserGateway(r.Context(), ug); err != nil {
		s.logger.Error("create user gateway failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	s.notify(r, userID, "gateway", "Gateway configured",
		gw.Name+" has been configured for your account.")
	respond(w, http.StatusCreated, map[string]any{"data": ug})
}

func (s *Server) handleUpdateUserGateway(w http.ResponseWriter, r *http.Request) {
	var req userGatewayRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	userID := userIDFromCtx(r)
	ug, err := s.store.GetUserGateway(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Gateway not found.")
			return
		}
		s.logger.Error("load user gateway failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	gw, err := s.store.GetGatewayByID(r.Context(), ug.GatewayID)
	if err != nil {
		s.logger.Error("load gateway failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if req.Credentials != nil {
		if errs := validateCredentials(gw, req.Credentials); len(errs) > 0 {
			failFields(w, errs)
			return
		}
		ug.Credentials = req.Credentials
	}
	if strings.TrimSpace(req.Label) != "" {
		ug.Label = strings.TrimSpace(req.Label)
	}

	if err := s.store.UpdateUserGateway(r.Context(), ug); err != nil {
		s.logger.Error("update user gateway failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respond(w, http.StatusOK, map[string]any{"message": "Gateway updated.", "data": ug})
}

func (s *Server) handleToggleUserGateway(w http.ResponseWriter, r *http.Request) {
	active, err := s.store.ToggleUserGateway(r.Context(), userIDFromCtx(r), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Gateway not found.")
			return
		}
		s.logger.Error("toggle user gateway failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respond(w, http.StatusOK, map[string]any{"is_active": active})
}

func (s *Server) handleSetDefaultUserGateway(w http.ResponseWriter, r *http.Request) {
	if err := s.store.SetDefaultUserGateway(r.Context(), userIDFromCtx(r), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Gateway not found.")
			return
		}
		s.logger.Error("set default gateway failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respondMessage(w, "Default gateway updated.")
}

func (s *Server) handleDeleteUserGateway(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteUserGateway(r.Context(), userIDFromCtx(r), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Gateway not found.")
			return
		}
		s.logger.Error("delete user gateway failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respondMessage(w, "Gateway removed.")
}
