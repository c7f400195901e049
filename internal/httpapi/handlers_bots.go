package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"botpanel/internal/store"
	"botpanel/internal/telegram"

	"github.com/google/uuid"
)

const invalidBotTokenMessage = "Invalid bot token format."

type botRequest struct {
	Name            string  `json:"name"`
	BotToken        string  `json:"bot_token"`
	ActiveGatewayID *string `json:"active_gateway_id"`
}

func (s *Server) validateBotRequest(w http.ResponseWriter, req botRequest, tokenRequired bool) bool {
	errs := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		errs["name"] = requiredFieldMessage("name")
	}
	if tokenRequired && strings.TrimSpace(req.BotToken) == "" {
		errs["bot_token"] = requiredFieldMessage("bot token")
	}
	if strings.TrimSpace(req.BotToken) != "" && !telegram.ValidShape(req.BotToken) {
		errs["bot_token"] = invalidBotTokenMessage
	}
	if len(errs) > 0 {
		failFields(w, errs)
		return false
	}
	return true
}

func (s *Server) handleListBots(w http.ResponseWriter, r *http.Request) {
	bots, err := s.store.ListBots(r.Context(), userIDFromCtx(r))
	if err != nil {
		s.logger.Error("list bots failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if bots == nil {
		bots = []store.BotWithStats{}
	}
	respondData(w, bots)
}

func (s *Server) handleCreateBot(w http.ResponseWriter, r *http.Request) {
	var req botRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if !s.validateBotRequest(w, req, true) {
		return
	}

	username := ""
	if s.tg != nil {
		verified, err := s.tg.Verify(req.BotToken)
		if err != nil {
			fail(w, http.StatusBadRequest, "The bot token was rejected by Telegram.")
			return
		}
		username = verified
	}

	bot := &store.Bot{
		ID:              uuid.NewString(),
		UserID:          userIDFromCtx(r),
		Name:            strings.TrimSpace(req.Name),
		BotToken:        strings.TrimSpace(req.BotToken),
		BotUsername:     username,
		Status:          store.BotStatusActive,
		ActiveGatewayID: req.ActiveGatewayID,
	}
	if err := s.store.CreateBot(r.Context(), bot); err != nil {
		s.logger.Error("create bot failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	s.notify(r, bot.UserID, "bot", "Bot registered",
		"Bot \""+bot.Name+"\" has been registered and is active.")
	respond(w, http.StatusCreated, map[string]any{"data": sanitizeBot(bot)})
}

func (s *Server) handleGetBot(w http.ResponseWriter, r *http.Request) {
	bot, err := s.store.GetBot(r.Context(), userIDFromCtx(r), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Bot not found.")
			return
		}
		s.logger.Error("get bot failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respondData(w, sanitizeBot(bot))
}

func (s *Server) handleUpdateBot(w http.ResponseWriter, r *http.Request) {
	var req botRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if !s.validateBotRequest(w, req, false) {
		return
	}

	bot, err := s.store.GetBot(r.Context(), userIDFromCtx(r), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Bot not found.")
			return
		}
		s.logger.Error("load bot failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	bot.Name = strings.TrimSpace(req.Name)
	if token := strings.TrimSpace(req.BotToken); token != "" {
		if s.tg != nil {
			username, err := s.tg.Verify(token)
			if err != nil {
				fail(w, http.StatusBadRequest, "The bot token was rejected by Telegram.")
				return
			}
			bot.BotUsername = username
		}
		bot.BotToken = token
	}
	if req.ActiveGatewayID != nil {
		bot.ActiveGatewayID = req.ActiveGatewayID
	}

	if err := s.store.UpdateBot(r.Context(), bot); err != nil {
		s.logger.Error("update bot failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respond(w, http.StatusOK, map[string]any{"message": "Bot updated.", "data": sanitizeBot(bot)})
}

func (s *Server) handleToggleBot(w http.ResponseWriter, r *http.Request) {
	status, err := s.store.ToggleBot(r.Context(), userIDFromCtx(r), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Bot not found.")
			return
		}
		s.logger.Error("toggle bot failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respond(w, http.StatusOK, map[string]any{"status": status})
}

func (s *Server) handleDeleteBot(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromCtx(r)
	if err := s.store.DeleteBot(r.Context(), userID, r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Bot not found.")
			return
		}
		s.logger.Error("delete bot failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	s.notify(r, userID, "bot", "Bot deleted", "A bot was removed from your account.")
	respondMessage(w, "Bot deleted.")
}

// sanitizeBot replaces the raw token with its masked form before responding.
func sanitizeBot(b *store.Bot) map[string]any {
	return map[string]any{
		"id":                b.ID,
		"name":              b.Name,
		"bot_username":      b.BotUsername,
		"status":            b.Status,
		"active_gateway_id": b.ActiveGatewayID,
		"masked_token":      store.MaskToken(b.BotToken),
		"created_at":        b.CreatedAt,
		"updated_at":        b.UpdatedAt,
	}
}
