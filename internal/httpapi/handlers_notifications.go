package httpapi

import (
	"errors"
	"net/http"
	"time"

	"botpanel/internal/store"

	"github.com/google/uuid"
)

const unreadCountCacheTTL = 30 * time.Second

func unreadCacheKey(userID string) string {
	return "notifications:unread:" + userID
}

// notify records a notification for one user, best effort.
func (s *Server) notify(r *http.Request, userID, typ, title, message string) {
	n := &store.Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
	}
	if err := s.store.CreateNotification(r.Context(), n); err != nil {
		s.logger.Warn("create notification failed", "error", err, "user_id", userID)
		return
	}
	if s.cache != nil {
		_ = s.cache.Delete(r.Context(), unreadCacheKey(userID))
	}
}

// notifyAdmins fans out a notification to every super admin.
func (s *Server) notifyAdmins(r *http.Request, typ, title, message string) {
	ids, err := s.store.ListAdminIDs(r.Context())
	if err != nil {
		s.logger.Warn("list admins failed", "error", err)
		return
	}
	for _, id := range ids {
		s.notify(r, id, typ, title, message)
	}
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := s.store.ListNotifications(r.Context(), userIDFromCtx(r), 50)
	if err != nil {
		s.logger.Error("list notifications failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if notifications == nil {
		notifications = []store.Notification{}
	}
	respondData(w, notifications)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromCtx(r)
	key := unreadCacheKey(userID)

	if s.cache != nil {
		var count int64
		ok, err := s.cache.GetJSON(r.Context(), key, &count)
		if err != nil {
			s.logger.Warn("read unread cache failed", "error", err)
		} else if ok {
			respond(w, http.StatusOK, map[string]any{"count": count})
			return
		}
	}

	count, err := s.store.UnreadCount(r.Context(), userID)
	if err != nil {
		s.logger.Error("unread count failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(r.Context(), key, count, unreadCountCacheTTL); err != nil {
			s.logger.Warn("set unread cache failed", "error", err)
		}
	}
	respond(w, http.StatusOK, map[string]any{"count": count})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromCtx(r)
	if err := s.store.MarkNotificationRead(r.Context(), userID, r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Notification not found.")
			return
		}
		s.logger.Error("mark notification read failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if s.cache != nil {
		_ = s.cache.Delete(r.Context(), unreadCacheKey(userID))
	}
	respondMessage(w, "Notification marked as read.")
}

func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromCtx(r)
	if err := s.store.MarkAllNotificationsRead(r.Context(), userID); err != nil {
		s.logger.Error("mark all notifications failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if s.cache != nil {
		_ = s.cache.Delete(r.Context(), unreadCacheKey(userID))
	}
	respondMessage(w, "All notifications marked as read.")
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromCtx(r)
	if err := s.store.DeleteNotification(r.Context(), userID, r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Notification not found.")
			return
		}
		s.logger.Error("delete notification failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if s.cache != nil {
		_ = s.cache.Delete(r.Context(), unreadCacheKey(userID))
	}
	respondMessage(w, "Notification deleted.")
}
