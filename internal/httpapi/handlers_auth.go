package httpapi

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"botpanel/internal/auth"
	"botpanel/internal/store"

	"github.com/google/uuid"
)

const (
	captchaRequiredMessage = "Please complete the security verification."
	verificationCodeTTL    = 15 * time.Minute
)

func (s *Server) authOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.AuthAttempts.WithLabelValues(outcome).Inc()
	}
}

// checkCaptcha gates an auth endpoint behind Turnstile. An empty token short
// circuits before any store access.
func (s *Server) checkCaptcha(w http.ResponseWriter, r *http.Request, token string) bool {
	if strings.TrimSpace(token) == "" {
		s.authOutcome("captcha_missing")
		fail(w, http.StatusUnprocessableEntity, captchaRequiredMessage)
		return false
	}
	if s.captcha != nil {
		if err := s.captcha.Verify(r.Context(), token, r.RemoteAddr); err != nil {
			s.logger.Warn("captcha verification failed", "error", err)
			s.authOutcome("captcha_failed")
			fail(w, http.StatusUnprocessableEntity, captchaRequiredMessage)
			return false
		}
	}
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		CaptchaToken string `json:"captcha_token"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if !s.checkCaptcha(w, r, req.CaptchaToken) {
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.authOutcome("invalid_credentials")
			fail(w, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		s.logger.Error("login lookup failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.authOutcome("invalid_credentials")
		fail(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	switch user.Status {
	case store.UserStatusPending:
		s.authOutcome("pending")
		fail(w, http.StatusUnauthorized, "Your account is awaiting approval.")
		return
	case store.UserStatusSuspended:
		s.authOutcome("suspended")
		fail(w, http.StatusUnauthorized, "Your account has been suspended.")
		return
	}

	token, err := auth.Sign(s.jwtSecret, user.ID, user.Role, s.tokenTTL)
	if err != nil {
		s.logger.Error("token sign failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	s.authOutcome("success")
	respond(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		Email        string `json:"email"`
		Password     string `json:"password"`
		CaptchaToken string `json:"captcha_token"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if !s.checkCaptcha(w, r, req.CaptchaToken) {
		return
	}

	errs := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		errs["name"] = requiredFieldMessage("name")
	}
	if !strings.Contains(req.Email, "@") {
		errs["email"] = "The email must be a valid email address."
	}
	if len(req.Password) < 8 {
		errs["password"] = "The password must be at least 8 characters."
	}
	if len(errs) > 0 {
		failFields(w, errs)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hash failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         store.RoleUser,
		Status:       store.UserStatusPending,
		AvatarSeed:   uuid.NewString(),
		APIToken:     auth.NewAPIToken(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			failFields(w, map[string]string{"email": "The email has already been taken."})
			return
		}
		s.logger.Error("create user failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	code, err := s.issueCode(r, user.ID, user.Email, store.PurposeVerifyEmail)
	if err != nil {
		s.logger.Error("issue verification code failed", "error", err)
	} else {
		s.logger.Info("verification code issued", "email", user.Email, "code", code)
	}

	s.notifyAdmins(r, "registration", "New registration",
		fmt.Sprintf("%s (%s) registered and is awaiting approval.", user.Name, user.Email))

	respond(w, http.StatusCreated, map[string]any{
		"message": "Registered. Check your email for the verification code.",
		"user":    user,
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	vc, err := s.store.ConsumeVerificationCode(r.Context(), req.Email, req.Code, store.PurposeVerifyEmail)
	if err != nil {
		if errors.Is(err, store.ErrCodeExpired) {
			fail(w, http.StatusBadRequest, "The verification code is invalid or has expired.")
			return
		}
		s.logger.Error("verify email failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	s.notify(r, vc.UserID, "verification", "Email verified",
		"Your email address has been verified. An administrator will review your account shortly.")
	respondMessage(w, "Email verified. Your account is awaiting admin approval.")
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	// The response is identical whether or not the account exists.
	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err == nil {
		if code, err := s.issueCode(r, user.ID, user.Email, store.PurposeResetPassword); err != nil {
			s.logger.Error("issue reset code failed", "error", err)
		} else {
			s.logger.Info("reset code issued", "email", user.Email, "code", code)
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("forgot password lookup failed", "error", err)
	}

	respondMessage(w, "If the email exists, a reset code has been sent.")
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Code     string `json:"code"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if len(req.Password) < 8 {
		failFields(w, map[string]string{"password": "The password must be at least 8 characters."})
		return
	}

	vc, err := s.store.ConsumeVerificationCode(r.Context(), req.Email, req.Code, store.PurposeResetPassword)
	if err != nil {
		if errors.Is(err, store.ErrCodeExpired) {
			fail(w, http.StatusBadRequest, "The verification code is invalid or has expired.")
			return
		}
		s.logger.Error("reset password verify failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hash failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if err := s.store.UpdateUserPassword(r.Context(), vc.UserID, hash); err != nil {
		s.logger.Error("reset password update failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respondMessage(w, "Password has been reset. You can now sign in.")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if jti := tokenIDFromCtx(r); jti != "" {
		if err := s.store.RevokeToken(r.Context(), jti, tokenExpiryFromCtx(r)); err != nil {
			// Clients discard the token regardless.
			s.logger.Warn("token revocation failed", "error", err)
		}
	}
	respondMessage(w, "Logged out.")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUserByID(r.Context(), userIDFromCtx(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		s.logger.Error("load profile failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respond(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		AvatarSeed  string `json:"avatar_seed"`
		AvatarStyle string `json:"avatar_style"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		failFields(w, map[string]string{"name": requiredFieldMessage("name")})
		return
	}

	userID := userIDFromCtx(r)
	if err := s.store.UpdateUserProfile(r.Context(), userID, strings.TrimSpace(req.Name), req.AvatarSeed, req.AvatarStyle); err != nil {
		s.logger.Error("update profile failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		s.logger.Error("reload profile failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respond(w, http.StatusOK, map[string]any{"message": "Profile updated.", "user": user})
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		Password        string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if len(req.Password) < 8 {
		failFields(w, map[string]string{"password": "The password must be at least 8 characters."})
		return
	}

	user, err := s.store.GetUserByID(r.Context(), userIDFromCtx(r))
	if err != nil {
		s.logger.Error("load user failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		fail(w, http.StatusBadRequest, "The current password is incorrect.")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hash failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if err := s.store.UpdateUserPassword(r.Context(), user.ID, hash); err != nil {
		s.logger.Error("update password failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respondMessage(w, "Password updated.")
}

func (s *Server) handleRegenerateToken(w http.ResponseWriter, r *http.Request) {
	token := auth.NewAPIToken()
	if err := s.store.SetAPIToken(r.Context(), userIDFromCtx(r), token); err != nil {
		s.logger.Error("regenerate token failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respond(w, http.StatusOK, map[string]any{"api_token": token})
}

func (s *Server) issueCode(r *http.Request, userID, email, purpose string) (string, error) {
	code, err := numericCode(6)
	if err != nil {
		return "", err
	}
	vc := &store.VerificationCode{
		ID:        uuid.NewString(),
		UserID:    userID,
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(verificationCodeTTL),
	}
	if err := s.store.CreateVerificationCode(r.Context(), vc); err != nil {
		return "", err
	}
	return code, nil
}

func numericCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("random code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
