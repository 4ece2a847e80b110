package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"intake/internal/domain"
	"intake/internal/dto"
	"intake/internal/netutil"
	"intake/internal/service/impl"

	"github.com/google/uuid"
)

type handler struct {
	deps Deps
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware has already folded X-Forwarded-For /
	// X-Real-IP into RemoteAddr.
	if normalized, ok := netutil.NormalizeIP(r.RemoteAddr); ok {
		return normalized
	}
	return r.RemoteAddr
}

func (h *handler) requestOTP(w http.ResponseWriter, r *http.Request) {
	var req dto.RequestOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	res, err := h.deps.Auth.RequestOTP(r.Context(), req, clientIP(r), r.UserAgent())
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	ip, ua := clientIP(r), r.UserAgent()
	user, err := h.deps.Auth.VerifyOTP(r.Context(), req, ip, ua)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	if err := h.setSessionCookie(w, r, user.ID, ip, ua); err != nil {
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *handler) passwordLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	ip, ua := clientIP(r), r.UserAgent()
	res, err := h.deps.Auth.PasswordLogin(r.Context(), req, ip, ua)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	if err := h.setSessionCookie(w, r, res.User.ID, ip, ua); err != nil {
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Warning", `299 - "`+impl.PasswordDeprecationWarning+`"`)
	w.Header().Set("X-Auth-Deprecated", "true")
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) setupPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	var req dto.SetupPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	res, err := h.deps.Auth.SetupPassword(r.Context(), userID, req)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) changeAuthMethod(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	var req dto.ChangeAuthMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	res, err := h.deps.Auth.ChangeAuthMethod(r.Context(), userID, req.Method)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) migrationStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	status, err := h.deps.Migration.Status(r.Context(), userID)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	if status == nil {
		writeJSON(w, http.StatusOK, struct {
			Active bool `json:"active"`
		}{Active: false})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Active bool `json:"active"`
		*dto.MigrationStatusResponse
	}{Active: true, MigrationStatusResponse: status})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if err := h.deps.Sessions.Revoke(r.Context(), sessionID); err != nil {
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.deps.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) setSessionCookie(w http.ResponseWriter, r *http.Request, userIDStr, ip, ua string) error {
	userID, err := parseUserID(userIDStr)
	if err != nil {
		return err
	}
	token, sess, err := h.deps.Sessions.Issue(r.Context(), userID, ip, ua)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.deps.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeAuthError maps the domain taxonomy onto HTTP statuses: lockouts are
// 429 with an exact retry window, credential problems 401, validation 400.
func writeAuthError(w http.ResponseWriter, err error) {
	var locked *domain.LockedError
	switch {
	case errors.As(err, &locked):
		w.Header().Set("Retry-After", strconv.Itoa(locked.RemainingMinutes()*60))
		writeJSON(w, http.StatusTooManyRequests, errorBody(locked.Error()))
	case errors.Is(err, domain.ErrMaxAttempts):
		w.Header().Set("Retry-After", strconv.Itoa(int(domain.OTPLockoutWindow.Seconds())))
		writeJSON(w, http.StatusTooManyRequests, errorBody(fmt.Sprintf(
			"too many failed attempts, try again in %d minutes", int(domain.OTPLockoutWindow.Minutes()))))
	case errors.Is(err, domain.ErrOTPExpired):
		writeJSON(w, http.StatusUnauthorized, errorBody("code expired, request a new one"))
	case errors.Is(err, domain.ErrOTPInvalid), errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrSessionInvalid):
		writeJSON(w, http.StatusUnauthorized, errorBody("invalid credentials"))
	case errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("user not found"))
	case errors.Is(err, impl.ErrEmptyUsername),
		errors.Is(err, impl.ErrEmptyPassword),
		errors.Is(err, impl.ErrPasswordLength),
		errors.Is(err, impl.ErrPasswordMismatch),
		errors.Is(err, impl.ErrPasswordNotSet),
		errors.Is(err, impl.ErrUnknownAuthMethod):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error("auth handler error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse { return errResponse{Error: msg} }

func parseUserID(s string) (domain.UserID, error) {
	return uuid.Parse(strings.TrimSpace(s))
}
