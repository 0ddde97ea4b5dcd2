package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/autograder/internal/handler/views"
	appI18n "github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/model"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
	csrfFormField     = "csrf_token"
)

var (
	errCSRFCookie   = errors.New("csrf cookie missing")
	errCSRFField    = errors.New("csrf form field missing")
	errCSRFMismatch = errors.New("csrf token mismatch")
)

// cookie builds a cookie scoped to the mount path. A negative maxAge clears it.
func (h *Handler) cookie(name, value string, maxAge int, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.config.BasePath + "/",
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func newCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// checkCSRF compares the posted form token with the cookie issued on the
// previous page load.
func checkCSRF(r *http.Request) error {
	c, err := r.Cookie(csrfCookieName)
	if err != nil || c.Value == "" {
		return errCSRFCookie
	}
	posted := r.FormValue(csrfFormField)
	if posted == "" {
		return errCSRFField
	}
	if subtle.ConstantTimeCompare([]byte(posted), []byte(c.Value)) != 1 {
		return errCSRFMismatch
	}
	return nil
}

// csrfMiddleware rejects unsafe requests without a matching token and issues
// a fresh token to every request it lets through.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			if err := checkCSRF(r); err != nil {
				slog.Warn("rejected form post", "path", r.URL.Path, "reason", err)
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}
		}

		token, err := newCSRFToken()
		if err != nil {
			slog.Error("failed to generate CSRF token", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, h.cookie(csrfCookieName, token, 0, false))
		next.ServeHTTP(w, r.WithContext(model.ContextWithCSRFToken(r.Context(), token)))
	})
}

// signedInUser returns the active user behind the session cookie, or nil.
func (h *Handler) signedInUser(r *http.Request) *model.User {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	u, err := h.store.UserForToken(c.Value)
	if err != nil {
		slog.Error("failed to resolve session token", "error", err)
		return nil
	}
	return u
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := h.signedInUser(r)
		if u == nil {
			http.Redirect(w, r, h.path("/login"), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(model.ContextWithUser(r.Context(), u)))
	})
}

func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := model.UserFromContext(r.Context())
			switch {
			case u == nil:
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			case !slices.Contains(allowed, u.Role):
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// authenticate returns the active user matching the credentials, or nil.
func (h *Handler) authenticate(username, password string) (*model.User, error) {
	u, err := h.store.GetUserByUsername(username)
	if err != nil || u == nil || !u.Active {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}
	return u, nil
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.LoginPage(errMsg).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if h.signedInUser(r) != nil {
		http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, "")
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	u, err := h.authenticate(username, r.FormValue("password"))
	if err != nil {
		slog.Error("failed to look up user", "username", username, "error", err)
	}
	if u == nil {
		slog.Info("failed login", "username", username)
		h.renderLogin(w, r, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
		return
	}

	token, err := h.store.CreateAuthSession(u.ID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, h.cookie(sessionCookieName, token, 0, true))
	slog.Info("user signed in", "username", u.Username, "role", u.Role)
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		if err := h.store.DeleteAuthSession(c.Value); err != nil {
			slog.Warn("failed to delete auth session", "error", err)
		}
	}
	http.SetCookie(w, h.cookie(sessionCookieName, "", -1, true))
	http.Redirect(w, r, h.path("/login"), http.StatusSeeOther)
}
