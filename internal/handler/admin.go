package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/autograder/internal/handler/views"
	appI18n "github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/model"
)

func (h *Handler) renderUsers(w http.ResponseWriter, r *http.Request, status int, msg string) {
	users, err := h.store.ListUsers()
	if err != nil {
		slog.Error("failed to list users", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.AdminUsersPage(users, msg).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleAdminUsersPage(w http.ResponseWriter, r *http.Request) {
	h.renderUsers(w, r, http.StatusOK, "")
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	form := model.UserForm{
		Username:    strings.TrimSpace(r.FormValue("username")),
		DisplayName: strings.TrimSpace(r.FormValue("display_name")),
		Password:    r.FormValue("password"),
		Role:        r.FormValue("role"),
	}
	if err := form.Validate(); err != nil {
		var labels []string
		for _, field := range model.InvalidFields(err) {
			labels = append(labels, appI18n.T(r.Context(), field))
		}
		h.renderUsers(w, r, http.StatusUnprocessableEntity,
			appI18n.T(r.Context(), "MissingFields")+" "+strings.Join(labels, ", "))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if form.DisplayName == "" {
		form.DisplayName = form.Username
	}

	_, err = h.store.CreateUser(model.User{
		Username:     form.Username,
		DisplayName:  form.DisplayName,
		PasswordHash: string(hash),
		Role:         model.UserRole(form.Role),
		Active:       true,
	})
	if err != nil {
		h.renderUsers(w, r, http.StatusConflict, "failed to create user: "+err.Error())
		return
	}

	h.renderUsers(w, r, http.StatusOK,
		appI18n.Td(r.Context(), "UserCreated", map[string]any{"Name": form.Username}))
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}
	if u := model.UserFromContext(r.Context()); u != nil && u.ID == id {
		http.Error(w, "cannot deactivate yourself", http.StatusBadRequest)
		return
	}

	if err := h.store.ToggleUserActive(id); err != nil {
		slog.Error("failed to toggle user active", "id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}
