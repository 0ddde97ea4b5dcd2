package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pavelanni/autograder/internal/batch"
	"github.com/pavelanni/autograder/internal/extract"
	"github.com/pavelanni/autograder/internal/grading"
	"github.com/pavelanni/autograder/internal/handler/views"
	appI18n "github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/model"
	"github.com/pavelanni/autograder/internal/report"
	"github.com/pavelanni/autograder/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	extract extract.Config
	config  model.GradingConfig
}

// New creates a new Handler.
func New(s *store.Store, ex extract.Config, cfg model.GradingConfig) (*Handler, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = string(extract.StrategyAuto)
	}
	if _, err := extract.ParseStrategy(cfg.Strategy); err != nil {
		return nil, err
	}
	if cfg.PassMark <= 0 {
		cfg.PassMark = grading.DefaultPassMark
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 200 << 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	cfg.BasePath = strings.TrimRight(cfg.BasePath, "/")
	if cfg.BasePath != "" && !strings.HasPrefix(cfg.BasePath, "/") {
		cfg.BasePath = "/" + cfg.BasePath
	}
	return &Handler{store: s, extract: ex, config: cfg}, nil
}

// Router builds the application's HTTP handler, mounted under the
// configured base path.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware)

	basePath := h.config.BasePath
	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1", h.APIRoutes)

	r.Group(func(r chi.Router) {
		r.Use(h.limitBody)
		r.Use(h.csrfMiddleware)
		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/logout", h.handleLogout)
			r.Get("/", h.handleIndex)
			r.Post("/sessions", h.handleCreateSession)
			r.Get("/sessions/{sessionID}", h.handleSessionPage)
			r.Get("/sessions/{sessionID}/report.pdf", h.handleReportPDF)
			r.Get("/sessions/{sessionID}/report.xlsx", h.handleReportXLSX)
			r.Post("/sessions/{sessionID}/delete", h.handleDeleteSession)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Get("/admin/users", h.handleAdminUsersPage)
				r.Post("/admin/users", h.handleCreateUser)
				r.Post("/admin/users/{userID}/toggle", h.handleToggleUserActive)
			})
		})
	})
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) renderIndex(w http.ResponseWriter, r *http.Request, status int, data views.IndexData) {
	sessions, err := h.store.ListSessions()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data.Sessions = sessions
	data.Strategies = extract.StrategyNames()
	data.MaxDocuments = model.MaxDocuments
	if data.Form.Strategy == "" {
		data.Form.Strategy = h.config.Strategy
	}
	if data.Form.PassMark == "" {
		data.Form.PassMark = strconv.FormatFloat(h.config.PassMark, 'f', -1, 64)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.IndexPage(data).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, r, http.StatusOK, views.IndexData{})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}
	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["documents"]
	}

	values := views.FormValues{
		CourseName:     strings.TrimSpace(r.FormValue("course_name")),
		CourseCode:     strings.TrimSpace(r.FormValue("course_code")),
		AnswerKey:      strings.TrimSpace(r.FormValue("answer_key")),
		TotalQuestions: strings.TrimSpace(r.FormValue("total_questions")),
		PassMark:       strings.TrimSpace(r.FormValue("pass_mark")),
		Strategy:       strings.TrimSpace(r.FormValue("strategy")),
	}
	form := model.SessionForm{
		CourseName:     values.CourseName,
		CourseCode:     values.CourseCode,
		AnswerKey:      values.AnswerKey,
		TotalQuestions: parseIntOr(values.TotalQuestions, 0),
		PassMark:       parseFloatOr(values.PassMark, h.config.PassMark),
		Strategy:       values.Strategy,
		Documents:      len(files),
	}
	if form.Strategy == "" {
		form.Strategy = h.config.Strategy
	}

	if err := form.Validate(); err != nil {
		data := views.IndexData{Form: values}
		for _, field := range model.InvalidFields(err) {
			data.Missing = append(data.Missing, appI18n.T(r.Context(), field))
		}
		if form.Documents > model.MaxDocuments {
			data.Error = appI18n.Td(r.Context(), "TooManyDocuments", map[string]any{"Max": model.MaxDocuments})
		}
		h.renderIndex(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	strategy, _ := extract.ParseStrategy(form.Strategy)
	ex, err := extract.New(strategy, h.extract)
	if err != nil {
		h.renderIndex(w, r, http.StatusBadRequest, views.IndexData{Form: values, Error: err.Error()})
		return
	}

	docs, err := readDocuments(files)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	gs := grading.NewSession(
		grading.Course{Name: form.CourseName, Code: form.CourseCode},
		form.AnswerKey, form.TotalQuestions, form.PassMark,
	)
	gs.Strategy = string(strategy)

	runner := batch.New(ex,
		batch.WithConcurrency(h.config.Concurrency),
		batch.WithRetries(h.config.Retries),
		batch.WithStrategy(string(strategy)),
	)
	if _, err := runner.Run(r.Context(), gs, docs, nil); err != nil {
		slog.Error("grading failed", "course", form.CourseName, "error", err)
		h.renderIndex(w, r, http.StatusInternalServerError,
			views.IndexData{Form: values, Error: appI18n.T(r.Context(), "GradingFailed")})
		return
	}

	var userID int64
	if u := model.UserFromContext(r.Context()); u != nil {
		userID = u.ID
	}
	if err := h.store.SaveSession(gs, userID); err != nil {
		slog.Error("failed to save session", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.path("/sessions/"+gs.ID), http.StatusSeeOther)
}

func readDocuments(files []*multipart.FileHeader) ([]extract.Document, error) {
	docs := make([]extract.Document, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		var buf bytes.Buffer
		_, err = io.Copy(&buf, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		docs = append(docs, extract.NewDocument(fh.Filename, buf.Bytes()))
	}
	return docs, nil
}

func parseIntOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

func parseFloatOr(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return -1
	}
	return f
}

// loadSession fetches the session named in the URL, writing a 404 when it
// does not exist.
func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) *grading.Session {
	gs, err := h.store.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil
	}
	if gs == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil
	}
	return gs
}

func (h *Handler) handleSessionPage(w http.ResponseWriter, r *http.Request) {
	gs := h.loadSession(w, r)
	if gs == nil {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.SessionPage(views.NewSessionData(gs)).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	gs := h.loadSession(w, r)
	if gs == nil {
		return
	}
	now := time.Now()
	var buf bytes.Buffer
	if err := report.PDF(r.Context(), &buf, gs, now); err != nil {
		slog.Error("pdf report failed", "session", gs.ID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	serveAttachment(w, "application/pdf", report.Filename(gs.Course.Code, now, "pdf"), buf.Bytes())
}

func (h *Handler) handleReportXLSX(w http.ResponseWriter, r *http.Request) {
	gs := h.loadSession(w, r)
	if gs == nil {
		return
	}
	now := time.Now()
	var buf bytes.Buffer
	if err := report.XLSX(r.Context(), &buf, gs); err != nil {
		slog.Error("xlsx report failed", "session", gs.ID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	serveAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		report.Filename(gs.Course.Code, now, "xlsx"), buf.Bytes())
}

func serveAttachment(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Warn("write report", "error", err)
	}
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSession(chi.URLParam(r, "sessionID")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}
