package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/pavelanni/autograder/internal/answers"
	"github.com/pavelanni/autograder/internal/grading"
)

const maxAPIBody = 1 << 20

// APIRoutes registers the JSON API. It is stateless and needs no sign-in.
func (h *Handler) APIRoutes(r chi.Router) {
	origins := h.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	r.Post("/key/parse", h.handleAPIParseKey)
	r.Post("/grade", h.handleAPIGrade)
}

type parseKeyRequest struct {
	Raw string `json:"raw"`
}

type parseKeyResponse struct {
	Answers    answers.Mapping `json:"answers"`
	Normalized string          `json:"normalized"`
	Count      int             `json:"count"`
}

type gradeRequest struct {
	Key            string  `json:"key"`
	Answers        string  `json:"answers"` // "1:a, 2:b" or a JSON object as text
	TotalQuestions int     `json:"total_questions"`
	PassMark       float64 `json:"pass_mark"`
}

type gradeResponse struct {
	Result   grading.Result  `json:"result"`
	Passed   bool            `json:"passed"`
	PassMark float64         `json:"pass_mark"`
	Key      answers.Mapping `json:"key"`
	Answers  answers.Mapping `json:"answers"`
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func (h *Handler) handleAPIParseKey(w http.ResponseWriter, r *http.Request) {
	var req parseKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m := answers.Parse(req.Raw)
	writeJSON(w, http.StatusOK, parseKeyResponse{Answers: m, Normalized: m.String(), Count: len(m)})
}

func (h *Handler) handleAPIGrade(w http.ResponseWriter, r *http.Request) {
	var req gradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key := answers.Parse(req.Key)
	if len(key) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Error: "answer key has no answers"})
		return
	}
	total := req.TotalQuestions
	if total <= 0 {
		total = len(key)
	}
	passMark := req.PassMark
	if passMark <= 0 {
		passMark = h.config.PassMark
	}

	student := answers.ParseOracleResponse(req.Answers)
	res := grading.Grade(student, key, total)
	writeJSON(w, http.StatusOK, gradeResponse{
		Result:   res,
		Passed:   res.Passed(passMark),
		PassMark: passMark,
		Key:      key,
		Answers:  student,
	})
}
