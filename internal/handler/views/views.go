// Package views renders the HTML pages as templ components backed by
// embedded html/template files.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"github.com/pavelanni/autograder/internal/grading"
	"github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = map[string]*template.Template{}

func init() {
	for _, name := range []string{"login", "index", "session", "users"} {
		pages[name] = template.Must(template.New(name).
			Funcs(funcs(context.Background())).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
}

// funcs binds the template helpers to the request context.
func funcs(ctx context.Context) template.FuncMap {
	return template.FuncMap{
		"t":  func(id string) string { return i18n.T(ctx, id) },
		"tp": func(id string, n int) string { return i18n.Tp(ctx, id, n) },
		"td": func(id string, kv ...any) string {
			data := map[string]any{}
			for i := 0; i+1 < len(kv); i += 2 {
				data[fmt.Sprint(kv[i])] = kv[i+1]
			}
			return i18n.Td(ctx, id, data)
		},
		"path": func(p string) string { return model.BasePathFromContext(ctx) + p },
		"csrf": func() string { return model.CSRFTokenFromContext(ctx) },
		"user": func() *model.User { return model.UserFromContext(ctx) },
		"isAdmin": func() bool {
			u := model.UserFromContext(ctx)
			return u != nil && u.Role == model.UserRoleAdmin
		},
		"score": func(f float64) string { return fmt.Sprintf("%.2f", f) },
		"bytes": func(n int64) string {
			if n < 0 {
				n = 0
			}
			return humanize.Bytes(uint64(n))
		},
		"date": func(t time.Time) string { return t.Local().Format("2006-01-02 15:04") },
		"ago":  func(t time.Time) string { return humanize.Time(t) },
		"join": strings.Join,
	}
}

func render(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t, err := pages[name].Clone()
		if err != nil {
			return err
		}
		return t.Funcs(funcs(ctx)).ExecuteTemplate(w, "layout", data)
	})
}

// LoginPage renders the sign-in form with an optional error message.
func LoginPage(errMsg string) templ.Component {
	return render("login", struct{ Error string }{errMsg})
}

// FormValues echoes the submitted session form back to the page.
type FormValues struct {
	CourseName     string
	CourseCode     string
	AnswerKey      string
	TotalQuestions string
	PassMark       string
	Strategy       string
}

// IndexData is the home page: the new-session form and the stored sessions.
type IndexData struct {
	Form         FormValues
	Missing      []string // localized labels of the fields still missing
	Error        string
	Strategies   []string
	MaxDocuments int
	Sessions     []model.SessionSummary
}

// IndexPage renders the home page.
func IndexPage(data IndexData) templ.Component {
	return render("index", data)
}

// SessionRow is one ranked sheet on the session page.
type SessionRow struct {
	Rank   int
	Sheet  grading.Sheet
	Passed bool
}

// SessionData is the results page of one grading session.
type SessionData struct {
	Session *grading.Session
	Summary grading.Summary
	Rows    []SessionRow
}

// NewSessionData ranks the session's sheets for display.
func NewSessionData(s *grading.Session) SessionData {
	ranked := s.Ranked()
	rows := make([]SessionRow, len(ranked))
	for i, sh := range ranked {
		rows[i] = SessionRow{Rank: i + 1, Sheet: sh, Passed: sh.Result.Passed(s.PassMark)}
	}
	return SessionData{Session: s, Summary: s.Summary(), Rows: rows}
}

// SessionPage renders the results of one grading session.
func SessionPage(data SessionData) templ.Component {
	return render("session", data)
}

// AdminUsersPage renders user management with an optional status message.
func AdminUsersPage(users []model.User, msg string) templ.Component {
	return render("users", struct {
		Users   []model.User
		Message string
	}{users, msg})
}
