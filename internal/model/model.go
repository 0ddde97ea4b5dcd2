package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleTeacher can grade exams and read reports.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin can also manage users.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// GradingConfig holds runtime grading parameters set via CLI flags.
type GradingConfig struct {
	PassMark      float64  // score on the 0-20 scale needed to pass
	Strategy      string   // extraction strategy (auto, text, ocr, llm, marks)
	Concurrency   int      // documents processed at once
	Retries       int      // extraction retries per document
	BasePath      string   // URL prefix for sub-path deployments (e.g. "/grader")
	SecureCookies bool     // Set Secure flag on cookies (disable for local dev)
	MaxUploadSize int64    // bytes accepted per upload request
	CORSOrigins   []string // origins allowed to call the JSON API
}

// SessionSummary is a list entry for a stored grading session.
type SessionSummary struct {
	ID         string
	CourseName string
	CourseCode string
	Strategy   string
	Sheets     int
	MeanScore  float64
	CreatedAt  time.Time
}
