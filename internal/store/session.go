package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/autograder/internal/answers"
	"github.com/pavelanni/autograder/internal/grading"
	"github.com/pavelanni/autograder/internal/model"
)

// SaveSession stores a graded session and its sheets in input order. A
// session without an ID is given a new UUID.
func (s *Store) SaveSession(gs *grading.Session, createdBy int64) error {
	if gs.ID == "" {
		gs.ID = uuid.NewString()
	}
	if gs.CreatedAt.IsZero() {
		gs.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var owner any
	if createdBy > 0 {
		owner = createdBy
	}
	_, err = tx.Exec(
		`INSERT INTO grading_sessions (id, course_name, course_code, answer_key, total_questions, pass_mark, strategy, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gs.ID, gs.Course.Name, gs.Course.Code, gs.RawKey, gs.TotalQuestions, gs.PassMark, gs.Strategy, owner, gs.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i, sh := range gs.Sheets() {
		_, err := tx.Exec(
			`INSERT INTO submissions (session_id, position, file_name, file_size, answers, strategy, score, correct, incorrect, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			gs.ID, i, sh.Name, sh.Size, sh.Answers.String(), sh.Strategy,
			sh.Result.Score, sh.Result.Correct, sh.Result.Incorrect, sh.Error,
		)
		if err != nil {
			return fmt.Errorf("insert submission %q: %w", sh.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("saved grading session", "id", gs.ID, "course", gs.Course.Name, "sheets", len(gs.Sheets()))
	return nil
}

// GetSession loads a stored session with its sheets, or nil if not found.
// The key is re-parsed from the stored raw text.
func (s *Store) GetSession(id string) (*grading.Session, error) {
	gs := &grading.Session{ID: id}
	err := s.db.QueryRow(
		`SELECT course_name, course_code, answer_key, total_questions, pass_mark, strategy, created_at
		 FROM grading_sessions WHERE id = ?`, id,
	).Scan(&gs.Course.Name, &gs.Course.Code, &gs.RawKey, &gs.TotalQuestions, &gs.PassMark, &gs.Strategy, &gs.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	gs.Key = answers.Parse(gs.RawKey)

	rows, err := s.db.Query(
		`SELECT file_name, file_size, answers, strategy, score, correct, incorrect, error
		 FROM submissions WHERE session_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sh grading.Sheet
		var raw string
		if err := rows.Scan(&sh.Name, &sh.Size, &raw, &sh.Strategy,
			&sh.Result.Score, &sh.Result.Correct, &sh.Result.Incorrect, &sh.Error); err != nil {
			return nil, err
		}
		sh.Answers = answers.Parse(raw)
		sh.Result.Total = gs.TotalQuestions
		gs.Add(sh)
	}
	return gs, rows.Err()
}

// ListSessions returns stored sessions, newest first.
func (s *Store) ListSessions() ([]model.SessionSummary, error) {
	rows, err := s.db.Query(
		`SELECT g.id, g.course_name, g.course_code, g.strategy, g.created_at,
		        COUNT(sub.id), COALESCE(AVG(sub.score), 0)
		 FROM grading_sessions g
		 LEFT JOIN submissions sub ON sub.session_id = g.id
		 GROUP BY g.id
		 ORDER BY g.created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.SessionSummary
	for rows.Next() {
		var ss model.SessionSummary
		if err := rows.Scan(&ss.ID, &ss.CourseName, &ss.CourseCode, &ss.Strategy, &ss.CreatedAt,
			&ss.Sheets, &ss.MeanScore); err != nil {
			return nil, err
		}
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and its submissions. Deleting a missing
// session is not an error.
func (s *Store) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM submissions WHERE session_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM grading_sessions WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("deleted grading session", "id", id)
	return nil
}
