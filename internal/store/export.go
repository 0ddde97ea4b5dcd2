package store

import (
	"fmt"

	"github.com/pavelanni/autograder/internal/model"
)

// ExportSession builds the export form of one stored session, or nil if it
// does not exist.
func (s *Store) ExportSession(id string) (*model.SessionExport, error) {
	gs, err := s.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	if gs == nil {
		return nil, nil
	}
	export := model.NewSessionExport(gs)
	return &export, nil
}

// ExportAllSessions builds export-ready results for every stored session,
// newest first.
func (s *Store) ExportAllSessions() ([]model.SessionExport, error) {
	sessions, err := s.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	results := make([]model.SessionExport, 0, len(sessions))
	for _, sess := range sessions {
		export, err := s.ExportSession(sess.ID)
		if err != nil {
			return nil, err
		}
		if export == nil {
			continue
		}
		results = append(results, *export)
	}
	return results, nil
}
