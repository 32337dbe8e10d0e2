package memory

import (
	"context"
	"fmt"
	"sync"

	ports "trackme/internal/sheets"
)

var _ ports.Writer = (*Store)(nil)

// Store keeps sheets as in-memory row slices.
type Store struct {
	mu     sync.Mutex
	sheets map[string][][]any
}

func New() *Store {
	return &Store{sheets: make(map[string][][]any)}
}

// AppendRow stores the row and returns a synthetic row reference.
func (s *Store) AppendRow(_ context.Context, sheet string, row []any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[sheet] = append(s.sheets[sheet], append([]any(nil), row...))
	return fmt.Sprintf("mem:%s:%d", sheet, len(s.sheets[sheet])), nil
}

func (s *Store) DeleteRowByID(_ context.Context, sheet, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.sheets[sheet]
	for i, row := range rows {
		if len(row) > 0 && fmt.Sprint(row[0]) == id {
			s.sheets[sheet] = append(rows[:i:i], rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListIDs(_ context.Context, sheet string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]bool, len(s.sheets[sheet]))
	for _, row := range s.sheets[sheet] {
		if len(row) > 0 {
			ids[fmt.Sprint(row[0])] = true
		}
	}
	return ids, nil
}

// Rows returns a copy of a sheet's rows.
func (s *Store) Rows(sheet string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.sheets[sheet]))
	for i, row := range s.sheets[sheet] {
		out[i] = append([]any(nil), row...)
	}
	return out
}
