package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore keeps questions in memory. The single mutex guards both the id
// counter and the record map, so concurrent submissions cannot race
// id assignment or lose a ToggleSave.
type MemStore struct {
	mu        sync.Mutex
	questions map[int]Question
	nextID    int
}

func NewMemStore() *MemStore {
	return &MemStore{
		questions: make(map[int]Question),
		nextID:    1,
	}
}

func (s *MemStore) Create(_ context.Context, in InsertQuestion) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := Question{
		ID:           s.nextID,
		UserID:       in.UserID,
		OriginalText: in.OriginalText,
		QuestionType: in.QuestionType,
		Answer:       in.Answer,
		Steps:        append([]Step(nil), in.Steps...),
		Confidence:   in.Confidence,
		CreatedAt:    time.Now(),
		IsSaved:      in.IsSaved,
	}
	s.nextID++
	s.questions[q.ID] = q
	return q, nil
}

func (s *MemStore) Get(_ context.Context, id int) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return Question{}, ErrNotFound
	}
	return q, nil
}

func (s *MemStore) List(_ context.Context, userID *int) ([]Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Question, 0, len(s.questions))
	for _, q := range s.questions {
		if userID != nil && (q.UserID == nil || *q.UserID != *userID) {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ListRecent(_ context.Context, limit int) ([]Question, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) ToggleSave(_ context.Context, id int) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return Question{}, ErrNotFound
	}
	q.IsSaved = !q.IsSaved
	s.questions[id] = q
	return q, nil
}
