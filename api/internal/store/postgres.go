package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGStore persists questions in Postgres. Steps are stored as a JSON column;
// id assignment and the save toggle are serialized by the database itself.
type PGStore struct{ DB *sql.DB }

func NewPGStore(db *sql.DB) *PGStore { return &PGStore{DB: db} }

// Init creates the questions table when it does not exist yet.
func (s *PGStore) Init(ctx context.Context) error {
	const ddl = `
create table if not exists questions (
  id            serial primary key,
  user_id       integer,
  original_text text not null,
  question_type text not null,
  answer        text not null,
  steps         jsonb not null default '[]',
  confidence    integer,
  created_at    timestamptz not null default now(),
  is_saved      boolean not null default false
)`
	_, err := s.DB.ExecContext(ctx, ddl)
	return err
}

func (s *PGStore) Create(ctx context.Context, in InsertQuestion) (Question, error) {
	steps := in.Steps
	if steps == nil {
		steps = []Step{}
	}
	js, err := json.Marshal(steps)
	if err != nil {
		return Question{}, err
	}

	const q = `
insert into questions (user_id, original_text, question_type, answer, steps, confidence, is_saved)
values ($1,$2,$3,$4,$5,$6,$7)
returning id, created_at`

	out := Question{
		UserID:       in.UserID,
		OriginalText: in.OriginalText,
		QuestionType: in.QuestionType,
		Answer:       in.Answer,
		Steps:        steps,
		Confidence:   in.Confidence,
		IsSaved:      in.IsSaved,
	}
	row := s.DB.QueryRowContext(ctx, q,
		in.UserID, in.OriginalText, in.QuestionType, in.Answer, js, in.Confidence, in.IsSaved)
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		return Question{}, err
	}
	return out, nil
}

const questionCols = `id, user_id, original_text, question_type, answer, steps, confidence, created_at, is_saved`

func scanQuestion(row interface{ Scan(...any) error }) (Question, error) {
	var (
		q  Question
		js []byte
	)
	err := row.Scan(&q.ID, &q.UserID, &q.OriginalText, &q.QuestionType, &q.Answer,
		&js, &q.Confidence, &q.CreatedAt, &q.IsSaved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, ErrNotFound
		}
		return Question{}, err
	}
	q.Steps = []Step{}
	if len(js) > 0 {
		if err := json.Unmarshal(js, &q.Steps); err != nil {
			return Question{}, fmt.Errorf("question %d: bad steps json: %w", q.ID, err)
		}
	}
	return q, nil
}

func (s *PGStore) Get(ctx context.Context, id int) (Question, error) {
	q := `select ` + questionCols + ` from questions where id=$1`
	return scanQuestion(s.DB.QueryRowContext(ctx, q, id))
}

func (s *PGStore) List(ctx context.Context, userID *int) ([]Question, error) {
	q := `select ` + questionCols + ` from questions order by id`
	args := []any{}
	if userID != nil {
		q = `select ` + questionCols + ` from questions where user_id=$1 order by id`
		args = append(args, *userID)
	}
	return s.queryQuestions(ctx, q, args...)
}

func (s *PGStore) ListRecent(ctx context.Context, limit int) ([]Question, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	q := `select ` + questionCols + ` from questions order by created_at desc, id desc limit $1`
	return s.queryQuestions(ctx, q, limit)
}

func (s *PGStore) ToggleSave(ctx context.Context, id int) (Question, error) {
	q := `update questions set is_saved = not is_saved where id=$1 returning ` + questionCols
	return scanQuestion(s.DB.QueryRowContext(ctx, q, id))
}

func (s *PGStore) queryQuestions(ctx context.Context, q string, args ...any) ([]Question, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		qu, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qu)
	}
	return out, rows.Err()
}

// PurgeOlderThan removes stale records, mirroring a periodic cleanup job.
func (s *PGStore) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	res, err := s.DB.ExecContext(ctx, `delete from questions where created_at < $1 and not is_saved`, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
