package repository

import (
	"context"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScriptRepository persists standalone transcripts and generated
// practice scripts.
type ScriptRepository struct {
	pool *pgxpool.Pool
}

// NewScriptRepository creates a new ScriptRepository.
func NewScriptRepository(pool *pgxpool.Pool) *ScriptRepository {
	return &ScriptRepository{pool: pool}
}

// Create inserts a new script.
func (r *ScriptRepository) Create(ctx context.Context, s *model.Script) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO scripts (user_id, problem_id, content, source)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		s.UserID, s.ProblemID, s.Content, s.Source,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID retrieves a script owned by the given user.
func (r *ScriptRepository) GetByID(ctx context.Context, id uuid.UUID, userID int) (*model.Script, error) {
	var s model.Script
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, problem_id, content, source, created_at, updated_at
		 FROM scripts WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&s.ID, &s.UserID, &s.ProblemID, &s.Content, &s.Source, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByUser retrieves all scripts of a user, newest first.
func (r *ScriptRepository) ListByUser(ctx context.Context, userID int) ([]model.Script, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, problem_id, content, source, created_at, updated_at
		 FROM scripts WHERE user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scripts []model.Script
	for rows.Next() {
		var s model.Script
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProblemID, &s.Content, &s.Source, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	return scripts, rows.Err()
}

// UpdateContent replaces the script text.
func (r *ScriptRepository) UpdateContent(ctx context.Context, id uuid.UUID, userID int, content string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE scripts SET content = $1, updated_at = NOW()
		 WHERE id = $2 AND user_id = $3`,
		content, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
