package repository

import (
	"context"
	"fmt"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuotaColumn names a usage counter on the users table.
type QuotaColumn string

const (
	QuotaFullTest        QuotaColumn = "full_test_count"
	QuotaCategoricalTest QuotaColumn = "categorical_test_count"
	QuotaRandomProblem   QuotaColumn = "random_problem_count"
	QuotaScript          QuotaColumn = "script_count"
)

// quotaColumns whitelists counter names before interpolation into SQL.
var quotaColumns = map[QuotaColumn]bool{
	QuotaFullTest:        true,
	QuotaCategoricalTest: true,
	QuotaRandomProblem:   true,
	QuotaScript:          true,
}

// UserRepository handles user accounts, interest profiles, rolling
// average scores and usage counters.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, name, password_hash, interest_topics,
	avg_total, avg_combo, avg_role_play, avg_surprise,
	full_test_count, categorical_test_count, random_problem_count, script_count,
	created_at`

// GetByID retrieves a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id int) (*model.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, interest_topics)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		u.Email, u.Name, u.PasswordHash, u.InterestTopics,
	).Scan(&u.ID, &u.CreatedAt)
}

// ReserveQuota atomically increments a usage counter if it is still
// below ceiling. Returns false when the ceiling was already reached.
// The conditional UPDATE closes the check-then-act window for a single
// counter row.
func (r *UserRepository) ReserveQuota(ctx context.Context, userID int, column QuotaColumn, ceiling int) (bool, error) {
	if !quotaColumns[column] {
		return false, fmt.Errorf("unknown quota column %q", column)
	}
	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE users SET %s = %s + 1 WHERE id = $1 AND %s < $2`, column, column, column),
		userID, ceiling)
	if err != nil {
		return false, fmt.Errorf("reserve quota: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseQuota decrements a usage counter, flooring at zero. This is
// the compensating action after a failed resource creation.
func (r *UserRepository) ReleaseQuota(ctx context.Context, userID int, column QuotaColumn) error {
	if !quotaColumns[column] {
		return fmt.Errorf("unknown quota column %q", column)
	}
	_, err := r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE users SET %s = GREATEST(%s - 1, 0) WHERE id = $1`, column, column),
		userID)
	if err != nil {
		return fmt.Errorf("release quota: %w", err)
	}
	return nil
}

// UpdateAverageScore persists the recomputed rolling averages.
func (r *UserRepository) UpdateAverageScore(ctx context.Context, userID int, score model.TestScore) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET avg_total = $1, avg_combo = $2, avg_role_play = $3, avg_surprise = $4
		 WHERE id = $5`,
		score.Total, score.Combo, score.RolePlay, score.Surprise, userID)
	return err
}

func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.InterestTopics,
		&u.AverageScore.Total, &u.AverageScore.Combo, &u.AverageScore.RolePlay, &u.AverageScore.Surprise,
		&u.FullTestCount, &u.CategoricalTestCount, &u.RandomProblemCount, &u.ScriptCount,
		&u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
