package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestRepository persists assembled tests and their per-slot items.
// Item mutations are field-scoped single-row updates: concurrent
// pipelines for different slots never touch the same row.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// Create inserts the test and all of its item slots in one transaction.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO tests (user_id, test_type, overall_status)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		t.UserID, t.TestType, model.OverallStatusPending,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}
	t.OverallStatus = model.OverallStatusPending

	for i := range t.Items {
		item := &t.Items[i]
		item.TestID = t.ID
		item.Status = model.ItemStatusPending
		_, err := tx.Exec(ctx,
			`INSERT INTO test_items (test_id, slot, problem_id, problem_category, topic_category, content, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, item.Slot, item.ProblemID, item.ProblemCategory, item.TopicCategory, item.Content, item.Status)
		if err != nil {
			return fmt.Errorf("insert item %d: %w", item.Slot, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a test with all items, ordered by slot.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	var (
		t           model.Test
		scoreRaw    []byte
		feedbackRaw []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, test_type, score, feedback, overall_status, overall_error, created_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.UserID, &t.TestType, &scoreRaw, &feedbackRaw, &t.OverallStatus, &t.OverallError, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if scoreRaw != nil {
		if err := json.Unmarshal(scoreRaw, &t.Score); err != nil {
			return nil, fmt.Errorf("decode score: %w", err)
		}
	}
	if feedbackRaw != nil {
		t.Feedback = &model.TestFeedback{}
		if err := json.Unmarshal(feedbackRaw, t.Feedback); err != nil {
			return nil, fmt.Errorf("decode feedback: %w", err)
		}
	}

	items, err := r.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Items = items
	return &t, nil
}

// ListByUser retrieves test summaries (no items) for a user, newest first.
func (r *TestRepository) ListByUser(ctx context.Context, userID int) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, test_type, score, overall_status, created_at
		 FROM tests WHERE user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var (
			t        model.Test
			scoreRaw []byte
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.TestType, &scoreRaw, &t.OverallStatus, &t.CreatedAt); err != nil {
			return nil, err
		}
		if scoreRaw != nil {
			if err := json.Unmarshal(scoreRaw, &t.Score); err != nil {
				return nil, fmt.Errorf("decode score: %w", err)
			}
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// Delete removes a test and (via FK cascade) its items.
func (r *TestRepository) Delete(ctx context.Context, id uuid.UUID, userID int) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM tests WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListItems retrieves all item slots of a test, ordered by slot.
func (r *TestRepository) ListItems(ctx context.Context, testID uuid.UUID) ([]model.TestItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT test_id, slot, problem_id, problem_category, topic_category, content,
		        user_response, score, feedback, status, message, started_at, completed_at
		 FROM test_items WHERE test_id = $1
		 ORDER BY slot`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.TestItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetItem retrieves one item slot.
func (r *TestRepository) GetItem(ctx context.Context, testID uuid.UUID, slot int) (*model.TestItem, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT test_id, slot, problem_id, problem_category, topic_category, content,
		        user_response, score, feedback, status, message, started_at, completed_at
		 FROM test_items WHERE test_id = $1 AND slot = $2`, testID, slot)
	return scanItem(row)
}

// MarkItemStarted moves a slot to TRANSCRIBING and records the start time.
func (r *TestRepository) MarkItemStarted(ctx context.Context, testID uuid.UUID, slot int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE test_items
		 SET status = $1, message = NULL, started_at = NOW()
		 WHERE test_id = $2 AND slot = $3`,
		model.ItemStatusTranscribing, testID, slot)
	return err
}

// SetItemResponse stores the transcript and moves the slot to EVALUATING.
func (r *TestRepository) SetItemResponse(ctx context.Context, testID uuid.UUID, slot int, response string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE test_items
		 SET user_response = $1, status = $2
		 WHERE test_id = $3 AND slot = $4`,
		response, model.ItemStatusEvaluating, testID, slot)
	return err
}

// SetItemResult stores the grade and completes the slot.
func (r *TestRepository) SetItemResult(ctx context.Context, testID uuid.UUID, slot int, score model.Level, feedback model.ItemFeedback) error {
	raw, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE test_items
		 SET score = $1, feedback = $2, status = $3, completed_at = NOW()
		 WHERE test_id = $4 AND slot = $5`,
		score, raw, model.ItemStatusCompleted, testID, slot)
	return err
}

// MarkItemFailed records an infrastructure failure on the slot.
func (r *TestRepository) MarkItemFailed(ctx context.Context, testID uuid.UUID, slot int, message string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE test_items
		 SET status = $1, message = $2, completed_at = NOW()
		 WHERE test_id = $3 AND slot = $4`,
		model.ItemStatusFailed, message, testID, slot)
	return err
}

// SetOverallStatus updates the aggregate pipeline status. The error
// message is cleared unless the new status is FAILED.
func (r *TestRepository) SetOverallStatus(ctx context.Context, testID uuid.UUID, status model.OverallStatus, errMsg *string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests SET overall_status = $1, overall_error = $2 WHERE id = $3`,
		status, errMsg, testID)
	return err
}

// SetOverallResult stores the final score/feedback and completes the test.
func (r *TestRepository) SetOverallResult(ctx context.Context, testID uuid.UUID, score model.TestScore, feedback model.TestFeedback) error {
	scoreRaw, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("encode score: %w", err)
	}
	feedbackRaw, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE tests
		 SET score = $1, feedback = $2, overall_status = $3, overall_error = NULL
		 WHERE id = $4`,
		scoreRaw, feedbackRaw, model.OverallStatusCompleted, testID)
	return err
}

// ListCompletedScores returns the stored aggregate scores of every test
// of the user whose feedback pipeline completed. Used for the rolling
// user average.
func (r *TestRepository) ListCompletedScores(ctx context.Context, userID int) ([]model.TestScore, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT score FROM tests
		 WHERE user_id = $1 AND overall_status = $2 AND score IS NOT NULL`,
		userID, model.OverallStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []model.TestScore
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var s model.TestScore
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

func scanItem(row pgx.Row) (*model.TestItem, error) {
	var (
		item        model.TestItem
		feedbackRaw []byte
		startedAt   *time.Time
		completedAt *time.Time
	)
	err := row.Scan(&item.TestID, &item.Slot, &item.ProblemID, &item.ProblemCategory,
		&item.TopicCategory, &item.Content, &item.UserResponse, &item.Score,
		&feedbackRaw, &item.Status, &item.Message, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if feedbackRaw != nil {
		item.Feedback = &model.ItemFeedback{}
		if err := json.Unmarshal(feedbackRaw, item.Feedback); err != nil {
			return nil, fmt.Errorf("decode item feedback: %w", err)
		}
	}
	item.StartedAt = startedAt
	item.CompletedAt = completedAt
	return &item, nil
}
