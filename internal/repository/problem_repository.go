package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const problemColumns = `id, topic_category, problem_category, content, audio_url, high_grade_kit, problem_group_id, problem_order`

// ProblemRepository is the read-only accessor over the question pool.
// Every sampling method draws uniformly at random from the matching set
// and honors a caller-supplied exclusion set of already-used IDs.
type ProblemRepository struct {
	pool *pgxpool.Pool
}

// NewProblemRepository creates a new ProblemRepository.
func NewProblemRepository(pool *pgxpool.Pool) *ProblemRepository {
	return &ProblemRepository{pool: pool}
}

// GetByID retrieves a single problem.
func (r *ProblemRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Problem, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+problemColumns+` FROM problems WHERE id = $1`, id)
	return scanProblem(row)
}

// SampleByCategory returns up to n random problems of one functional
// category, excluding the given IDs.
func (r *ProblemRepository) SampleByCategory(ctx context.Context, category model.ProblemCategory, exclude []uuid.UUID, n int) ([]model.Problem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+problemColumns+`
		 FROM problems
		 WHERE problem_category = $1
		   AND NOT (id = ANY($2))
		 ORDER BY random()
		 LIMIT $3`,
		category, excludeArg(exclude), n)
	if err != nil {
		return nil, fmt.Errorf("sample by category: %w", err)
	}
	return collectProblems(rows)
}

// SampleByTopics returns up to n random combo-eligible problems whose
// topic is in topics. An empty topics slice matches any topic.
// Self-introduction and role-play problems never seed combo sets.
func (r *ProblemRepository) SampleByTopics(ctx context.Context, topics []string, exclude []uuid.UUID, n int) ([]model.Problem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+problemColumns+`
		 FROM problems
		 WHERE ($1::text[] = '{}' OR topic_category = ANY($1))
		   AND problem_category NOT IN ($2, $3)
		   AND NOT (id = ANY($4))
		 ORDER BY random()
		 LIMIT $5`,
		topicsArg(topics), model.CategorySelfIntro, model.CategoryRolePlay, excludeArg(exclude), n)
	if err != nil {
		return nil, fmt.Errorf("sample by topics: %w", err)
	}
	return collectProblems(rows)
}

// SampleByTopic returns up to n random combo-eligible problems sharing
// one topic category.
func (r *ProblemRepository) SampleByTopic(ctx context.Context, topic string, exclude []uuid.UUID, n int) ([]model.Problem, error) {
	return r.SampleByTopics(ctx, []string{topic}, exclude, n)
}

// SampleGroup returns one complete role-play group: exactly 3 problems
// sharing a problem_group_id with contiguous orders 1..3, none of which
// is excluded. Incomplete groups are never candidates. Returns an empty
// slice when no usable group remains.
func (r *ProblemRepository) SampleGroup(ctx context.Context, exclude []uuid.UUID) ([]model.Problem, error) {
	var groupID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT problem_group_id
		 FROM problems
		 WHERE problem_group_id IS NOT NULL
		 GROUP BY problem_group_id
		 HAVING COUNT(*) = 3
		    AND array_agg(problem_order ORDER BY problem_order) = ARRAY[1, 2, 3]
		    AND NOT bool_or(id = ANY($1))
		 ORDER BY random()
		 LIMIT 1`,
		excludeArg(exclude)).Scan(&groupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sample group: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+problemColumns+`
		 FROM problems
		 WHERE problem_group_id = $1
		 ORDER BY problem_order`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("fetch group %s: %w", groupID, err)
	}
	return collectProblems(rows)
}

// SampleSurprise returns up to n random problems from the surprise pool:
// problems flagged high_grade_kit or outside the user's interest topics.
func (r *ProblemRepository) SampleSurprise(ctx context.Context, interests []string, exclude []uuid.UUID, n int) ([]model.Problem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+problemColumns+`
		 FROM problems
		 WHERE (high_grade_kit OR NOT (topic_category = ANY($1)))
		   AND problem_category NOT IN ($2, $3)
		   AND NOT (id = ANY($4))
		 ORDER BY random()
		 LIMIT $5`,
		topicsArg(interests), model.CategorySelfIntro, model.CategoryRolePlay, excludeArg(exclude), n)
	if err != nil {
		return nil, fmt.Errorf("sample surprise: %w", err)
	}
	return collectProblems(rows)
}

// SampleSurpriseByTopic returns up to n surprise-pool problems sharing
// one topic category.
func (r *ProblemRepository) SampleSurpriseByTopic(ctx context.Context, topic string, interests []string, exclude []uuid.UUID, n int) ([]model.Problem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+problemColumns+`
		 FROM problems
		 WHERE topic_category = $1
		   AND (high_grade_kit OR NOT (topic_category = ANY($2)))
		   AND problem_category NOT IN ($3, $4)
		   AND NOT (id = ANY($5))
		 ORDER BY random()
		 LIMIT $6`,
		topic, topicsArg(interests), model.CategorySelfIntro, model.CategoryRolePlay, excludeArg(exclude), n)
	if err != nil {
		return nil, fmt.Errorf("sample surprise by topic: %w", err)
	}
	return collectProblems(rows)
}

// SurpriseTopic picks one random topic that still has at least minCount
// eligible surprise problems. Returns "" when no topic qualifies.
func (r *ProblemRepository) SurpriseTopic(ctx context.Context, interests []string, exclude []uuid.UUID, minCount int) (string, error) {
	var topic string
	err := r.pool.QueryRow(ctx,
		`SELECT topic_category
		 FROM problems
		 WHERE (high_grade_kit OR NOT (topic_category = ANY($1)))
		   AND problem_category NOT IN ($2, $3)
		   AND NOT (id = ANY($4))
		 GROUP BY topic_category
		 HAVING COUNT(*) >= $5
		 ORDER BY random()
		 LIMIT 1`,
		topicsArg(interests), model.CategorySelfIntro, model.CategoryRolePlay, excludeArg(exclude), minCount).Scan(&topic)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("surprise topic: %w", err)
	}
	return topic, nil
}

// SampleAny returns up to n uniformly random not-yet-used problems.
// This is the terminal fallback for every selection chain.
func (r *ProblemRepository) SampleAny(ctx context.Context, exclude []uuid.UUID, n int) ([]model.Problem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+problemColumns+`
		 FROM problems
		 WHERE NOT (id = ANY($1))
		 ORDER BY random()
		 LIMIT $2`,
		excludeArg(exclude), n)
	if err != nil {
		return nil, fmt.Errorf("sample any: %w", err)
	}
	return collectProblems(rows)
}

// excludeArg normalizes a nil exclusion set to an empty array so that
// `NOT (id = ANY($n))` stays true for every row.
func excludeArg(exclude []uuid.UUID) []uuid.UUID {
	if exclude == nil {
		return []uuid.UUID{}
	}
	return exclude
}

func topicsArg(topics []string) []string {
	if topics == nil {
		return []string{}
	}
	return topics
}

func scanProblem(row pgx.Row) (*model.Problem, error) {
	var p model.Problem
	err := row.Scan(&p.ID, &p.TopicCategory, &p.ProblemCategory, &p.Content,
		&p.AudioURL, &p.HighGradeKit, &p.ProblemGroupID, &p.ProblemOrder)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProblems(rows pgx.Rows) ([]model.Problem, error) {
	defer rows.Close()

	var problems []model.Problem
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(&p.ID, &p.TopicCategory, &p.ProblemCategory, &p.Content,
			&p.AudioURL, &p.HighGradeKit, &p.ProblemGroupID, &p.ProblemOrder); err != nil {
			return nil, err
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}
