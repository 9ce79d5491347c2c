package service

import (
	"context"
	"fmt"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/grader"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FeedbackStore is the persistence surface of the aggregate pipeline.
// Implemented by repository.TestRepository.
type FeedbackStore interface {
	ListItems(ctx context.Context, testID uuid.UUID) ([]model.TestItem, error)
	SetOverallStatus(ctx context.Context, testID uuid.UUID, status model.OverallStatus, errMsg *string) error
	SetOverallResult(ctx context.Context, testID uuid.UUID, score model.TestScore, feedback model.TestFeedback) error
	ListCompletedScores(ctx context.Context, userID int) ([]model.TestScore, error)
}

// AverageStore persists the user's rolling average scores.
// Implemented by repository.UserRepository.
type AverageStore interface {
	UpdateAverageScore(ctx context.Context, userID int, score model.TestScore) error
}

// FeedbackService runs the aggregate grading pipeline once per test:
// section classification, local score averaging, one holistic oracle
// call, and the rolling user-average update.
type FeedbackService struct {
	store     FeedbackStore
	users     AverageStore
	oracle    grader.Oracle
	publisher StatusPublisher
	policy    grader.RetryPolicy
	log       zerolog.Logger
}

// NewFeedbackService creates a new FeedbackService.
func NewFeedbackService(
	store FeedbackStore,
	users AverageStore,
	oracle grader.Oracle,
	publisher StatusPublisher,
	policy grader.RetryPolicy,
	log zerolog.Logger,
) *FeedbackService {
	return &FeedbackService{
		store:     store,
		users:     users,
		oracle:    oracle,
		publisher: publisher,
		policy:    policy,
		log:       log.With().Str("component", "feedback").Logger(),
	}
}

// Run computes and persists the aggregate result for the test. Scores
// are computed locally and are authoritative; the oracle contributes
// prose only. Items with the ERROR sentinel level are excluded from
// every average. A failure before persistence marks the test FAILED;
// a failed rolling-average update is logged and never rolls the
// completed aggregate back.
func (s *FeedbackService) Run(ctx context.Context, testID uuid.UUID, testType model.TestType, userID int) error {
	if err := s.store.SetOverallStatus(ctx, testID, model.OverallStatusProcessing, nil); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	s.publish(ctx, testID, model.OverallStatusProcessing, "")

	items, err := s.store.ListItems(ctx, testID)
	if err != nil {
		return s.fail(ctx, testID, fmt.Errorf("list items: %w", err))
	}

	score := computeSectionAverages(testType, items)

	eval, err := s.evaluateAggregate(ctx, testType, items)
	if err != nil {
		return s.fail(ctx, testID, fmt.Errorf("holistic evaluation: %w", err))
	}

	// The oracle's numeric sub-scores are discarded; only its prose is
	// kept.
	if err := s.store.SetOverallResult(ctx, testID, score, eval.Feedback); err != nil {
		return s.fail(ctx, testID, fmt.Errorf("store result: %w", err))
	}
	s.publish(ctx, testID, model.OverallStatusCompleted, "")

	s.updateUserAverage(ctx, userID)
	return nil
}

func (s *FeedbackService) evaluateAggregate(ctx context.Context, testType model.TestType, items []model.TestItem) (*grader.AggregateEvaluation, error) {
	aggCtx := grader.AggregateContext{
		TestType:      testType,
		SectionCounts: make(map[model.Section]int),
	}
	for _, item := range items {
		section, ok := model.SlotSection(testType, item.Slot)
		if !ok {
			continue
		}
		aggCtx.SectionCounts[section]++

		response := ""
		if item.UserResponse != nil {
			response = *item.UserResponse
		}
		level := model.Level("")
		if item.Score != nil {
			level = *item.Score
		}
		aggCtx.Items = append(aggCtx.Items, grader.AggregateItem{
			Slot:        item.Slot,
			Section:     section,
			ProblemText: item.Content,
			Response:    response,
			Level:       level,
		})
	}

	var eval *grader.AggregateEvaluation
	err := grader.Retry(ctx, s.policy, func(ctx context.Context) error {
		result, err := s.oracle.EvaluateAggregate(ctx, aggCtx)
		if err != nil {
			return err
		}
		eval = result
		return nil
	})
	return eval, err
}

// computeSectionAverages derives the four sub-scores from the item
// levels: per-section ordinal averages plus an overall average, each
// rounded to the nearest level. Unscored items and off-scale codes
// (including ERROR) are skipped.
func computeSectionAverages(testType model.TestType, items []model.TestItem) model.TestScore {
	bySection := make(map[model.Section][]model.Level)
	var all []model.Level

	for _, item := range items {
		if item.Score == nil {
			continue
		}
		section, ok := model.SlotSection(testType, item.Slot)
		if !ok {
			continue
		}
		bySection[section] = append(bySection[section], *item.Score)
		all = append(all, *item.Score)
	}

	var score model.TestScore
	if avg, ok := model.AverageLevel(all); ok {
		score.Total = &avg
	}
	if avg, ok := model.AverageLevel(bySection[model.SectionCombo]); ok {
		score.Combo = &avg
	}
	if avg, ok := model.AverageLevel(bySection[model.SectionRolePlay]); ok {
		score.RolePlay = &avg
	}
	if avg, ok := model.AverageLevel(bySection[model.SectionSurprise]); ok {
		score.Surprise = &avg
	}
	return score
}

// updateUserAverage recomputes the rolling averages across every
// completed test of the user. Failures here are logged only: the
// aggregate result already persisted stands.
func (s *FeedbackService) updateUserAverage(ctx context.Context, userID int) {
	scores, err := s.store.ListCompletedScores(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("List completed scores failed, rolling average not updated")
		return
	}
	if len(scores) == 0 {
		return
	}

	avg := model.TestScore{
		Total:    averageField(scores, func(s model.TestScore) *model.Level { return s.Total }),
		Combo:    averageField(scores, func(s model.TestScore) *model.Level { return s.Combo }),
		RolePlay: averageField(scores, func(s model.TestScore) *model.Level { return s.RolePlay }),
		Surprise: averageField(scores, func(s model.TestScore) *model.Level { return s.Surprise }),
	}

	if err := s.users.UpdateAverageScore(ctx, userID, avg); err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Rolling average update failed")
	}
}

func averageField(scores []model.TestScore, field func(model.TestScore) *model.Level) *model.Level {
	var levels []model.Level
	for _, s := range scores {
		if l := field(s); l != nil {
			levels = append(levels, *l)
		}
	}
	if avg, ok := model.AverageLevel(levels); ok {
		return &avg
	}
	return nil
}

func (s *FeedbackService) fail(ctx context.Context, testID uuid.UUID, cause error) error {
	msg := cause.Error()
	if err := s.store.SetOverallStatus(ctx, testID, model.OverallStatusFailed, &msg); err != nil {
		s.log.Error().Err(err).Str("test_id", testID.String()).Msg("Mark aggregate failed errored")
	}
	s.publish(ctx, testID, model.OverallStatusFailed, msg)
	return cause
}

func (s *FeedbackService) publish(ctx context.Context, testID uuid.UUID, status model.OverallStatus, message string) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishStatus(ctx, model.StatusEvent{
		TestID:  testID.String(),
		Status:  string(status),
		Message: message,
	})
}
