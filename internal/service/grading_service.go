package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/grader"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/transcribe"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// minGradableTokens is the shortest response the oracle is asked to
	// score. Anything shorter is assigned the lowest level directly.
	minGradableTokens = 5

	// transcriptionFailedText substitutes for the transcript when the
	// speech-to-text call fails. The item still proceeds to evaluation.
	transcriptionFailedText = "(transcription failed: the recording could not be recognized)"

	shortResponseText = "The response was too short to evaluate. Try to speak for at least a full sentence or two."
	exhaustedText     = "Grading could not be completed after repeated attempts. This item is excluded from your scores."
)

// ItemJob is one unit of grading work, queued when an audio submission
// is accepted. IsLast is supplied by the caller and is the sole trigger
// for the aggregate pipeline.
type ItemJob struct {
	TestID    string         `json:"test_id"`
	UserID    int            `json:"user_id"`
	TestType  model.TestType `json:"test_type"`
	Slot      int            `json:"slot"`
	AudioPath string         `json:"audio_path"`
	IsLast    bool           `json:"is_last"`
}

// GradingStore is the persistence surface of the per-item pipeline.
// Implemented by repository.TestRepository.
type GradingStore interface {
	GetItem(ctx context.Context, testID uuid.UUID, slot int) (*model.TestItem, error)
	MarkItemStarted(ctx context.Context, testID uuid.UUID, slot int) error
	SetItemResponse(ctx context.Context, testID uuid.UUID, slot int, response string) error
	SetItemResult(ctx context.Context, testID uuid.UUID, slot int, score model.Level, feedback model.ItemFeedback) error
	MarkItemFailed(ctx context.Context, testID uuid.UUID, slot int, message string) error
	SetOverallStatus(ctx context.Context, testID uuid.UUID, status model.OverallStatus, errMsg *string) error
}

// ScriptSaver persists the transcript of each successfully transcribed
// item as a standalone reusable script.
type ScriptSaver interface {
	SaveTranscript(ctx context.Context, userID int, problemID uuid.UUID, content string)
}

// GradingService runs the per-item pipeline:
// transcribing → evaluating → completed, with FAILED reserved for
// infrastructure errors caught by the worker, not for oracle exhaustion.
type GradingService struct {
	store       GradingStore
	transcriber transcribe.Transcriber
	oracle      grader.Oracle
	scripts     ScriptSaver
	feedback    *FeedbackService
	publisher   StatusPublisher
	policy      grader.RetryPolicy
	log         zerolog.Logger
}

// NewGradingService creates a new GradingService. scripts may be nil
// when transcript archiving is disabled.
func NewGradingService(
	store GradingStore,
	transcriber transcribe.Transcriber,
	oracle grader.Oracle,
	scripts ScriptSaver,
	feedback *FeedbackService,
	publisher StatusPublisher,
	policy grader.RetryPolicy,
	log zerolog.Logger,
) *GradingService {
	return &GradingService{
		store:       store,
		transcriber: transcriber,
		oracle:      oracle,
		scripts:     scripts,
		feedback:    feedback,
		publisher:   publisher,
		policy:      policy,
		log:         log.With().Str("component", "grading").Logger(),
	}
}

// Process grades one submitted item. A returned error means an
// infrastructure failure: the caller (worker) moves the item to FAILED.
// Oracle exhaustion and transcription failure are handled inside and
// complete the item with sentinel values instead.
func (s *GradingService) Process(ctx context.Context, job ItemJob) error {
	testID, err := uuid.Parse(job.TestID)
	if err != nil {
		return fmt.Errorf("parse test id: %w", err)
	}

	item, err := s.store.GetItem(ctx, testID, job.Slot)
	if err != nil {
		return fmt.Errorf("load item %d: %w", job.Slot, err)
	}

	// Re-delivered jobs for completed items are no-ops: status, score
	// and feedback stay exactly as first written.
	if item.Status == model.ItemStatusCompleted {
		s.log.Debug().Str("test_id", job.TestID).Int("slot", job.Slot).Msg("Item already completed, skipping")
		return nil
	}

	if err := s.store.MarkItemStarted(ctx, testID, job.Slot); err != nil {
		return fmt.Errorf("mark started: %w", err)
	}
	s.publish(ctx, job, model.ItemStatusTranscribing, "")

	text := s.transcribeItem(ctx, job, item)

	if err := s.store.SetItemResponse(ctx, testID, job.Slot, text); err != nil {
		return fmt.Errorf("store response: %w", err)
	}
	s.publish(ctx, job, model.ItemStatusEvaluating, "")

	level, feedback := s.evaluate(ctx, job, item, text)

	if err := s.store.SetItemResult(ctx, testID, job.Slot, level, feedback); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	s.publish(ctx, job, model.ItemStatusCompleted, "")

	if job.IsLast {
		// One-way trigger: the caller is the source of truth for "am I
		// last". Aggregate failures record their own status.
		if err := s.feedback.Run(ctx, testID, job.TestType, job.UserID); err != nil {
			s.log.Error().Err(err).Str("test_id", job.TestID).Msg("Aggregate feedback failed")
		}
	}
	return nil
}

// transcribeItem runs speech-to-text. Failure degrades to a sentinel
// transcript rather than aborting the item; success archives the
// transcript as a script.
func (s *GradingService) transcribeItem(ctx context.Context, job ItemJob, item *model.TestItem) string {
	text, err := s.transcriber.Transcribe(ctx, job.AudioPath)
	if err != nil {
		s.log.Warn().Err(err).
			Str("test_id", job.TestID).
			Int("slot", job.Slot).
			Msg("Transcription failed, substituting sentinel transcript")
		return transcriptionFailedText
	}

	if s.scripts != nil {
		s.scripts.SaveTranscript(ctx, job.UserID, item.ProblemID, text)
	}
	return text
}

// evaluate produces the item's level and feedback. Responses under
// minGradableTokens skip the oracle entirely; oracle errors are retried
// under the policy, and exhaustion downgrades to the ERROR sentinel
// level with explanatory feedback — never to the FAILED status.
func (s *GradingService) evaluate(ctx context.Context, job ItemJob, item *model.TestItem, text string) (model.Level, model.ItemFeedback) {
	if len(strings.Fields(text)) < minGradableTokens {
		return model.LevelNL, model.ItemFeedback{
			Paragraph:    shortResponseText,
			Vocabulary:   shortResponseText,
			SpokenAmount: shortResponseText,
		}
	}

	var eval *grader.ItemEvaluation
	err := grader.Retry(ctx, s.policy, func(ctx context.Context) error {
		result, err := s.oracle.EvaluateItem(ctx, grader.ItemContext{
			Response:        text,
			ProblemCategory: item.ProblemCategory,
			TopicCategory:   item.TopicCategory,
			ProblemText:     item.Content,
		})
		if err != nil {
			return err
		}
		eval = result
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("test_id", job.TestID).
			Int("slot", job.Slot).
			Int("max_attempts", s.policy.MaxAttempts).
			Msg("Oracle retries exhausted, recording ERROR level")
		return model.LevelError, model.ItemFeedback{
			Paragraph:    exhaustedText,
			Vocabulary:   exhaustedText,
			SpokenAmount: exhaustedText,
		}
	}

	return eval.Level, eval.Feedback
}

func (s *GradingService) publish(ctx context.Context, job ItemJob, status model.ItemStatus, message string) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishStatus(ctx, model.StatusEvent{
		TestID:  job.TestID,
		Slot:    job.Slot,
		Status:  string(status),
		Message: message,
	})
}
