package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/config"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Sentinel errors surfaced to the handler layer.
var (
	ErrTestNotFound    = errors.New("test not found")
	ErrSlotNotFound    = errors.New("item slot not found")
	ErrItemNotGradable = errors.New("item is already being graded")
)

// TestStore is the persistence surface of the test lifecycle.
// Implemented by repository.TestRepository.
type TestStore interface {
	Create(ctx context.Context, t *model.Test) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
	ListByUser(ctx context.Context, userID int) ([]model.Test, error)
	Delete(ctx context.Context, id uuid.UUID, userID int) error
	MarkItemStarted(ctx context.Context, testID uuid.UUID, slot int) error
	MarkItemFailed(ctx context.Context, testID uuid.UUID, slot int, message string) error
}

// TestAssembler draws a complete test, or a single preview problem,
// from the question pool. Implemented by SelectionService.
type TestAssembler interface {
	Assemble(ctx context.Context, user *model.User, testType model.TestType) (*model.Test, error)
	RandomProblem(ctx context.Context) (*model.Problem, error)
}

// TestQuota brackets test creation with reserve/release.
// Implemented by QuotaService.
type TestQuota interface {
	ReserveTest(ctx context.Context, userID int, testType model.TestType) error
	ReleaseTest(ctx context.Context, userID int, testType model.TestType) error
}

// JobQueue is the enqueue side of the grading queue.
// Implemented by *redis.Client.
type JobQueue interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// TestService orchestrates test assembly, audio submission and status
// reads. Assembly brackets the quota reservation: any failure after the
// reserve triggers the compensating release.
type TestService struct {
	tests     TestStore
	selection TestAssembler
	quota     TestQuota
	rdb       JobQueue
	log       zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(
	tests TestStore,
	selection TestAssembler,
	quota TestQuota,
	rdb JobQueue,
	log zerolog.Logger,
) *TestService {
	return &TestService{
		tests:     tests,
		selection: selection,
		quota:     quota,
		rdb:       rdb,
		log:       log.With().Str("component", "test_service").Logger(),
	}
}

// Create reserves quota, assembles and persists a new test. The quota
// counter is incremented before any work begins and released again if
// assembly or persistence fails.
func (s *TestService) Create(ctx context.Context, user *model.User, testType model.TestType) (*model.Test, error) {
	if err := s.quota.ReserveTest(ctx, user.ID, testType); err != nil {
		return nil, err
	}

	test, err := s.selection.Assemble(ctx, user, testType)
	if err != nil {
		s.releaseTest(ctx, user.ID, testType)
		return nil, fmt.Errorf("assemble test: %w", err)
	}

	if err := s.tests.Create(ctx, test); err != nil {
		s.releaseTest(ctx, user.ID, testType)
		return nil, fmt.Errorf("persist test: %w", err)
	}

	s.log.Info().
		Str("test_id", test.ID.String()).
		Str("test_type", string(testType)).
		Int("user_id", user.ID).
		Int("items", len(test.Items)).
		Msg("Test assembled")
	return test, nil
}

func (s *TestService) releaseTest(ctx context.Context, userID int, testType model.TestType) {
	if err := s.quota.ReleaseTest(ctx, userID, testType); err != nil {
		s.log.Error().Err(err).Int("user_id", userID).Msg("Quota release failed, counter may leak until reset")
	}
}

// Get retrieves a test with items, enforcing ownership.
func (s *TestService) Get(ctx context.Context, testID uuid.UUID, userID int) (*model.Test, error) {
	test, err := s.tests.GetByID(ctx, testID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, err
	}
	if test.UserID != userID {
		return nil, ErrTestNotFound
	}
	return test, nil
}

// List retrieves the user's test summaries.
func (s *TestService) List(ctx context.Context, userID int) ([]model.Test, error) {
	return s.tests.ListByUser(ctx, userID)
}

// Delete removes a test owned by the user.
func (s *TestService) Delete(ctx context.Context, testID uuid.UUID, userID int) error {
	err := s.tests.Delete(ctx, testID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTestNotFound
	}
	return err
}

// TestStatus is the polling view of a test's grading progress.
type TestStatus struct {
	TestID        string                 `json:"test_id"`
	OverallStatus model.OverallStatus    `json:"overall_status"`
	OverallError  *string                `json:"overall_error,omitempty"`
	Items         []model.ItemStatusView `json:"items"`
}

// Status returns the per-slot and aggregate statuses. Repeated polls of
// a completed test always return the same result.
func (s *TestService) Status(ctx context.Context, testID uuid.UUID, userID int) (*TestStatus, error) {
	test, err := s.Get(ctx, testID, userID)
	if err != nil {
		return nil, err
	}

	status := &TestStatus{
		TestID:        test.ID.String(),
		OverallStatus: test.OverallStatus,
		OverallError:  test.OverallError,
	}
	for _, item := range test.Items {
		view := model.ItemStatusView{
			Slot:        item.Slot,
			Status:      item.Status,
			StartedAt:   item.StartedAt,
			CompletedAt: item.CompletedAt,
		}
		if item.Message != nil {
			view.Message = *item.Message
		}
		status.Items = append(status.Items, view)
	}
	return status, nil
}

// Submit accepts an audio submission for one slot and queues the
// grading job. The HTTP response returns immediately; the worker does
// the transcription and evaluation off the request cycle.
func (s *TestService) Submit(ctx context.Context, testID uuid.UUID, userID, slot int, audioPath string, isLast bool) error {
	test, err := s.Get(ctx, testID, userID)
	if err != nil {
		return err
	}
	if slot < 1 || slot > len(test.Items) {
		return ErrSlotNotFound
	}

	item := test.Items[slot-1]
	if item.Status == model.ItemStatusTranscribing || item.Status == model.ItemStatusEvaluating {
		return ErrItemNotGradable
	}

	// The slot leaves PENDING the moment the submission is accepted, so
	// pollers never see a stale PENDING while the job waits in the queue.
	if err := s.tests.MarkItemStarted(ctx, testID, slot); err != nil {
		return fmt.Errorf("mark item queued: %w", err)
	}

	job := ItemJob{
		TestID:    testID.String(),
		UserID:    userID,
		TestType:  test.TestType,
		Slot:      slot,
		AudioPath: audioPath,
		IsLast:    isLast,
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.GradeItemsQueue, raw).Err(); err != nil {
		// Reopen the slot: FAILED accepts resubmission, in-flight does not.
		if mErr := s.tests.MarkItemFailed(ctx, testID, slot, "failed to queue grading job"); mErr != nil {
			s.log.Error().Err(mErr).
				Str("test_id", testID.String()).
				Int("slot", slot).
				Msg("Could not reopen slot after enqueue failure")
		}
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// RandomProblem reserves random-problem quota and returns one problem
// for the practice preview flow. The reservation is released when no
// problem could be drawn.
func (s *TestService) RandomProblem(ctx context.Context, userID int) (*model.Problem, error) {
	if err := s.quota.ReserveTest(ctx, userID, model.TestTypeSingle); err != nil {
		return nil, err
	}
	problem, err := s.selection.RandomProblem(ctx)
	if err != nil {
		s.releaseTest(ctx, userID, model.TestTypeSingle)
		return nil, err
	}
	return problem, nil
}
