package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/grader"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
)

// fakeFeedbackStore records aggregate pipeline writes in memory.
type fakeFeedbackStore struct {
	items           []model.TestItem
	listErr         error
	completedScores []model.TestScore
	completedErr    error
	overallStatus   *model.OverallStatus
	overallError    *string
	resultScore     *model.TestScore
	resultFeedback  *model.TestFeedback
}

func newFakeFeedbackStore() *fakeFeedbackStore {
	return &fakeFeedbackStore{}
}

func (f *fakeFeedbackStore) ListItems(_ context.Context, _ uuid.UUID) ([]model.TestItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *fakeFeedbackStore) SetOverallStatus(_ context.Context, _ uuid.UUID, status model.OverallStatus, errMsg *string) error {
	f.overallStatus = &status
	f.overallError = errMsg
	return nil
}

func (f *fakeFeedbackStore) SetOverallResult(_ context.Context, _ uuid.UUID, score model.TestScore, feedback model.TestFeedback) error {
	f.resultScore = &score
	f.resultFeedback = &feedback
	completed := model.OverallStatusCompleted
	f.overallStatus = &completed
	return nil
}

func (f *fakeFeedbackStore) ListCompletedScores(_ context.Context, _ int) ([]model.TestScore, error) {
	if f.completedErr != nil {
		return nil, f.completedErr
	}
	return f.completedScores, nil
}

// fakeAverageStore records the rolling-average write.
type fakeAverageStore struct {
	updated *model.TestScore
	err     error
}

func (f *fakeAverageStore) UpdateAverageScore(_ context.Context, _ int, score model.TestScore) error {
	if f.err != nil {
		return f.err
	}
	f.updated = &score
	return nil
}

func levelPtr(l model.Level) *model.Level { return &l }

func fullTestItems() []model.TestItem {
	// A graded 15-slot test: intro IM2, combo slots IM2/IH mixed,
	// role-play IH, surprise AL with one ERROR sentinel.
	items := make([]model.TestItem, 15)
	for i := range items {
		items[i].Slot = i + 1
		items[i].Score = levelPtr(model.LevelIM2)
	}
	for slot := 11; slot <= 13; slot++ {
		items[slot-1].Score = levelPtr(model.LevelIH)
	}
	items[13].Score = levelPtr(model.LevelAL)
	items[14].Score = levelPtr(model.LevelError)
	return items
}

func newFeedbackFixture(store *fakeFeedbackStore, users *fakeAverageStore, oracle *fakeOracle) *FeedbackService {
	return NewFeedbackService(store, users, oracle, nil, fastPolicy(), zerolog.Nop())
}

func TestRunComputesSectionAverages(t *testing.T) {
	store := newFakeFeedbackStore()
	store.items = fullTestItems()
	oracle := &fakeOracle{aggEval: &grader.AggregateEvaluation{
		// Oracle sub-scores must be discarded in favor of local averages.
		Scores:   model.TestScore{Total: levelPtr(model.LevelNL)},
		Feedback: model.TestFeedback{Overall: "solid intermediate performance"},
	}}
	users := &fakeAverageStore{}

	svc := newFeedbackFixture(store, users, oracle)
	if err := svc.Run(context.Background(), uuid.New(), model.TestTypeFull, 7); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if store.resultScore == nil {
		t.Fatal("no aggregate score stored")
	}
	score := *store.resultScore

	// Combo slots 2-10 are all IM2.
	if score.Combo == nil || *score.Combo != model.LevelIM2 {
		t.Errorf("combo = %v, want IM2", score.Combo)
	}
	// Role-play slots 11-13 are all IH.
	if score.RolePlay == nil || *score.RolePlay != model.LevelIH {
		t.Errorf("role_play = %v, want IH", score.RolePlay)
	}
	// Surprise: AL only, the ERROR slot is excluded.
	if score.Surprise == nil || *score.Surprise != model.LevelAL {
		t.Errorf("surprise = %v, want AL (ERROR slot excluded)", score.Surprise)
	}
	// Total: 10×IM2(5) + 3×IH(7) + AL(8) over 14 valid = 5.64 → 6 = IM3.
	if score.Total == nil || *score.Total != model.LevelIM3 {
		t.Errorf("total = %v, want IM3", score.Total)
	}

	if store.resultFeedback == nil || store.resultFeedback.Overall != "solid intermediate performance" {
		t.Errorf("feedback = %v, want the oracle's prose", store.resultFeedback)
	}
}

func TestRunOracleProseKeptScoresDiscarded(t *testing.T) {
	store := newFakeFeedbackStore()
	store.items = []model.TestItem{
		{Slot: 1, Score: levelPtr(model.LevelIH)},
		{Slot: 2, Score: levelPtr(model.LevelIH)},
		{Slot: 3, Score: levelPtr(model.LevelIH)},
	}
	oracle := &fakeOracle{aggEval: &grader.AggregateEvaluation{
		Scores:   model.TestScore{Total: levelPtr(model.LevelNL), Combo: levelPtr(model.LevelNL)},
		Feedback: model.TestFeedback{Overall: "confident delivery"},
	}}

	svc := newFeedbackFixture(store, &fakeAverageStore{}, oracle)
	if err := svc.Run(context.Background(), uuid.New(), model.TestTypeCombo, 7); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if *store.resultScore.Total != model.LevelIH {
		t.Errorf("total = %v, want locally computed IH, not the oracle's NL", *store.resultScore.Total)
	}
	if store.resultFeedback.Overall != "confident delivery" {
		t.Errorf("overall prose = %q, want the oracle's text", store.resultFeedback.Overall)
	}
}

func TestRunAllErrorItemsYieldNoScore(t *testing.T) {
	store := newFakeFeedbackStore()
	store.items = []model.TestItem{
		{Slot: 1, Score: levelPtr(model.LevelError)},
		{Slot: 2, Score: levelPtr(model.LevelError)},
		{Slot: 3, Score: levelPtr(model.LevelError)},
	}
	oracle := &fakeOracle{aggEval: &grader.AggregateEvaluation{}}

	svc := newFeedbackFixture(store, &fakeAverageStore{}, oracle)
	if err := svc.Run(context.Background(), uuid.New(), model.TestTypeCombo, 7); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if store.resultScore.Total != nil {
		t.Errorf("total = %v, want nil when every item carries the ERROR sentinel", *store.resultScore.Total)
	}
}

func TestRunOracleExhaustionMarksFailed(t *testing.T) {
	store := newFakeFeedbackStore()
	store.items = []model.TestItem{{Slot: 1, Score: levelPtr(model.LevelIM2)}}
	oracle := &fakeOracle{aggErr: errors.New("quota exceeded")}

	svc := newFeedbackFixture(store, &fakeAverageStore{}, oracle)
	err := svc.Run(context.Background(), uuid.New(), model.TestTypeCombo, 7)
	if err == nil {
		t.Fatal("Run() = nil, want error after oracle exhaustion")
	}

	if store.overallStatus == nil || *store.overallStatus != model.OverallStatusFailed {
		t.Errorf("overall status = %v, want FAILED", store.overallStatus)
	}
	if store.overallError == nil {
		t.Error("FAILED status stored without an error message")
	}
}

func TestRunUpdatesRollingAverage(t *testing.T) {
	store := newFakeFeedbackStore()
	store.items = []model.TestItem{{Slot: 1, Score: levelPtr(model.LevelIM2)}}
	store.completedScores = []model.TestScore{
		{Total: levelPtr(model.LevelIM2)},
		{Total: levelPtr(model.LevelIH)},
		{Total: levelPtr(model.LevelAL)},
	}
	oracle := &fakeOracle{aggEval: &grader.AggregateEvaluation{}}
	users := &fakeAverageStore{}

	svc := newFeedbackFixture(store, users, oracle)
	if err := svc.Run(context.Background(), uuid.New(), model.TestTypeCombo, 7); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if users.updated == nil {
		t.Fatal("rolling average not updated")
	}
	// (5 + 7 + 8) / 3 = 6.67 → 7 = IH.
	if users.updated.Total == nil || *users.updated.Total != model.LevelIH {
		t.Errorf("rolling total = %v, want IH", users.updated.Total)
	}
}

func TestRunRollingAverageFailureDoesNotFailTest(t *testing.T) {
	store := newFakeFeedbackStore()
	store.items = []model.TestItem{{Slot: 1, Score: levelPtr(model.LevelIM2)}}
	store.completedErr = errors.New("read replica down")
	oracle := &fakeOracle{aggEval: &grader.AggregateEvaluation{}}

	svc := newFeedbackFixture(store, &fakeAverageStore{}, oracle)
	if err := svc.Run(context.Background(), uuid.New(), model.TestTypeCombo, 7); err != nil {
		t.Fatalf("Run() = %v, want nil (rolling average is best-effort)", err)
	}

	if store.overallStatus == nil || *store.overallStatus != model.OverallStatusCompleted {
		t.Errorf("overall status = %v, want COMPLETED despite average failure", store.overallStatus)
	}
}
