package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
)

// fakePool serves problems in insertion order with the same filtering
// semantics as the SQL samplers.
type fakePool struct {
	problems []model.Problem
}

func (f *fakePool) excluded(p model.Problem, exclude []uuid.UUID) bool {
	for _, id := range exclude {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (f *fakePool) take(n int, exclude []uuid.UUID, match func(model.Problem) bool) []model.Problem {
	var out []model.Problem
	for _, p := range f.problems {
		if len(out) == n {
			break
		}
		if f.excluded(p, exclude) || !match(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (f *fakePool) GetByID(_ context.Context, id uuid.UUID) (*model.Problem, error) {
	for _, p := range f.problems {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakePool) SampleByCategory(_ context.Context, category model.ProblemCategory, exclude []uuid.UUID, n int) ([]model.Problem, error) {
	return f.take(n, exclude, func(p model.Problem) bool {
		return p.ProblemCategory == category
	}), nil
}

func comboEligible(p model.Problem) bool {
	return p.ProblemCategory != model.CategorySelfIntro && p.ProblemCategory != model.CategoryRolePlay
}

func (f *fakePool) SampleByTopics(_ context.Context, topics []string, exclude []uuid.UUID, n int) ([]model.Problem, error) {
	return f.take(n, exclude, func(p model.Problem) bool {
		if !comboEligible(p) {
			return false
		}
		if len(topics) == 0 {
			return true
		}
		for _, t := range topics {
			if p.TopicCategory == t {
				return true
			}
		}
		return false
	}), nil
}

func (f *fakePool) SampleByTopic(_ context.Context, topic string, exclude []uuid.UUID, n int) ([]model.Problem, error) {
	return f.take(n, exclude, func(p model.Problem) bool {
		return comboEligible(p) && p.TopicCategory == topic
	}), nil
}

// SampleGroup mirrors the SQL contract: only groups of exactly three
// problems whose orders are the contiguous set {1,2,3} qualify, and the
// members come back sorted by order. Candidate groups are tried in
// insertion order to keep tests deterministic.
func (f *fakePool) SampleGroup(_ context.Context, exclude []uuid.UUID) ([]model.Problem, error) {
	byGroup := make(map[uuid.UUID][]model.Problem)
	for _, p := range f.problems {
		if p.ProblemGroupID == nil || f.excluded(p, exclude) {
			continue
		}
		byGroup[*p.ProblemGroupID] = append(byGroup[*p.ProblemGroupID], p)
	}
	seen := make(map[uuid.UUID]bool)
	for _, p := range f.problems {
		if p.ProblemGroupID == nil || seen[*p.ProblemGroupID] {
			continue
		}
		seen[*p.ProblemGroupID] = true
		group := byGroup[*p.ProblemGroupID]
		if len(group) != 3 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return orderOf(group[i]) < orderOf(group[j])
		})
		if orderOf(group[0]) == 1 && orderOf(group[1]) == 2 && orderOf(group[2]) == 3 {
			return group, nil
		}
	}
	return nil, nil
}

func orderOf(p model.Problem) int {
	if p.ProblemOrder == nil {
		return 0
	}
	return *p.ProblemOrder
}

func surpriseEligible(p model.Problem, interests []string) bool {
	if p.ProblemCategory == model.CategorySelfIntro || p.ProblemCategory == model.CategoryRolePlay {
		return false
	}
	if p.HighGradeKit {
		return true
	}
	for _, t := range interests {
		if p.TopicCategory == t {
			return false
		}
	}
	return true
}

func (f *fakePool) SampleSurprise(_ context.Context, interests []string, exclude []uuid.UUID, n int) ([]model.Problem, error) {
	return f.take(n, exclude, func(p model.Problem) bool {
		return surpriseEligible(p, interests)
	}), nil
}

func (f *fakePool) SampleSurpriseByTopic(_ context.Context, topic string, interests []string, exclude []uuid.UUID, n int) ([]model.Problem, error) {
	return f.take(n, exclude, func(p model.Problem) bool {
		return surpriseEligible(p, interests) && p.TopicCategory == topic
	}), nil
}

func (f *fakePool) SurpriseTopic(_ context.Context, interests []string, exclude []uuid.UUID, minCount int) (string, error) {
	counts := make(map[string]int)
	for _, p := range f.problems {
		if !f.excluded(p, exclude) && surpriseEligible(p, interests) {
			counts[p.TopicCategory]++
		}
	}
	for _, p := range f.problems {
		if counts[p.TopicCategory] >= minCount && surpriseEligible(p, interests) {
			return p.TopicCategory, nil
		}
	}
	return "", nil
}

func (f *fakePool) SampleAny(_ context.Context, exclude []uuid.UUID, n int) ([]model.Problem, error) {
	return f.take(n, exclude, func(model.Problem) bool { return true }), nil
}

func problem(topic string, category model.ProblemCategory) model.Problem {
	return model.Problem{
		ID:              uuid.New(),
		TopicCategory:   topic,
		ProblemCategory: category,
		Content:         fmt.Sprintf("%s/%s question", topic, category),
	}
}

func rolePlayGroup(topic string) []model.Problem {
	groupID := uuid.New()
	var out []model.Problem
	for i := 1; i <= 3; i++ {
		p := problem(topic, model.CategoryRolePlay)
		order := i
		p.ProblemGroupID = &groupID
		p.ProblemOrder = &order
		out = append(out, p)
	}
	return out
}

// richPool builds a pool that can satisfy every full-test section.
func richPool() *fakePool {
	pool := &fakePool{}
	pool.problems = append(pool.problems, problem("general", model.CategorySelfIntro))
	for _, topic := range []string{"music", "travel", "cooking", "movies"} {
		pool.problems = append(pool.problems,
			problem(topic, model.CategoryDescription),
			problem(topic, model.CategoryPastExperience),
			problem(topic, model.CategoryRoutine),
		)
	}
	pool.problems = append(pool.problems, rolePlayGroup("shopping")...)
	// Surprise candidates: outside the interests below, plus kit items.
	pool.problems = append(pool.problems,
		problem("geography", model.CategoryFreeForm),
		problem("geography", model.CategoryComparison),
		problem("technology", model.CategoryFreeForm),
	)
	return pool
}

var testUser = &model.User{
	ID:             1,
	InterestTopics: []string{"music", "travel", "cooking"},
}

func TestAssembleFullShape(t *testing.T) {
	pool := richPool()
	svc := NewSelectionService(pool)

	test, err := svc.Assemble(context.Background(), testUser, model.TestTypeFull)
	if err != nil {
		t.Fatalf("Assemble(FULL) = %v", err)
	}
	if len(test.Items) != 15 {
		t.Fatalf("assembled %d items, want 15", len(test.Items))
	}

	// Contiguous 1-based slots.
	for i, item := range test.Items {
		if item.Slot != i+1 {
			t.Errorf("item %d has slot %d, want %d", i, item.Slot, i+1)
		}
	}

	// No repeated problems.
	seen := make(map[uuid.UUID]bool)
	for _, item := range test.Items {
		if seen[item.ProblemID] {
			t.Errorf("problem %s placed twice", item.ProblemID)
		}
		seen[item.ProblemID] = true
	}

	if test.Items[0].ProblemCategory != model.CategorySelfIntro {
		t.Errorf("slot 1 category = %q, want SELF_INTRO", test.Items[0].ProblemCategory)
	}
	for slot := 11; slot <= 13; slot++ {
		if test.Items[slot-1].ProblemCategory != model.CategoryRolePlay {
			t.Errorf("slot %d category = %q, want ROLE_PLAY", slot, test.Items[slot-1].ProblemCategory)
		}
	}
}

func TestAssembleFullComboSetsCohere(t *testing.T) {
	pool := richPool()
	svc := NewSelectionService(pool)

	test, err := svc.Assemble(context.Background(), testUser, model.TestTypeFull)
	if err != nil {
		t.Fatalf("Assemble(FULL) = %v", err)
	}

	// Slots 2-10: each 3-item set shares one topic, and sets lead with
	// distinct interest topics.
	leadTopics := make(map[string]bool)
	for set := 0; set < 3; set++ {
		base := 1 + set*3
		topic := test.Items[base].TopicCategory
		for offset := 1; offset < 3; offset++ {
			if got := test.Items[base+offset].TopicCategory; got != topic {
				t.Errorf("combo set %d mixes topics %q and %q", set+1, topic, got)
			}
		}
		if leadTopics[topic] {
			t.Errorf("combo sets reuse lead topic %q", topic)
		}
		leadTopics[topic] = true
	}
}

func TestAssembleFullSurpriseAvoidsInterests(t *testing.T) {
	pool := richPool()
	svc := NewSelectionService(pool)

	test, err := svc.Assemble(context.Background(), testUser, model.TestTypeFull)
	if err != nil {
		t.Fatalf("Assemble(FULL) = %v", err)
	}

	// Slots 14-15 should share one topic drawn from outside the user's
	// interests.
	if test.Items[13].TopicCategory != test.Items[14].TopicCategory {
		t.Errorf("surprise slots have topics %q and %q, want one shared topic",
			test.Items[13].TopicCategory, test.Items[14].TopicCategory)
	}
	for _, interest := range testUser.InterestTopics {
		if test.Items[13].TopicCategory == interest {
			t.Errorf("surprise topic %q is an interest topic", interest)
		}
	}
}

func TestAssembleRolePlayFallsBackToLooseProblems(t *testing.T) {
	// No complete group: two problems of a broken group plus loose
	// role-play items.
	pool := &fakePool{}
	broken := rolePlayGroup("hotel")[:2]
	pool.problems = append(pool.problems, broken...)
	pool.problems = append(pool.problems,
		problem("airport", model.CategoryRolePlay),
		problem("bank", model.CategoryRolePlay),
	)

	svc := NewSelectionService(pool)
	test, err := svc.Assemble(context.Background(), testUser, model.TestTypeRolePlay)
	if err != nil {
		t.Fatalf("Assemble(ROLE_PLAY) = %v", err)
	}
	if len(test.Items) != 3 {
		t.Fatalf("assembled %d items, want 3", len(test.Items))
	}
	for _, item := range test.Items {
		if item.ProblemCategory != model.CategoryRolePlay {
			t.Errorf("fallback slot %d category = %q, want ROLE_PLAY", item.Slot, item.ProblemCategory)
		}
	}
}

func TestAssembleRolePlaySkipsGappedGroup(t *testing.T) {
	// A three-member group whose orders are {1,2,4} is not a playable
	// sequence: number 3 is missing. Group selection must pass it over
	// in favor of a group with contiguous orders, even though the gapped
	// one comes first in the pool.
	pool := &fakePool{}
	gapped := rolePlayGroup("restaurant")
	four := 4
	gapped[2].ProblemOrder = &four
	pool.problems = append(pool.problems, gapped...)
	complete := rolePlayGroup("hotel")
	pool.problems = append(pool.problems, complete...)

	svc := NewSelectionService(pool)
	test, err := svc.Assemble(context.Background(), testUser, model.TestTypeRolePlay)
	if err != nil {
		t.Fatalf("Assemble(ROLE_PLAY) = %v", err)
	}
	if len(test.Items) != 3 {
		t.Fatalf("assembled %d items, want 3", len(test.Items))
	}
	for i, item := range test.Items {
		if item.ProblemID != complete[i].ID {
			t.Errorf("slot %d problem = %s, want group member %d (%s)",
				item.Slot, item.ProblemID, i+1, complete[i].ID)
		}
	}
}

func TestAssembleSurpriseDiverseTopics(t *testing.T) {
	pool := &fakePool{}
	pool.problems = append(pool.problems,
		problem("geography", model.CategoryFreeForm),
		problem("geography", model.CategoryFreeForm),
		problem("technology", model.CategoryFreeForm),
		problem("weather", model.CategoryComparison),
	)

	svc := NewSelectionService(pool)
	test, err := svc.Assemble(context.Background(), testUser, model.TestTypeSurprise)
	if err != nil {
		t.Fatalf("Assemble(SURPRISE) = %v", err)
	}
	if len(test.Items) != 3 {
		t.Fatalf("assembled %d items, want 3", len(test.Items))
	}

	topics := make(map[string]bool)
	for _, item := range test.Items {
		topics[item.TopicCategory] = true
	}
	if len(topics) != 3 {
		t.Errorf("standalone surprise test covers %d topics, want 3 distinct", len(topics))
	}
}

func TestAssembleFailsLoudlyOnExhaustedPool(t *testing.T) {
	pool := &fakePool{}
	pool.problems = append(pool.problems, problem("music", model.CategoryDescription))

	svc := NewSelectionService(pool)
	_, err := svc.Assemble(context.Background(), testUser, model.TestTypeCombo)
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("Assemble on 1-problem pool = %v, want ErrPoolExhausted", err)
	}
}

func TestAssembleUnknownType(t *testing.T) {
	svc := NewSelectionService(richPool())
	if _, err := svc.Assemble(context.Background(), testUser, model.TestType("BOGUS")); err == nil {
		t.Fatal("Assemble(BOGUS) = nil, want error")
	}
}

func TestRandomProblemEmptyPool(t *testing.T) {
	svc := NewSelectionService(&fakePool{})
	_, err := svc.RandomProblem(context.Background())
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("RandomProblem on empty pool = %v, want ErrPoolExhausted", err)
	}
}
