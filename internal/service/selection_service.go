package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/google/uuid"
)

// ErrPoolExhausted is returned when even the terminal random-fill
// fallback cannot complete the declared slot count. Assembly fails
// loudly rather than returning a short test.
var ErrPoolExhausted = errors.New("question pool exhausted")

// ProblemPool is the read-only sampling surface the selection engine
// draws from. Implemented by repository.ProblemRepository; tests supply
// an in-memory fake.
type ProblemPool interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Problem, error)
	SampleByCategory(ctx context.Context, category model.ProblemCategory, exclude []uuid.UUID, n int) ([]model.Problem, error)
	SampleByTopics(ctx context.Context, topics []string, exclude []uuid.UUID, n int) ([]model.Problem, error)
	SampleByTopic(ctx context.Context, topic string, exclude []uuid.UUID, n int) ([]model.Problem, error)
	SampleGroup(ctx context.Context, exclude []uuid.UUID) ([]model.Problem, error)
	SampleSurprise(ctx context.Context, interests []string, exclude []uuid.UUID, n int) ([]model.Problem, error)
	SampleSurpriseByTopic(ctx context.Context, topic string, interests []string, exclude []uuid.UUID, n int) ([]model.Problem, error)
	SurpriseTopic(ctx context.Context, interests []string, exclude []uuid.UUID, minCount int) (string, error)
	SampleAny(ctx context.Context, exclude []uuid.UUID, n int) ([]model.Problem, error)
}

// SelectionService assembles complete, internally consistent tests.
type SelectionService struct {
	pool ProblemPool
}

// NewSelectionService creates a new SelectionService.
func NewSelectionService(pool ProblemPool) *SelectionService {
	return &SelectionService{pool: pool}
}

// assembly threads the running exclusion set through every selection
// step. No step may place a problem twice.
type assembly struct {
	problems []model.Problem
	used     map[uuid.UUID]bool
	exclude  []uuid.UUID
}

func newAssembly() *assembly {
	return &assembly{used: make(map[uuid.UUID]bool)}
}

// add appends problems, silently dropping any duplicate the pool
// returned despite the exclusion set.
func (a *assembly) add(problems ...model.Problem) {
	for _, p := range problems {
		if a.used[p.ID] {
			continue
		}
		a.used[p.ID] = true
		a.exclude = append(a.exclude, p.ID)
		a.problems = append(a.problems, p)
	}
}

// Assemble builds a test of the requested shape for the user.
// The returned test has contiguous 1-based slots and no repeated
// problems; if the pool cannot support the declared slot count even
// through the fallback chain, Assemble returns ErrPoolExhausted.
func (s *SelectionService) Assemble(ctx context.Context, user *model.User, testType model.TestType) (*model.Test, error) {
	asm := newAssembly()

	var err error
	switch testType {
	case model.TestTypeFull:
		err = s.assembleFull(ctx, asm, user.InterestTopics)
	case model.TestTypeCombo:
		usedTopics := make(map[string]bool)
		err = s.addComboSet(ctx, asm, user.InterestTopics, usedTopics)
	case model.TestTypeRolePlay:
		err = s.addRolePlaySet(ctx, asm)
	case model.TestTypeSurprise:
		err = s.addSurpriseSet(ctx, asm, user.InterestTopics, 3, true)
	case model.TestTypeSingle:
		err = s.topOff(ctx, asm, 1)
	default:
		return nil, fmt.Errorf("unknown test type %q", testType)
	}
	if err != nil {
		return nil, err
	}

	want := testType.SlotCount()
	if len(asm.problems) != want {
		return nil, fmt.Errorf("%w: assembled %d of %d slots", ErrPoolExhausted, len(asm.problems), want)
	}

	test := &model.Test{
		UserID:        user.ID,
		TestType:      testType,
		OverallStatus: model.OverallStatusPending,
	}
	for i, p := range asm.problems {
		test.Items = append(test.Items, model.TestItem{
			Slot:            i + 1,
			ProblemID:       p.ID,
			ProblemCategory: p.ProblemCategory,
			TopicCategory:   p.TopicCategory,
			Content:         p.Content,
			Status:          model.ItemStatusPending,
		})
	}
	return test, nil
}

// RandomProblem returns one uniformly random problem for the lightweight
// practice preview flow.
func (s *SelectionService) RandomProblem(ctx context.Context) (*model.Problem, error) {
	got, err := s.pool.SampleAny(ctx, nil, 1)
	if err != nil {
		return nil, err
	}
	if len(got) == 0 {
		return nil, ErrPoolExhausted
	}
	return &got[0], nil
}

// assembleFull builds the 15-slot shape: intro, three combo sets, one
// role-play group, two topically cohesive surprise items. Each section
// fills its exact quota before the next begins so the slot-to-section
// table stays aligned even when a fallback fires.
func (s *SelectionService) assembleFull(ctx context.Context, asm *assembly, interests []string) error {
	// Slot 1: self-introduction.
	intro, err := s.pool.SampleByCategory(ctx, model.CategorySelfIntro, asm.exclude, 1)
	if err != nil {
		return fmt.Errorf("select intro: %w", err)
	}
	asm.add(intro...)
	if err := s.topOff(ctx, asm, 1); err != nil {
		return err
	}

	// Slots 2-10: three combo sets. Each set leads with an unused
	// interest topic; sets never reuse a prior set's lead topic.
	usedTopics := make(map[string]bool)
	for set := 0; set < 3; set++ {
		if err := s.addComboSet(ctx, asm, interests, usedTopics); err != nil {
			return err
		}
	}

	// Slots 11-13: one complete role-play group.
	if err := s.addRolePlaySet(ctx, asm); err != nil {
		return err
	}

	// Slots 14-15: two surprise items sharing one topic when possible.
	return s.addSurpriseSet(ctx, asm, interests, 2, false)
}

// addComboSet appends exactly 3 problems: a lead drawn from the user's
// unused interest topics (any topic once interests are exhausted) and
// two more sharing the lead's topic. Shortfalls degrade to random fill.
func (s *SelectionService) addComboSet(ctx context.Context, asm *assembly, interests []string, usedTopics map[string]bool) error {
	target := len(asm.problems) + 3

	candidates := remainingTopics(interests, usedTopics)
	lead, err := s.pool.SampleByTopics(ctx, candidates, asm.exclude, 1)
	if err != nil {
		return fmt.Errorf("select combo lead: %w", err)
	}
	if len(lead) == 0 && len(candidates) > 0 {
		// Interest topics exhausted: fall back to any topic.
		lead, err = s.pool.SampleByTopics(ctx, nil, asm.exclude, 1)
		if err != nil {
			return fmt.Errorf("select combo lead fallback: %w", err)
		}
	}

	if len(lead) > 0 {
		head := lead[0]
		asm.add(head)
		usedTopics[head.TopicCategory] = true

		tail, err := s.pool.SampleByTopic(ctx, head.TopicCategory, asm.exclude, 2)
		if err != nil {
			return fmt.Errorf("select combo tail: %w", err)
		}
		asm.add(tail...)
	}

	return s.topOff(ctx, asm, target)
}

// addRolePlaySet appends one complete role-play group, degrading first
// to three independent role-play problems, then to random fill.
func (s *SelectionService) addRolePlaySet(ctx context.Context, asm *assembly) error {
	target := len(asm.problems) + 3

	group, err := s.pool.SampleGroup(ctx, asm.exclude)
	if err != nil {
		return fmt.Errorf("select role-play group: %w", err)
	}
	if len(group) == 3 {
		asm.add(group...)
		return nil
	}

	loose, err := s.pool.SampleByCategory(ctx, model.CategoryRolePlay, asm.exclude, target-len(asm.problems))
	if err != nil {
		return fmt.Errorf("select role-play fallback: %w", err)
	}
	asm.add(loose...)

	return s.topOff(ctx, asm, target)
}

// addSurpriseSet appends n surprise items. With diverse=false the items
// prefer sharing one topic (a topic with >= n eligible problems is
// searched first); with diverse=true at most one item per topic is
// taken while the pool allows it.
func (s *SelectionService) addSurpriseSet(ctx context.Context, asm *assembly, interests []string, n int, diverse bool) error {
	target := len(asm.problems) + n

	if diverse {
		if err := s.addDiverseSurprise(ctx, asm, interests, n); err != nil {
			return err
		}
		return s.topOff(ctx, asm, target)
	}

	topic, err := s.pool.SurpriseTopic(ctx, interests, asm.exclude, n)
	if err != nil {
		return fmt.Errorf("select surprise topic: %w", err)
	}
	if topic != "" {
		got, err := s.pool.SampleSurpriseByTopic(ctx, topic, interests, asm.exclude, n)
		if err != nil {
			return fmt.Errorf("select surprise set: %w", err)
		}
		asm.add(got...)
	}
	if len(asm.problems) < target {
		// No cohesive topic available: independently sampled surprise
		// items, then fully random.
		got, err := s.pool.SampleSurprise(ctx, interests, asm.exclude, target-len(asm.problems))
		if err != nil {
			return fmt.Errorf("select surprise fallback: %w", err)
		}
		asm.add(got...)
	}
	return s.topOff(ctx, asm, target)
}

// addDiverseSurprise greedily picks surprise items with distinct topics,
// oversampling the pool and relaxing to repeats only when fewer topics
// exist than requested items.
func (s *SelectionService) addDiverseSurprise(ctx context.Context, asm *assembly, interests []string, n int) error {
	candidates, err := s.pool.SampleSurprise(ctx, interests, asm.exclude, n*3)
	if err != nil {
		return fmt.Errorf("select diverse surprise: %w", err)
	}

	seenTopics := make(map[string]bool)
	var picked, repeats []model.Problem
	for _, p := range candidates {
		if seenTopics[p.TopicCategory] {
			repeats = append(repeats, p)
			continue
		}
		seenTopics[p.TopicCategory] = true
		picked = append(picked, p)
		if len(picked) == n {
			break
		}
	}
	for _, p := range repeats {
		if len(picked) == n {
			break
		}
		picked = append(picked, p)
	}
	asm.add(picked...)
	return nil
}

// topOff fills the assembly with uniformly random unused problems until
// it reaches target slots. Returns ErrPoolExhausted when the pool runs
// out before target: this is the loud terminal failure of every
// fallback chain.
func (s *SelectionService) topOff(ctx context.Context, asm *assembly, target int) error {
	for len(asm.problems) < target {
		need := target - len(asm.problems)
		got, err := s.pool.SampleAny(ctx, asm.exclude, need)
		if err != nil {
			return fmt.Errorf("random fill: %w", err)
		}
		if len(got) == 0 {
			return fmt.Errorf("%w: %d slots unfilled", ErrPoolExhausted, need)
		}
		asm.add(got...)
	}
	return nil
}

func remainingTopics(interests []string, usedTopics map[string]bool) []string {
	var out []string
	for _, t := range interests {
		if !usedTopics[t] {
			out = append(out, t)
		}
	}
	return out
}
