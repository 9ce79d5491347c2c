package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/repository"
)

// ErrQuotaExceeded is returned when a usage ceiling was already reached.
var ErrQuotaExceeded = errors.New("usage quota exceeded")

// Per-period usage ceilings. Counters are reset by an external
// scheduled job.
const (
	CeilingFullTest        = 1
	CeilingCategoricalTest = 2
	CeilingRandomProblem   = 3
	CeilingScript          = 5
)

// QuotaStore is the counter surface QuotaService drives. Implemented by
// repository.UserRepository.
type QuotaStore interface {
	ReserveQuota(ctx context.Context, userID int, column repository.QuotaColumn, ceiling int) (bool, error)
	ReleaseQuota(ctx context.Context, userID int, column repository.QuotaColumn) error
}

// QuotaService enforces per-user usage ceilings. Reservation increments
// the counter before the resource exists; callers must Release on any
// subsequent failure (an explicit compensating action, not a
// transactional rollback).
type QuotaService struct {
	store QuotaStore
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(store QuotaStore) *QuotaService {
	return &QuotaService{store: store}
}

func testQuota(testType model.TestType) (repository.QuotaColumn, int, error) {
	switch testType {
	case model.TestTypeFull:
		return repository.QuotaFullTest, CeilingFullTest, nil
	case model.TestTypeCombo, model.TestTypeRolePlay, model.TestTypeSurprise:
		return repository.QuotaCategoricalTest, CeilingCategoricalTest, nil
	case model.TestTypeSingle:
		return repository.QuotaRandomProblem, CeilingRandomProblem, nil
	default:
		return "", 0, fmt.Errorf("unknown test type %q", testType)
	}
}

// ReserveTest increments the counter for the test type, rejecting with
// ErrQuotaExceeded if the ceiling was reached.
func (s *QuotaService) ReserveTest(ctx context.Context, userID int, testType model.TestType) error {
	column, ceiling, err := testQuota(testType)
	if err != nil {
		return err
	}
	ok, err := s.store.ReserveQuota(ctx, userID, column, ceiling)
	if err != nil {
		return err
	}
	if !ok {
		return ErrQuotaExceeded
	}
	return nil
}

// ReleaseTest decrements the counter for the test type after a failed
// creation.
func (s *QuotaService) ReleaseTest(ctx context.Context, userID int, testType model.TestType) error {
	column, _, err := testQuota(testType)
	if err != nil {
		return err
	}
	return s.store.ReleaseQuota(ctx, userID, column)
}

// ReserveScript increments the script-generation counter.
func (s *QuotaService) ReserveScript(ctx context.Context, userID int) error {
	ok, err := s.store.ReserveQuota(ctx, userID, repository.QuotaScript, CeilingScript)
	if err != nil {
		return err
	}
	if !ok {
		return ErrQuotaExceeded
	}
	return nil
}

// ReleaseScript decrements the script-generation counter.
func (s *QuotaService) ReleaseScript(ctx context.Context, userID int) error {
	return s.store.ReleaseQuota(ctx, userID, repository.QuotaScript)
}
