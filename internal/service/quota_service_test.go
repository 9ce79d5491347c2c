package service

import (
	"context"
	"errors"
	"testing"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/repository"
)

// fakeQuotaStore counts in memory with the same conditional semantics
// as the SQL reserve/release.
type fakeQuotaStore struct {
	counters map[repository.QuotaColumn]int
	err      error
}

func newFakeQuotaStore() *fakeQuotaStore {
	return &fakeQuotaStore{counters: make(map[repository.QuotaColumn]int)}
}

func (f *fakeQuotaStore) ReserveQuota(_ context.Context, _ int, column repository.QuotaColumn, ceiling int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.counters[column] >= ceiling {
		return false, nil
	}
	f.counters[column]++
	return true, nil
}

func (f *fakeQuotaStore) ReleaseQuota(_ context.Context, _ int, column repository.QuotaColumn) error {
	if f.err != nil {
		return f.err
	}
	if f.counters[column] > 0 {
		f.counters[column]--
	}
	return nil
}

func TestReserveTestEnforcesCeilings(t *testing.T) {
	tests := []struct {
		testType model.TestType
		ceiling  int
	}{
		{model.TestTypeFull, CeilingFullTest},
		{model.TestTypeCombo, CeilingCategoricalTest},
		{model.TestTypeSingle, CeilingRandomProblem},
	}

	for _, tt := range tests {
		t.Run(string(tt.testType), func(t *testing.T) {
			store := newFakeQuotaStore()
			svc := NewQuotaService(store)
			ctx := context.Background()

			for i := 0; i < tt.ceiling; i++ {
				if err := svc.ReserveTest(ctx, 1, tt.testType); err != nil {
					t.Fatalf("reserve %d/%d: %v", i+1, tt.ceiling, err)
				}
			}

			err := svc.ReserveTest(ctx, 1, tt.testType)
			if !errors.Is(err, ErrQuotaExceeded) {
				t.Fatalf("reserve past ceiling = %v, want ErrQuotaExceeded", err)
			}
		})
	}
}

func TestCategoricalTypesShareOneCounter(t *testing.T) {
	store := newFakeQuotaStore()
	svc := NewQuotaService(store)
	ctx := context.Background()

	if err := svc.ReserveTest(ctx, 1, model.TestTypeCombo); err != nil {
		t.Fatalf("combo reserve: %v", err)
	}
	if err := svc.ReserveTest(ctx, 1, model.TestTypeRolePlay); err != nil {
		t.Fatalf("role-play reserve: %v", err)
	}

	// Ceiling is 2 across all categorical types combined.
	err := svc.ReserveTest(ctx, 1, model.TestTypeSurprise)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("third categorical reserve = %v, want ErrQuotaExceeded", err)
	}
}

func TestReleaseTestReopensQuota(t *testing.T) {
	store := newFakeQuotaStore()
	svc := NewQuotaService(store)
	ctx := context.Background()

	if err := svc.ReserveTest(ctx, 1, model.TestTypeFull); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.ReleaseTest(ctx, 1, model.TestTypeFull); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := svc.ReserveTest(ctx, 1, model.TestTypeFull); err != nil {
		t.Fatalf("reserve after release = %v, want nil", err)
	}
}

func TestReserveTestUnknownType(t *testing.T) {
	svc := NewQuotaService(newFakeQuotaStore())
	if err := svc.ReserveTest(context.Background(), 1, model.TestType("BOGUS")); err == nil {
		t.Fatal("reserve unknown type = nil, want error")
	}
}

func TestReserveScriptCeiling(t *testing.T) {
	store := newFakeQuotaStore()
	svc := NewQuotaService(store)
	ctx := context.Background()

	for i := 0; i < CeilingScript; i++ {
		if err := svc.ReserveScript(ctx, 1); err != nil {
			t.Fatalf("reserve %d: %v", i+1, err)
		}
	}
	if err := svc.ReserveScript(ctx, 1); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("reserve past ceiling = %v, want ErrQuotaExceeded", err)
	}

	if err := svc.ReleaseScript(ctx, 1); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := svc.ReserveScript(ctx, 1); err != nil {
		t.Fatalf("reserve after release = %v, want nil", err)
	}
}

func TestReserveTestPropagatesStoreError(t *testing.T) {
	store := newFakeQuotaStore()
	store.err = errors.New("connection reset")
	svc := NewQuotaService(store)

	err := svc.ReserveTest(context.Background(), 1, model.TestTypeFull)
	if err == nil || errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("reserve with failing store = %v, want store error", err)
	}
}
