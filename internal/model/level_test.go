package model

import "testing"

func TestLevelOrdinal(t *testing.T) {
	tests := []struct {
		level Level
		want  int
		ok    bool
	}{
		{LevelNL, 0, true},
		{LevelNM, 1, true},
		{LevelNH, 2, true},
		{LevelIL, 3, true},
		{LevelIM1, 4, true},
		{LevelIM2, 5, true},
		{LevelIM3, 6, true},
		{LevelIH, 7, true},
		{LevelAL, 8, true},
		{LevelError, 0, false},
		{Level(""), 0, false},
		{Level("B2"), 0, false},
	}

	for _, tt := range tests {
		got, ok := tt.level.Ordinal()
		if got != tt.want || ok != tt.ok {
			t.Errorf("Ordinal(%q) = (%d, %t), want (%d, %t)", tt.level, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLevelFromOrdinalClamps(t *testing.T) {
	if got := LevelFromOrdinal(-3); got != LevelNL {
		t.Errorf("LevelFromOrdinal(-3) = %q, want NL", got)
	}
	if got := LevelFromOrdinal(42); got != LevelAL {
		t.Errorf("LevelFromOrdinal(42) = %q, want AL", got)
	}
	if got := LevelFromOrdinal(5); got != LevelIM2 {
		t.Errorf("LevelFromOrdinal(5) = %q, want IM2", got)
	}
}

func TestAverageLevel(t *testing.T) {
	tests := []struct {
		name   string
		levels []Level
		want   Level
		ok     bool
	}{
		{
			name:   "single level",
			levels: []Level{LevelIH},
			want:   LevelIH,
			ok:     true,
		},
		{
			// (5 + 7 + 8) / 3 = 6.67, rounds to 7 = IH
			name:   "rounds to nearest",
			levels: []Level{LevelIM2, LevelIH, LevelAL},
			want:   LevelIH,
			ok:     true,
		},
		{
			// (0 + 8) / 2 = 4 = IM1
			name:   "extremes average to middle",
			levels: []Level{LevelNL, LevelAL},
			want:   LevelIM1,
			ok:     true,
		},
		{
			name:   "error sentinel is skipped",
			levels: []Level{LevelIM2, LevelError, LevelIM2},
			want:   LevelIM2,
			ok:     true,
		},
		{
			name:   "unknown codes are skipped",
			levels: []Level{Level("C1"), LevelIL},
			want:   LevelIL,
			ok:     true,
		},
		{
			name:   "only invalid levels",
			levels: []Level{LevelError, Level("")},
			want:   "",
			ok:     false,
		},
		{
			name:   "empty input",
			levels: nil,
			want:   "",
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AverageLevel(tt.levels)
			if got != tt.want || ok != tt.ok {
				t.Errorf("AverageLevel(%v) = (%q, %t), want (%q, %t)", tt.levels, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSlotSection(t *testing.T) {
	tests := []struct {
		testType TestType
		slot     int
		want     Section
		ok       bool
	}{
		{TestTypeFull, 1, SectionSelfIntro, true},
		{TestTypeFull, 2, SectionCombo, true},
		{TestTypeFull, 10, SectionCombo, true},
		{TestTypeFull, 11, SectionRolePlay, true},
		{TestTypeFull, 13, SectionRolePlay, true},
		{TestTypeFull, 14, SectionSurprise, true},
		{TestTypeFull, 15, SectionSurprise, true},
		{TestTypeFull, 16, "", false},
		{TestTypeFull, 0, "", false},
		{TestTypeCombo, 2, SectionCombo, true},
		{TestTypeRolePlay, 1, SectionRolePlay, true},
		{TestTypeSurprise, 3, SectionSurprise, true},
		{TestTypeCombo, 4, "", false},
	}

	for _, tt := range tests {
		got, ok := SlotSection(tt.testType, tt.slot)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SlotSection(%q, %d) = (%q, %t), want (%q, %t)",
				tt.testType, tt.slot, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTestTypeSlotCount(t *testing.T) {
	tests := []struct {
		testType TestType
		want     int
	}{
		{TestTypeFull, 15},
		{TestTypeCombo, 3},
		{TestTypeRolePlay, 3},
		{TestTypeSurprise, 3},
		{TestTypeSingle, 1},
	}

	for _, tt := range tests {
		if got := tt.testType.SlotCount(); got != tt.want {
			t.Errorf("SlotCount(%q) = %d, want %d", tt.testType, got, tt.want)
		}
	}
}
