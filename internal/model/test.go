package model

import (
	"time"

	"github.com/google/uuid"
)

// TestType selects the shape of an assembled test.
type TestType string

const (
	TestTypeFull     TestType = "FULL"      // 15 items: intro + 3 combo sets + role-play + surprise
	TestTypeCombo    TestType = "COMBO"     // 3 items: one combo set
	TestTypeRolePlay TestType = "ROLE_PLAY" // 3 items: one complete role-play group
	TestTypeSurprise TestType = "SURPRISE"  // 3 items: surprise pool
	TestTypeSingle   TestType = "SINGLE"    // 1 item: lightweight practice preview
)

// SlotCount returns the number of item slots a test of type t declares.
func (t TestType) SlotCount() int {
	switch t {
	case TestTypeFull:
		return 15
	case TestTypeSingle:
		return 1
	default:
		return 3
	}
}

// Valid reports whether t is a known test type.
func (t TestType) Valid() bool {
	switch t {
	case TestTypeFull, TestTypeCombo, TestTypeRolePlay, TestTypeSurprise, TestTypeSingle:
		return true
	}
	return false
}

// Section classifies an item slot for aggregate scoring.
type Section string

const (
	SectionSelfIntro Section = "SELF_INTRO"
	SectionCombo     Section = "COMBO"
	SectionRolePlay  Section = "ROLE_PLAY"
	SectionSurprise  Section = "SURPRISE"
)

// fullSections maps full-test slot numbers (1-based) to sections.
var fullSections = map[int]Section{
	1: SectionSelfIntro,
	2: SectionCombo, 3: SectionCombo, 4: SectionCombo,
	5: SectionCombo, 6: SectionCombo, 7: SectionCombo,
	8: SectionCombo, 9: SectionCombo, 10: SectionCombo,
	11: SectionRolePlay, 12: SectionRolePlay, 13: SectionRolePlay,
	14: SectionSurprise, 15: SectionSurprise,
}

// SlotSection maps (test type, 1-based slot) to the section the item is
// scored under. Returns false when the slot is out of range for the type.
func SlotSection(t TestType, slot int) (Section, bool) {
	if slot < 1 || slot > t.SlotCount() {
		return "", false
	}
	switch t {
	case TestTypeFull:
		sec, ok := fullSections[slot]
		return sec, ok
	case TestTypeRolePlay:
		return SectionRolePlay, true
	case TestTypeSurprise:
		return SectionSurprise, true
	default:
		// Combo tests and single-item previews score as combo items.
		return SectionCombo, true
	}
}

// ItemStatus is the per-slot grading pipeline state.
type ItemStatus string

const (
	ItemStatusPending      ItemStatus = "PENDING"
	ItemStatusTranscribing ItemStatus = "TRANSCRIBING"
	ItemStatusEvaluating   ItemStatus = "EVALUATING"
	ItemStatusCompleted    ItemStatus = "COMPLETED"
	ItemStatusFailed       ItemStatus = "FAILED"
)

// OverallStatus tracks the aggregate feedback pipeline for a test.
type OverallStatus string

const (
	OverallStatusPending    OverallStatus = "PENDING"
	OverallStatusProcessing OverallStatus = "PROCESSING"
	OverallStatusCompleted  OverallStatus = "COMPLETED"
	OverallStatusFailed     OverallStatus = "FAILED"
)

// TestScore holds the four aggregate sub-scores of a graded test.
type TestScore struct {
	Total    *Level `json:"total,omitempty"`
	Combo    *Level `json:"combo,omitempty"`
	RolePlay *Level `json:"role_play,omitempty"`
	Surprise *Level `json:"surprise,omitempty"`
}

// TestFeedback is the holistic narrative feedback for a graded test.
type TestFeedback struct {
	Overall      string `json:"overall"`
	Paragraph    string `json:"paragraph"`
	Vocabulary   string `json:"vocabulary"`
	SpokenAmount string `json:"spoken_amount"`
}

// ItemFeedback is the structured per-item feedback from the oracle.
type ItemFeedback struct {
	Paragraph    string `json:"paragraph"`
	Vocabulary   string `json:"vocabulary"`
	SpokenAmount string `json:"spoken_amount"`
}

// TestItem is the per-slot state of a test. Problem fields are
// denormalized at assembly time so grading never re-reads the pool.
type TestItem struct {
	TestID          uuid.UUID       `json:"test_id"`
	Slot            int             `json:"slot"`
	ProblemID       uuid.UUID       `json:"problem_id"`
	ProblemCategory ProblemCategory `json:"problem_category"`
	TopicCategory   string          `json:"topic_category"`
	Content         string          `json:"content"`
	UserResponse    *string         `json:"user_response,omitempty"`
	Score           *Level          `json:"score,omitempty"`
	Feedback        *ItemFeedback   `json:"feedback,omitempty"`
	Status          ItemStatus      `json:"status"`
	Message         *string         `json:"message,omitempty"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// Test is one assembled, gradable exam instance.
type Test struct {
	ID            uuid.UUID     `json:"id"`
	UserID        int           `json:"user_id"`
	TestType      TestType      `json:"test_type"`
	Items         []TestItem    `json:"items,omitempty"`
	Score         TestScore     `json:"score"`
	Feedback      *TestFeedback `json:"feedback,omitempty"`
	OverallStatus OverallStatus `json:"overall_status"`
	OverallError  *string       `json:"overall_error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// CreateTestRequest is the payload for assembling a new test.
type CreateTestRequest struct {
	TestType TestType `json:"test_type" binding:"required,oneof=FULL COMBO ROLE_PLAY SURPRISE"`
}

// ItemStatusView is the polling shape for one slot.
type ItemStatusView struct {
	Slot        int        `json:"slot"`
	Status      ItemStatus `json:"status"`
	Message     string     `json:"message,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StatusEvent is published on the per-test Redis channel whenever a
// slot or the aggregate pipeline changes state.
type StatusEvent struct {
	TestID  string `json:"test_id"`
	Slot    int    `json:"slot,omitempty"` // 0 for aggregate events
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
