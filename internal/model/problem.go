package model

import "github.com/google/uuid"

// ProblemCategory is the functional type of a question.
type ProblemCategory string

const (
	CategorySelfIntro      ProblemCategory = "SELF_INTRO"
	CategoryDescription    ProblemCategory = "DESCRIPTION"
	CategoryPastExperience ProblemCategory = "PAST_EXPERIENCE"
	CategoryRoutine        ProblemCategory = "ROUTINE"
	CategoryComparison     ProblemCategory = "COMPARISON"
	CategoryRolePlay       ProblemCategory = "ROLE_PLAY"
	CategoryFreeForm       ProblemCategory = "FREE_FORM"
)

// Valid reports whether c is a known problem category.
func (c ProblemCategory) Valid() bool {
	switch c {
	case CategorySelfIntro, CategoryDescription, CategoryPastExperience,
		CategoryRoutine, CategoryComparison, CategoryRolePlay, CategoryFreeForm:
		return true
	}
	return false
}

// Problem is a single exam question from the pool.
//
// ProblemGroupID links role-play questions that must be asked together;
// ProblemOrder is the 1-based position within that group. A group is
// only usable when its orders form a contiguous 1..N range.
type Problem struct {
	ID              uuid.UUID       `json:"id"`
	TopicCategory   string          `json:"topic_category"`
	ProblemCategory ProblemCategory `json:"problem_category"`
	Content         string          `json:"content"`
	AudioURL        *string         `json:"audio_url,omitempty"`
	HighGradeKit    bool            `json:"high_grade_kit"`
	ProblemGroupID  *uuid.UUID      `json:"problem_group_id,omitempty"`
	ProblemOrder    *int            `json:"problem_order,omitempty"`
}
