package model

import "time"

// User is an account with an interest profile, rolling average scores
// and per-period usage counters.
type User struct {
	ID             int       `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	PasswordHash   string    `json:"-"`
	InterestTopics []string  `json:"interest_topics"`
	AverageScore   TestScore `json:"average_score"`

	// Usage counters, reset periodically by an external job.
	FullTestCount        int `json:"full_test_count"`
	CategoricalTestCount int `json:"categorical_test_count"`
	RandomProblemCount   int `json:"random_problem_count"`
	ScriptCount          int `json:"script_count"`

	CreatedAt time.Time `json:"created_at"`
}

// LoginRequest is the payload for password login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}
