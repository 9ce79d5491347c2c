package model

import (
	"time"

	"github.com/google/uuid"
)

// ScriptSource records how a script came to exist.
type ScriptSource string

const (
	ScriptSourceTranscription ScriptSource = "TRANSCRIPTION"
	ScriptSourceGenerated     ScriptSource = "GENERATED"
)

// Script is a standalone transcript or model answer for a problem,
// kept editable for later practice.
type Script struct {
	ID        uuid.UUID    `json:"id"`
	UserID    int          `json:"user_id"`
	ProblemID uuid.UUID    `json:"problem_id"`
	Content   string       `json:"content"`
	Source    ScriptSource `json:"source"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// GenerateScriptRequest asks the oracle for a model practice script.
type GenerateScriptRequest struct {
	ProblemID string `json:"problem_id" binding:"required,uuid"`
}

// UpdateScriptRequest edits an existing script's content.
type UpdateScriptRequest struct {
	Content string `json:"content" binding:"required,min=1,max=10000"`
}
