package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/grader"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ErrScriptNotFound is returned for missing or foreign scripts.
var ErrScriptNotFound = errors.New("script not found")

// ScriptService manages standalone scripts: transcripts archived by the
// grading pipeline and oracle-generated model answers.
type ScriptService struct {
	scripts  *repository.ScriptRepository
	problems *repository.ProblemRepository
	quota    *QuotaService
	oracle   grader.Oracle
	policy   grader.RetryPolicy
	log      zerolog.Logger
}

// NewScriptService creates a new ScriptService.
func NewScriptService(
	scripts *repository.ScriptRepository,
	problems *repository.ProblemRepository,
	quota *QuotaService,
	oracle grader.Oracle,
	policy grader.RetryPolicy,
	log zerolog.Logger,
) *ScriptService {
	return &ScriptService{
		scripts:  scripts,
		problems: problems,
		quota:    quota,
		oracle:   oracle,
		policy:   policy,
		log:      log.With().Str("component", "script_service").Logger(),
	}
}

// Generate reserves script quota and asks the oracle for a model
// practice answer. The reservation is released if generation or
// persistence fails.
func (s *ScriptService) Generate(ctx context.Context, userID int, problemID uuid.UUID) (*model.Script, error) {
	if err := s.quota.ReserveScript(ctx, userID); err != nil {
		return nil, err
	}

	script, err := s.generate(ctx, userID, problemID)
	if err != nil {
		if relErr := s.quota.ReleaseScript(ctx, userID); relErr != nil {
			s.log.Error().Err(relErr).Int("user_id", userID).Msg("Script quota release failed")
		}
		return nil, err
	}
	return script, nil
}

func (s *ScriptService) generate(ctx context.Context, userID int, problemID uuid.UUID) (*model.Script, error) {
	problem, err := s.problems.GetByID(ctx, problemID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("problem %s: %w", problemID, ErrScriptNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load problem: %w", err)
	}

	var content string
	err = grader.Retry(ctx, s.policy, func(ctx context.Context) error {
		text, err := s.oracle.GenerateScript(ctx, *problem)
		if err != nil {
			return err
		}
		content = text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate script: %w", err)
	}

	script := &model.Script{
		UserID:    userID,
		ProblemID: problemID,
		Content:   content,
		Source:    model.ScriptSourceGenerated,
	}
	if err := s.scripts.Create(ctx, script); err != nil {
		return nil, fmt.Errorf("persist script: %w", err)
	}
	return script, nil
}

// SaveTranscript archives a grading-pipeline transcript as a script.
// Errors are logged, never propagated: transcript archiving must not
// fail an item.
func (s *ScriptService) SaveTranscript(ctx context.Context, userID int, problemID uuid.UUID, content string) {
	script := &model.Script{
		UserID:    userID,
		ProblemID: problemID,
		Content:   content,
		Source:    model.ScriptSourceTranscription,
	}
	if err := s.scripts.Create(ctx, script); err != nil {
		s.log.Warn().Err(err).
			Int("user_id", userID).
			Str("problem_id", problemID.String()).
			Msg("Transcript archive failed")
	}
}

// Get retrieves one script owned by the user.
func (s *ScriptService) Get(ctx context.Context, id uuid.UUID, userID int) (*model.Script, error) {
	script, err := s.scripts.GetByID(ctx, id, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScriptNotFound
	}
	return script, err
}

// List retrieves all scripts of the user.
func (s *ScriptService) List(ctx context.Context, userID int) ([]model.Script, error) {
	return s.scripts.ListByUser(ctx, userID)
}

// Update edits a script's content.
func (s *ScriptService) Update(ctx context.Context, id uuid.UUID, userID int, content string) error {
	err := s.scripts.UpdateContent(ctx, id, userID, content)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrScriptNotFound
	}
	return err
}
