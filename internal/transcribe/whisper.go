package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/config"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// WhisperTranscriber transcribes audio through the OpenAI audio API.
type WhisperTranscriber struct {
	api   *openai.Client
	model string
	log   zerolog.Logger
}

// NewWhisperTranscriber creates a transcriber bound to the configured endpoint.
func NewWhisperTranscriber(cfg *config.Config, log zerolog.Logger) *WhisperTranscriber {
	apiCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		apiCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return &WhisperTranscriber{
		api:   openai.NewClientWithConfig(apiCfg),
		model: cfg.TranscribeModel,
		log:   log.With().Str("component", "transcriber").Logger(),
	}
}

// Transcribe converts the audio file at audioPath into text.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := t.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
		Language: "en",
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", audioPath, err)
	}
	return strings.TrimSpace(resp.Text), nil
}
