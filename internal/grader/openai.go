package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/config"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIOracle scores responses through an OpenAI-compatible chat API.
type OpenAIOracle struct {
	api   *openai.Client
	model string
	log   zerolog.Logger
}

// NewOpenAIOracle creates an oracle bound to the configured endpoint.
func NewOpenAIOracle(cfg *config.Config, log zerolog.Logger) *OpenAIOracle {
	apiCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		apiCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return &OpenAIOracle{
		api:   openai.NewClientWithConfig(apiCfg),
		model: cfg.ChatModel,
		log:   log.With().Str("component", "oracle").Logger(),
	}
}

type itemResultJSON struct {
	Level    string `json:"level"`
	Feedback struct {
		Paragraph    string `json:"paragraph"`
		Vocabulary   string `json:"vocabulary"`
		SpokenAmount string `json:"spoken_amount"`
	} `json:"feedback"`
}

type aggregateResultJSON struct {
	Scores struct {
		Total    string `json:"total"`
		Combo    string `json:"combo"`
		RolePlay string `json:"role_play"`
		Surprise string `json:"surprise"`
	} `json:"scores"`
	Feedback struct {
		Overall      string `json:"overall"`
		Paragraph    string `json:"paragraph"`
		Vocabulary   string `json:"vocabulary"`
		SpokenAmount string `json:"spoken_amount"`
	} `json:"feedback"`
}

// EvaluateItem scores a single transcribed response. API errors are
// returned for the caller's retry policy; unparseable or off-scale model
// output degrades to the default payload instead of failing.
func (o *OpenAIOracle) EvaluateItem(ctx context.Context, in ItemContext) (*ItemEvaluation, error) {
	raw, err := o.complete(ctx, itemSystemPrompt(), itemUserPrompt(in), 0.3)
	if err != nil {
		return nil, fmt.Errorf("evaluate item: %w", err)
	}

	var parsed itemResultJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		o.log.Warn().Err(err).Str("raw", raw).Msg("Unparseable item evaluation, using default payload")
		return defaultItemEvaluation(), nil
	}

	level := model.Level(strings.ToUpper(strings.TrimSpace(parsed.Level)))
	if !level.Valid() {
		o.log.Warn().Str("level", parsed.Level).Msg("Oracle returned level outside the scale, using default")
		level = defaultItemEvaluation().Level
	}

	return &ItemEvaluation{
		Level: level,
		Feedback: model.ItemFeedback{
			Paragraph:    parsed.Feedback.Paragraph,
			Vocabulary:   parsed.Feedback.Vocabulary,
			SpokenAmount: parsed.Feedback.SpokenAmount,
		},
	}, nil
}

// EvaluateAggregate produces the holistic narrative summary. The parsed
// numeric scores are passed through untouched; the aggregate pipeline
// replaces them with locally computed averages.
func (o *OpenAIOracle) EvaluateAggregate(ctx context.Context, in AggregateContext) (*AggregateEvaluation, error) {
	raw, err := o.complete(ctx, aggregateSystemPrompt(), aggregateUserPrompt(in), 0.3)
	if err != nil {
		return nil, fmt.Errorf("evaluate aggregate: %w", err)
	}

	var parsed aggregateResultJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		o.log.Warn().Err(err).Str("raw", raw).Msg("Unparseable aggregate evaluation, using default payload")
		return defaultAggregateEvaluation(), nil
	}

	out := &AggregateEvaluation{
		Feedback: model.TestFeedback{
			Overall:      parsed.Feedback.Overall,
			Paragraph:    parsed.Feedback.Paragraph,
			Vocabulary:   parsed.Feedback.Vocabulary,
			SpokenAmount: parsed.Feedback.SpokenAmount,
		},
	}
	out.Scores.Total = levelPtr(parsed.Scores.Total)
	out.Scores.Combo = levelPtr(parsed.Scores.Combo)
	out.Scores.RolePlay = levelPtr(parsed.Scores.RolePlay)
	out.Scores.Surprise = levelPtr(parsed.Scores.Surprise)
	return out, nil
}

// GenerateScript asks the oracle for a model practice answer to a problem.
func (o *OpenAIOracle) GenerateScript(ctx context.Context, problem model.Problem) (string, error) {
	var sb strings.Builder
	sb.WriteString("Write a natural spoken-English model answer for the following OPIc question, ")
	sb.WriteString("about 120-180 words, first person, conversational register. ")
	sb.WriteString("Return only the answer text.\n\n")
	sb.WriteString("TOPIC: " + problem.TopicCategory + "\n")
	sb.WriteString("TYPE: " + string(problem.ProblemCategory) + "\n")
	sb.WriteString("QUESTION: " + problem.Content + "\n")

	resp, err := o.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("generate script: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generate script: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAIOracle) complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	resp, err := o.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func levelPtr(code string) *model.Level {
	l := model.Level(strings.ToUpper(strings.TrimSpace(code)))
	if !l.Valid() {
		return nil
	}
	return &l
}

func levelScale() string {
	codes := make([]string, len(model.Levels))
	for i, l := range model.Levels {
		codes[i] = string(l)
	}
	return strings.Join(codes, ", ")
}

func itemSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are an OPIc rater. Score the examinee's spoken response (transcribed below) ")
	sb.WriteString("on the official scale, lowest to highest: " + levelScale() + ".\n")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"level": "<code>", "feedback": {"paragraph": "<structure feedback>", "vocabulary": "<vocabulary feedback>", "spoken_amount": "<length/fluency feedback>"}}`)
	return sb.String()
}

func itemUserPrompt(in ItemContext) string {
	var sb strings.Builder
	sb.WriteString("QUESTION TYPE: " + string(in.ProblemCategory) + "\n")
	sb.WriteString("TOPIC: " + in.TopicCategory + "\n")
	sb.WriteString("QUESTION: " + in.ProblemText + "\n\n")
	sb.WriteString("RESPONSE:\n" + in.Response + "\n")
	return sb.String()
}

func aggregateSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are an OPIc rater reviewing a full mock exam. Every item below was already ")
	sb.WriteString("scored individually on the scale " + levelScale() + ".\n")
	sb.WriteString("Write a holistic assessment of the examinee's performance.\n")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"scores": {"total": "<code>", "combo": "<code>", "role_play": "<code>", "surprise": "<code>"}, `)
	sb.WriteString(`"feedback": {"overall": "<summary>", "paragraph": "<structure>", "vocabulary": "<vocabulary>", "spoken_amount": "<fluency>"}}`)
	return sb.String()
}

func aggregateUserPrompt(in AggregateContext) string {
	var sb strings.Builder
	sb.WriteString("TEST TYPE: " + string(in.TestType) + "\n\n")
	for _, item := range in.Items {
		fmt.Fprintf(&sb, "[%d] (%s) %s\n", item.Slot, item.Section, item.ProblemText)
		fmt.Fprintf(&sb, "RESPONSE: %s\n", item.Response)
		fmt.Fprintf(&sb, "ITEM SCORE: %s\n\n", item.Level)
	}
	return sb.String()
}
