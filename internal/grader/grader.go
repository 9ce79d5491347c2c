package grader

import (
	"context"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
)

// ItemContext carries everything the oracle needs to score one response.
type ItemContext struct {
	Response        string
	ProblemCategory model.ProblemCategory
	TopicCategory   string
	ProblemText     string
}

// ItemEvaluation is the oracle's verdict on a single response.
type ItemEvaluation struct {
	Level    model.Level
	Feedback model.ItemFeedback
}

// AggregateItem is one graded slot as seen by the holistic evaluation.
type AggregateItem struct {
	Slot        int
	Section     model.Section
	ProblemText string
	Response    string
	Level       model.Level
}

// AggregateContext is the full transcript-and-score context for the
// holistic summary call.
type AggregateContext struct {
	TestType      model.TestType
	Items         []AggregateItem
	SectionCounts map[model.Section]int
}

// AggregateEvaluation is the oracle's holistic result. Its numeric
// sub-scores are advisory only: the aggregate pipeline overwrites them
// with locally computed averages and keeps just the prose.
type AggregateEvaluation struct {
	Scores   model.TestScore
	Feedback model.TestFeedback
}

// Oracle scores spoken-English responses. Implementations must tolerate
// malformed model output by substituting the documented default payload
// rather than propagating a parse error.
type Oracle interface {
	EvaluateItem(ctx context.Context, in ItemContext) (*ItemEvaluation, error)
	EvaluateAggregate(ctx context.Context, in AggregateContext) (*AggregateEvaluation, error)
	GenerateScript(ctx context.Context, problem model.Problem) (string, error)
}

// Default payload used when the oracle replies with something that does
// not parse or carries a level code outside the scale: lowest-but-one
// level plus boilerplate feedback.
const defaultFeedbackText = "The response could not be evaluated in detail. Practice producing longer, structured answers."

func defaultItemEvaluation() *ItemEvaluation {
	return &ItemEvaluation{
		Level: model.LevelNM,
		Feedback: model.ItemFeedback{
			Paragraph:    defaultFeedbackText,
			Vocabulary:   defaultFeedbackText,
			SpokenAmount: defaultFeedbackText,
		},
	}
}

func defaultAggregateEvaluation() *AggregateEvaluation {
	return &AggregateEvaluation{
		Feedback: model.TestFeedback{
			Overall:      defaultFeedbackText,
			Paragraph:    defaultFeedbackText,
			Vocabulary:   defaultFeedbackText,
			SpokenAmount: defaultFeedbackText,
		},
	}
}
