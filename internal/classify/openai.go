package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/trendwatch/trendwatch/internal/config"
)

const systemPrompt = `You are a trend analyst. Given a candidate keyword and the news snippet it was extracted from, judge whether the keyword is a researchable trending topic. Respond with a single JSON object: {"category": "<short category>", "score": <0..1>}. Score 0 for noise (boilerplate, navigation text, generic words), 1 for a clearly trending, searchable topic.`

// OpenAIClassifier scores candidate keywords with a chat-completion call.
type OpenAIClassifier struct {
	client *openai.Client
	cfg    config.ClassifierConfig
	logger *slog.Logger
}

// NewOpenAIClassifier creates an LLM-backed classifier.
func NewOpenAIClassifier(cfg config.ClassifierConfig, logger *slog.Logger) *OpenAIClassifier {
	return &OpenAIClassifier{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
		logger: logger,
	}
}

type labelPayload struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// Classify sends the term and its news context to the model and parses the
// JSON verdict. The call is bounded by the configured timeout.
func (c *OpenAIClassifier) Classify(ctx context.Context, term, newsContext string) (Label, error) {
	apiCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(apiCtx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Keyword: %s\n\nNews context: %s", term, newsContext)},
		},
	})
	if err != nil {
		return Label{}, fmt.Errorf("classify %q: %w", term, err)
	}

	c.logger.Debug("classifier call complete",
		"term", term,
		"duration_ms", time.Since(start).Milliseconds(),
		"tokens", resp.Usage.TotalTokens,
	)

	if len(resp.Choices) == 0 {
		return Label{}, fmt.Errorf("classify %q: empty response", term)
	}

	return parseLabel(resp.Choices[0].Message.Content)
}

func parseLabel(content string) (Label, error) {
	// Models occasionally fence the JSON; strip markdown before decoding.
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var payload labelPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return Label{}, fmt.Errorf("parse classifier response: %w", err)
	}

	if payload.Score < 0 {
		payload.Score = 0
	}
	if payload.Score > 1 {
		payload.Score = 1
	}

	return Label{Category: payload.Category, Score: payload.Score}, nil
}
