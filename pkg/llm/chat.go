package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/xhad/docchat/internal/models"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	SystemTemplate string
	RewritePrompt  string
	BaseURL        string // Ollama server URL
}

const (
	defaultSystemTemplate = "Answer the user's questions based on the below context. " +
		"If the answer is not in the context, say that you don't know.\n\nContext:\n%s"

	defaultRewritePrompt = "Given the above conversation, generate a search query to look up " +
		"in order to get information relevant to the conversation. Respond with the query only."
)

// ChatEngine rewrites follow-up questions into standalone search queries and
// synthesizes grounded answers, both through a single chat model.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine backed by an Ollama model.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	model, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(config, model), nil
}

// NewWithModel creates a ChatEngine around an already constructed model.
func NewWithModel(config ChatConfig, model llms.Model) *ChatEngine {
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.RewritePrompt == "" {
		config.RewritePrompt = defaultRewritePrompt
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}
}

// Rewrite turns a follow-up question into a standalone search query in light
// of the conversation so far. With no history the question already stands on
// its own and no model call is made.
func (ce *ChatEngine) Rewrite(ctx context.Context, history []models.ChatMessage, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	content := historyToContent(history)
	content = append(content,
		llms.TextParts(llms.ChatMessageTypeHuman, question),
		llms.TextParts(llms.ChatMessageTypeHuman, ce.config.RewritePrompt),
	)

	resp, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(0),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: rewrite: %v", models.ErrSynthesis, err)
	}

	query := firstChoice(resp)
	if query == "" {
		return "", fmt.Errorf("%w: rewrite returned no text", models.ErrSynthesis)
	}
	return strings.TrimSpace(query), nil
}

// Synthesize answers the question strictly from the retrieved chunks, with
// the conversation history available for pronoun resolution and tone.
func (ce *ChatEngine) Synthesize(ctx context.Context, history []models.ChatMessage, question string, chunks []models.Chunk) (string, error) {
	var contextBuilder strings.Builder
	for _, chunk := range chunks {
		contextBuilder.WriteString(chunk.Content)
		contextBuilder.WriteString("\n\n")
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem,
			fmt.Sprintf(ce.config.SystemTemplate, strings.TrimSpace(contextBuilder.String()))),
	}
	content = append(content, historyToContent(history)...)
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, question))

	resp, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrSynthesis, err)
	}

	answer := firstChoice(resp)
	if answer == "" {
		return "", fmt.Errorf("%w: model returned no text", models.ErrSynthesis)
	}
	return answer, nil
}

func historyToContent(history []models.ChatMessage) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(history))
	for _, msg := range history {
		role := llms.ChatMessageTypeHuman
		if msg.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}
	return content
}

func firstChoice(resp *llms.ContentResponse) string {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return ""
	}
	return resp.Choices[0].Content
}
