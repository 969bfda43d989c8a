package llm_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/pkg/llm"
)

type fakeModel struct {
	calls    int
	response string
	err      error
	lastMsgs []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.lastMsgs = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func messagesText(messages []llms.MessageContent) string {
	var builder strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				builder.WriteString(text.Text)
				builder.WriteString("\n")
			}
		}
	}
	return builder.String()
}

func history() []models.ChatMessage {
	return []models.ChatMessage{
		{Role: models.RoleHuman, Content: "What does the warranty cover?"},
		{Role: models.RoleAssistant, Content: "The warranty covers manufacturing defects for two years."},
	}
}

func TestNewWithConfig(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       "testmodel",
		Temperature: 0.5,
		MaxTokens:   1000,
		BaseURL:     "http://localhost:1234",
	})
	assert.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestNewWithConfigRejectsBadTemperature(t *testing.T) {
	_, err := llm.NewWithConfig(llm.ChatConfig{Temperature: 1.5})
	assert.Error(t, err)
}

func TestRewriteEmptyHistorySkipsModel(t *testing.T) {
	model := &fakeModel{response: "should not be used"}
	engine := llm.NewWithModel(llm.ChatConfig{}, model)

	query, err := engine.Rewrite(context.Background(), nil, "what colour is A?")
	require.NoError(t, err)

	assert.Equal(t, "what colour is A?", query)
	assert.Equal(t, 0, model.calls)
}

func TestRewriteUsesHistory(t *testing.T) {
	model := &fakeModel{response: "  warranty coverage duration  "}
	engine := llm.NewWithModel(llm.ChatConfig{}, model)

	query, err := engine.Rewrite(context.Background(), history(), "how long does it last?")
	require.NoError(t, err)

	assert.Equal(t, "warranty coverage duration", query)
	assert.Equal(t, 1, model.calls)

	prompt := messagesText(model.lastMsgs)
	assert.Contains(t, prompt, "What does the warranty cover?")
	assert.Contains(t, prompt, "how long does it last?")
	assert.Contains(t, prompt, "generate a search query")
}

func TestRewriteModelError(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("connection refused")}
	engine := llm.NewWithModel(llm.ChatConfig{}, model)

	_, err := engine.Rewrite(context.Background(), history(), "and then?")
	assert.True(t, errors.Is(err, models.ErrSynthesis))
}

func TestSynthesize(t *testing.T) {
	model := &fakeModel{response: "A is red."}
	engine := llm.NewWithModel(llm.ChatConfig{}, model)

	chunks := []models.Chunk{
		{DocumentID: "doc-1", Index: 0, Content: "A is red"},
		{DocumentID: "doc-1", Index: 1, Content: "B is blue"},
	}

	answer, err := engine.Synthesize(context.Background(), nil, "what colour is A?", chunks)
	require.NoError(t, err)
	assert.Equal(t, "A is red.", answer)

	prompt := messagesText(model.lastMsgs)
	assert.Contains(t, prompt, "A is red")
	assert.Contains(t, prompt, "B is blue")
	assert.Contains(t, prompt, "what colour is A?")
}

func TestSynthesizeModelError(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("model overloaded")}
	engine := llm.NewWithModel(llm.ChatConfig{}, model)

	_, err := engine.Synthesize(context.Background(), nil, "question", nil)
	assert.True(t, errors.Is(err, models.ErrSynthesis))
}

func TestSynthesizeEmptyResponse(t *testing.T) {
	model := &fakeModel{response: ""}
	engine := llm.NewWithModel(llm.ChatConfig{}, model)

	_, err := engine.Synthesize(context.Background(), nil, "question", nil)
	assert.True(t, errors.Is(err, models.ErrSynthesis))
}
