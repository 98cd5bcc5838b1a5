package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
)

// DefaultSystemPrompt is used when no persona is configured.
const DefaultSystemPrompt = "You are a helpful assistant."

// maxConversations bounds how many transcripts are kept in memory.
var maxConversations = 1000

// chatClient is the part of *openai.Client the invoker uses.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig configures an OpenAIInvoker.
type OpenAIConfig struct {
	APIKey       string
	Model        string
	SystemPrompt string
	MaxTurns     int
}

// OpenAIInvoker answers chat messages with OpenAI chat completions and keeps
// a bounded transcript per conversation.
type OpenAIInvoker struct {
	client       chatClient
	model        string
	systemPrompt string
	maxTurns     int

	mu    sync.Mutex
	convs map[string][]openai.ChatCompletionMessage
	order []string
}

// NewOpenAIInvoker creates an invoker backed by the OpenAI API.
func NewOpenAIInvoker(cfg OpenAIConfig) (*OpenAIInvoker, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai invoker: API key is required")
	}
	return newOpenAIInvoker(openai.NewClient(cfg.APIKey), cfg), nil
}

func newOpenAIInvoker(c chatClient, cfg OpenAIConfig) *OpenAIInvoker {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 20
	}
	slog.Info("initializing openai agent", "model", cfg.Model, "max_turns", cfg.MaxTurns)
	return &OpenAIInvoker{
		client:       c,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		maxTurns:     cfg.MaxTurns,
		convs:        make(map[string][]openai.ChatCompletionMessage),
	}
}

// Invoke continues the conversation sessionID, or starts a new one when it
// is empty or unknown, and returns "reply##sessionId".
func (o *OpenAIInvoker) Invoke(ctx context.Context, message, sessionID string) (string, error) {
	history, ok := o.transcript(sessionID)
	if !ok {
		sessionID = uuid.NewString()
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message}
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: o.systemPrompt})
	msgs = append(msgs, history...)
	msgs = append(msgs, user)

	reply, err := o.complete(ctx, msgs)
	if err != nil {
		return "", err
	}

	o.record(sessionID, user, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply})
	return FormatEnvelope(reply, sessionID), nil
}

// GenerateText completes prompt under the configured system prompt.
func (o *OpenAIInvoker) GenerateText(ctx context.Context, prompt string) (string, error) {
	return o.ChatGeneration(ctx, prompt, o.systemPrompt)
}

// ChatGeneration completes userPrompt under systemPrompt without touching
// any conversation.
func (o *OpenAIInvoker) ChatGeneration(ctx context.Context, userPrompt, systemPrompt string) (string, error) {
	if systemPrompt == "" {
		systemPrompt = o.systemPrompt
	}
	return o.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	})
}

func (o *OpenAIInvoker) complete(ctx context.Context, msgs []openai.ChatCompletionMessage) (string, error) {
	slog.Debug("generating text via openai", "model", o.model, "messages", len(msgs))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion: no choices returned")
	}

	slog.Debug("received response from openai", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIInvoker) transcript(sessionID string) ([]openai.ChatCompletionMessage, bool) {
	if sessionID == "" {
		return nil, false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.convs[sessionID]
	return append([]openai.ChatCompletionMessage(nil), h...), ok
}

// record appends a turn and trims the transcript to maxTurns exchanges.
func (o *OpenAIInvoker) record(sessionID string, msgs ...openai.ChatCompletionMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()

	h, ok := o.convs[sessionID]
	if !ok {
		o.order = append(o.order, sessionID)
		if len(o.order) > maxConversations {
			delete(o.convs, o.order[0])
			o.order = o.order[1:]
		}
	}
	h = append(h, msgs...)
	if over := len(h) - 2*o.maxTurns; over > 0 {
		h = append([]openai.ChatCompletionMessage(nil), h[over:]...)
	}
	o.convs[sessionID] = h
}

// Conversations returns the number of transcripts held.
func (o *OpenAIInvoker) Conversations() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.convs)
}
