package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/chatsync-go/internal/config"
	"github.com/comigor/chatsync-go/internal/history"
	"github.com/comigor/chatsync-go/internal/llm"
	"github.com/comigor/chatsync-go/internal/logger"
)

const defaultSystemPrompt = "You are a helpful AI assistant. Please respond to the user's request accurately and concisely."

// maxContextMessages caps how much of the transcript is replayed to the model.
const maxContextMessages = 40

// Responder produces assistant replies for the reference server.
type Responder struct {
	llmClient    llm.Client
	cfg          config.LLMConfig
	systemPrompt string
}

// New creates a Responder.
func New(llmClient llm.Client, cfg config.LLMConfig) *Responder {
	prompt := defaultSystemPrompt
	if cfg.SystemPrompt != "" {
		prompt = cfg.SystemPrompt
	}
	return &Responder{llmClient: llmClient, cfg: cfg, systemPrompt: prompt}
}

// Reply answers content given the earlier turns of the conversation.
// Synthetic messages are never replayed to the model.
func (r *Responder) Reply(ctx context.Context, past []history.Message, content string) (string, error) {
	if len(past) > maxContextMessages {
		past = past[len(past)-maxContextMessages:]
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(past)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: r.systemPrompt})
	for _, m := range past {
		if m.Synthetic {
			continue
		}
		role := openai.ChatMessageRoleAssistant
		if m.Role == history.RoleUser {
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content})

	logger.L.Debug("requesting completion", "model", r.cfg.Model, "messages", len(msgs))
	resp, err := r.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.cfg.Model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
