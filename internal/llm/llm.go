package llm

import (
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/chatsync-go/internal/config"
)

// NewClient creates an OpenAI-compatible client. An empty BaseURL keeps the
// library default endpoint.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}
