package summary

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/logger"
)

// OpenAICompleter sends the prompt as a single user message to an OpenAI or Azure
// OpenAI chat completion endpoint.
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *logger.Logger
}

// NewOpenAICompleter returns ErrDisabled when generation is switched off or no key is set.
// httpClient may be nil.
func NewOpenAICompleter(cfg config.SummaryConfig, httpClient *http.Client, log *logger.Logger) (*OpenAICompleter, error) {
	if !cfg.Enabled || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	if log == nil {
		log = logger.NewNop()
	}

	var clientCfg openai.ClientConfig
	switch cfg.Provider {
	case "azure":
		if cfg.AzureEndpoint == "" {
			return nil, fmt.Errorf("azure endpoint required for Azure OpenAI")
		}
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.AzureEndpoint)
		deployment := cfg.AzureDeployment
		clientCfg.AzureModelMapperFunc = func(model string) string {
			if deployment == "" {
				return model
			}
			return deployment
		}
	default:
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	log.Infow("Summary client initialized",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"max_tokens", cfg.MaxTokens,
	)

	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      log.WithComponent("openai"),
	}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.logger.Debugw("Generating completion",
		"model", c.model,
		"max_tokens", c.maxTokens,
		"prompt_length", len(prompt),
	)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debugw("Completion generated",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
		"response_length", len(content),
	)
	return content, nil
}
