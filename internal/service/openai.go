package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"carlton/internal/config"
	"carlton/internal/utils"
)

// ChatCompletionClient is a TextGenerator backed by any OpenAI-compatible
// chat completions endpoint, such as the Hugging Face router.
type ChatCompletionClient struct {
	config     config.GeneratorConfig
	httpClient *http.Client
	system     string
}

// NewChatCompletionClient creates a client. The per-call deadline comes from
// the caller's context; the HTTP client timeout is a backstop.
func NewChatCompletionClient(cfg config.GeneratorConfig, systemPrompt string) *ChatCompletionClient {
	return &ChatCompletionClient{
		config: cfg,
		system: systemPrompt,
		httpClient: &http.Client{
			Timeout: 2 * cfg.Timeout,
		},
	}
}

// IsEnabled returns whether the client is configured and ready
func (c *ChatCompletionClient) IsEnabled() bool {
	return c.config.Enabled
}

// ChatCompletionRequest represents a chat completion request
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatMessage represents a single message in the conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents the API response
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate implements TextGenerator with one chat completion call.
func (c *ChatCompletionClient) Generate(ctx context.Context, prompt string) (string, error) {
	messages := make([]ChatMessage, 0, 2)
	if c.system != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: c.system})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: prompt})

	resp, err := c.ChatCompletion(ctx, ChatCompletionRequest{Messages: messages})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrGeneratorUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ChatCompletion performs a chat completion request
func (c *ChatCompletionClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("%w: missing API key", ErrGeneratorUnavailable)
	}

	if req.Model == "" {
		req.Model = c.config.Model
	}
	if req.Temperature == 0 && c.config.Temperature > 0 {
		req.Temperature = c.config.Temperature
	}
	if req.MaxTokens == 0 && c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.config.APIBase)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %w", ErrGeneratorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrGeneratorUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Debug().Int("status", resp.StatusCode).Str("body", utils.Truncate(string(body), 200)).Msg("generator request rejected")
		return nil, fmt.Errorf("%w: status %d", ErrGeneratorUnavailable, resp.StatusCode)
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrGeneratorUnavailable, err)
	}

	return &result, nil
}
