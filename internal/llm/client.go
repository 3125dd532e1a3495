package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyReply is returned when the model answers with no content.
var ErrEmptyReply = errors.New("model returned an empty reply")

// Client is a chat completions client for any OpenAI-compatible server
// (llama.cpp, vLLM, Ollama, OpenAI).
type Client struct {
	BaseURL string
	Model   string
	client  *openai.Client
}

// NewClient creates a new LLM client. baseURL is the server root without the /v1 suffix.
// A nil httpClient uses http.DefaultClient.
func NewClient(baseURL, apiKey, model string, httpClient *http.Client) *Client {
	return &Client{
		BaseURL: baseURL,
		Model:   model,
		client:  openai.NewClientWithConfig(openAIConfig(baseURL, apiKey, httpClient)),
	}
}

func openAIConfig(baseURL, apiKey string, httpClient *http.Client) openai.ClientConfig {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cfg.HTTPClient = httpClient
	return cfg
}

// Chat sends a single user message and returns the reply.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	return c.ChatWithMessages(ctx, []Message{{Role: RoleUser, Content: message}}, ChatParams{})
}

// ChatWithMessages sends a full conversation and returns the first choice's content.
// A whitespace-only reply is reported as ErrEmptyReply.
func (c *Client) ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	model := params.Model
	if model == "" {
		model = c.Model
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}
