package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultNLPBase  = "https://api.openai.com/v1"
	defaultNLPModel = "gpt-4o-mini"
	defaultTimeout  = 30 * time.Second
)

// Config configures the OpenAI-compatible NLP provider.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint.  Useful for local models (Ollama),
	// Azure OpenAI, or any other OpenAI-compatible endpoint.
	// Defaults to https://api.openai.com/v1 when empty.
	BaseURL string

	// Model is the chat model to use.
	// Defaults to gpt-4o-mini when empty (cost-efficient, sufficient for
	// intent classification and translation).
	Model string

	// Timeout is the HTTP request timeout.  Defaults to 30 s.
	Timeout time.Duration
}

// openAIProvider implements Provider using the OpenAI chat completions API
// with JSON-mode output to guarantee a parseable Classification.
type openAIProvider struct {
	cfg    Config
	client *http.Client
}

// New returns a Provider backed by the OpenAI (or compatible) chat API.
// The returned provider is safe for concurrent use.
func New(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNLPBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultNLPModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &openAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model          string       `json:"model"`
	Messages       []oaiMessage `json:"messages"`
	Temperature    float64      `json:"temperature"`
	MaxTokens      int          `json:"max_tokens,omitempty"`
	ResponseFormat *oaiFormat   `json:"response_format,omitempty"`
}

type oaiFormat struct {
	Type string `json:"type"` // "json_object"
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// Classify sends the utterance (with conversation history) to the LLM and
// returns a schema-validated Classification.
func (p *openAIProvider) Classify(ctx context.Context, req ClassifyRequest) (*Classification, error) {
	messages := make([]oaiMessage, 0, len(req.History)+2)
	messages = append(messages, oaiMessage{Role: "system", Content: classificationSystemPrompt})
	for _, h := range req.History {
		messages = append(messages, oaiMessage{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, oaiMessage{
		Role:    "user",
		Content: fmt.Sprintf("Language: %s\nUtterance: %s", req.Language, req.Utterance),
	})

	content, err := p.chat(ctx, oaiRequest{
		Model:          p.cfg.Model,
		Messages:       messages,
		Temperature:    0,
		MaxTokens:      450,
		ResponseFormat: &oaiFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	if err := validateClassification([]byte(content)); err != nil {
		return nil, fmt.Errorf("%w (raw content: %.200s)", err, content)
	}

	var classified Classification
	if err := json.Unmarshal([]byte(content), &classified); err != nil {
		return nil, fmt.Errorf("%w: decode classification JSON: %v", ErrMalformedOutput, err)
	}

	if classified.Language == "" {
		classified.Language = req.Language
	}
	if classified.Details == nil {
		classified.Details = map[string]any{}
	}

	return &classified, nil
}

// Translate renders text into targetLang via a plain completion call.
func (p *openAIProvider) Translate(ctx context.Context, text, targetLang string) (string, error) {
	content, err := p.chat(ctx, oaiRequest{
		Model: p.cfg.Model,
		Messages: []oaiMessage{
			{Role: "user", Content: fmt.Sprintf(translationPromptTmpl, targetLang, text)},
		},
		Temperature: 0,
		MaxTokens:   400,
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// chat performs one chat-completions round trip and returns the first
// choice's content.
func (p *openAIProvider) chat(ctx context.Context, body oaiRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("nlp: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("nlp: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("nlp: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return "", ErrRateLimit
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("nlp: read response body: %w", err)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return "", fmt.Errorf("nlp: decode API response: %w", err)
	}

	if oaiResp.Error != nil {
		return "", fmt.Errorf("nlp: API error (%s): %s", oaiResp.Error.Type, oaiResp.Error.Message)
	}

	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("nlp: no choices returned (HTTP %d)", resp.StatusCode)
	}

	return oaiResp.Choices[0].Message.Content, nil
}
