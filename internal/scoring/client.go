package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"horse.fit/leadscout/internal/leads"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultCallTimeout = 30 * time.Second
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("missing openai api key")

// MissingAPIKeyMessage is the user-facing text for ErrMissingAPIKey.
const MissingAPIKeyMessage = "Missing OpenAI API key. Please add OPENAI_API_KEY to your environment variables."

// StatusError reports a non-success response from the completion endpoint.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("openai status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("openai status %d", e.Status)
}

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	// CallTimeout bounds every completion request.
	CallTimeout time.Duration
	HTTPClient  *http.Client
	Parser      ResponseParser
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey      string
	endpointURL string
	model       string
	temperature float64
	callTimeout time.Duration
	http        *http.Client
	parser      ResponseParser
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	parser := opts.Parser
	if parser == nil {
		parser = LabeledParser{}
	}

	return &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		endpointURL: baseURL + "/chat/completions",
		model:       model,
		temperature: temperature,
		callTimeout: callTimeout,
		http:        httpClient,
		parser:      parser,
	}
}

func (c *Client) ModelName() string {
	if c == nil {
		return ""
	}
	return c.model
}

func (c *Client) CheckAPIKey() error {
	if c == nil || c.apiKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Score asks the model to assess one post. Any error means the post is
// skipped for this run; there is no retry.
func (c *Client) Score(ctx context.Context, candidate leads.Candidate, template string) (*leads.Lead, error) {
	text, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: ResolveTemplate(template)},
			{Role: "user", Content: BuildUserPrompt(candidate)},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("score post %s: %w", candidate.RedditID, err)
	}

	lead := leads.NewLead(candidate, c.parser.Parse(text))
	return &lead, nil
}

func (c *Client) complete(ctx context.Context, payload chatRequest) (string, error) {
	if err := c.CheckAPIKey(); err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpointURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{Status: resp.StatusCode}
		var errPayload chatErrorResponse
		if unmarshalErr := json.Unmarshal(respBody, &errPayload); unmarshalErr == nil {
			statusErr.Message = strings.TrimSpace(errPayload.Error.Message)
		}
		if statusErr.Message == "" {
			statusErr.Message = strings.TrimSpace(string(respBody))
		}
		return "", statusErr
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response missing choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
