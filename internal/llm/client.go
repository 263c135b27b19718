// Package llm sends single-turn prompts to an OpenAI-compatible chat completion service.
//
// Required Environment Variables:
//   - OPENAI_API_KEY: bearer credential
//
// Optional: OPENAI_BASE_URL, OPENAI_MODEL, OPENAI_TEMPERATURE (see internal/config).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"labscan/internal/logger"
)

const (
	// DefaultBaseURL is the OpenAI API root; requests go to DefaultBaseURL + "/chat/completions".
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the fixed model identifier.
	DefaultModel = openai.GPT4o

	// DefaultTemperature is the sampling temperature sent with every request.
	DefaultTemperature float32 = 0.7

	defaultHTTPTimeout = 60 * time.Second
)

// Completer turns a prompt into the model's reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config configures a Client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32

	// HTTPClient defaults to a client with a 60s timeout.
	HTTPClient *http.Client
}

// Client is a Completer backed by the chat completion endpoint. It is safe for
// concurrent use.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	log         zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger replaces the component logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a Client. Empty Config fields take the package defaults.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	const op = "NewClient"

	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &Error{Op: op, Reason: ErrMissingAPIKey}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	apiConfig.HTTPClient = capturingDoer{client: httpClient}

	c := &Client{
		api:         openai.NewClientWithConfig(apiConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		log:         logger.WithComponent("llm"),
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.temperature == 0 {
		c.temperature = DefaultTemperature
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// completionEnvelope mirrors the fields Complete depends on. Pointers distinguish a
// missing field from an empty one.
type completionEnvelope struct {
	Choices *[]struct {
		Message *struct {
			Role    *string `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the first choice's content
// with surrounding whitespace removed. There is no retry.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	const op = "Complete"

	if prompt == "" {
		return "", &Error{Op: op, Reason: ErrEmptyPrompt}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	c.log.Debug().
		Str("model", c.model).
		Int("prompt_chars", len(prompt)).
		Float32("temperature", c.temperature).
		Msg("Sending completion request")

	start := time.Now()
	callCtx, wire := withCapture(ctx)
	resp, err := c.api.CreateChatCompletion(callCtx, req)

	switch {
	case !wire.responded:
		c.log.Error().Err(err).Msg("Completion request failed without a response")
		return "", &Error{Op: op, Reason: ErrTransport, Err: err}

	case len(bytes.TrimSpace(wire.body)) == 0:
		c.log.Error().Int("status", wire.status).Msg("Completion response has no body")
		return "", &Error{Op: op, Reason: ErrEmptyResponse, Status: wire.status}
	}

	// The status code is not inspected: any body carrying an envelope is accepted.
	// The raw body stays in the log and out of the returned error.
	apiErr := err
	content, err := decodeContent(wire.body)
	if err != nil {
		if errors.Is(err, ErrDecode) {
			c.logRawBody(wire, apiErr)
		} else {
			c.log.Warn().Int("status", wire.status).Msg("Completion response has no choices")
		}
		return "", &Error{Op: op, Reason: err, Status: wire.status}
	}
	if apiErr != nil {
		c.log.Warn().Int("status", wire.status).Msg("Accepted completion from a non-success response")
	}

	c.log.Debug().
		Str("model", resp.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Int("response_chars", len(content)).
		Dur("duration", time.Since(start)).
		Msg("Received completion")

	return content, nil
}

func (c *Client) logRawBody(wire *capture, err error) {
	event := c.log.Error()
	if err != nil {
		event = event.Err(err)
	}
	event.
		Int("status", wire.status).
		Str("body", string(wire.body)).
		Msg("Could not decode completion response")
}

// decodeContent extracts the first choice's content, returning ErrDecode or ErrNoContent.
func decodeContent(body []byte) (string, error) {
	var env completionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", ErrDecode
	}
	if env.Choices == nil {
		return "", ErrDecode
	}
	for _, choice := range *env.Choices {
		if choice.Message == nil || choice.Message.Role == nil || choice.Message.Content == nil {
			return "", ErrDecode
		}
	}
	if len(*env.Choices) == 0 {
		return "", ErrNoContent
	}
	return strings.TrimSpace(*(*env.Choices)[0].Message.Content), nil
}
