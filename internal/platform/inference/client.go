package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client is the narrow contract over the AI inference service. Calls carry no
// implicit retry: transient failures surface to the caller, which owns the
// retry policy (the job queue's backoff, in practice).
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Summarize(ctx context.Context, text string, strict bool, maxTokens int) (SummaryResult, error)
	Chat(ctx context.Context, messages []Message) (string, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SummaryResult carries the summary with the service's own grounding signal.
// Insufficient=true means the model declined to ground the summary in the
// input; callers must not treat the text as citable.
type SummaryResult struct {
	Summary      string `json:"summary"`
	Confidence   string `json:"confidence"`
	Insufficient bool   `json:"insufficient_context"`
}

type Options struct {
	BaseURL string
	APIKey  string

	Model      string
	EmbedModel string

	Timeout time.Duration
	// RequestsPerSecond bounds outbound call rate; zero disables limiting.
	RequestsPerSecond float64

	HTTPClient *http.Client
}

type client struct {
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
}

func New(opts Options) (Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      strings.TrimSpace(opts.Model),
		embedModel: strings.TrimSpace(opts.EmbedModel),
		timeout:    timeout,
		limiter:    limiter,
		httpClient: hc,
	}, nil
}

func NewFromEnv() (Client, error) {
	timeoutSeconds := intFromEnv("INFERENCE_TIMEOUT_SECONDS", 60)
	rps := floatFromEnv("INFERENCE_REQUESTS_PER_SECOND", 0)
	return New(Options{
		BaseURL:           os.Getenv("INFERENCE_BASE_URL"),
		APIKey:            os.Getenv("INFERENCE_API_KEY"),
		Model:             os.Getenv("INFERENCE_MODEL"),
		EmbedModel:        os.Getenv("INFERENCE_EMBED_MODEL"),
		Timeout:           time.Duration(timeoutSeconds) * time.Second,
		RequestsPerSecond: rps,
	})
}

type embedRequest struct {
	Model  string   `json:"model,omitempty"`
	Inputs []string `json:"inputs"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	var resp embedResponse
	if err := c.doJSON(ctx, "/v1/embed", embedRequest{Model: c.embedModel, Inputs: inputs}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Vectors) != len(inputs) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(resp.Vectors), len(inputs))
	}
	return resp.Vectors, nil
}

type summarizeRequest struct {
	Model     string `json:"model,omitempty"`
	Text      string `json:"text"`
	Strict    bool   `json:"strict"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

func (c *client) Summarize(ctx context.Context, text string, strict bool, maxTokens int) (SummaryResult, error) {
	var resp SummaryResult
	req := summarizeRequest{Model: c.model, Text: text, Strict: strict, MaxTokens: maxTokens}
	if err := c.doJSON(ctx, "/v1/summarize", req, &resp); err != nil {
		return SummaryResult{}, err
	}
	return resp, nil
}

type chatRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Content string `json:"content"`
}

func (c *client) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("chat: no messages")
	}
	var resp chatResponse
	if err := c.doJSON(ctx, "/v1/chat", chatRequest{Model: c.model, Messages: messages}, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *client) doJSON(ctx context.Context, path string, body any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("inference %s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("inference %s: status %d: %s", path, resp.StatusCode, truncate(string(data), 300))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("inference %s: decode: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func floatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
