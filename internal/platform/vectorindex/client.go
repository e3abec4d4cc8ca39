package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client talks to the vector index HTTP API. Store is the layer the engines
// use; Client exists so tests can stub the wire without HTTP.
type Client interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
	Delete(ctx context.Context, namespace string, ids []string, all bool) error
}

type httpClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	hc      *http.Client
}

func NewHTTPClient() (Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("VECTOR_INDEX_URL")), "/")
	if baseURL == "" {
		return nil, errors.New("missing VECTOR_INDEX_URL")
	}
	return &httpClient{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(os.Getenv("VECTOR_INDEX_API_KEY")),
		timeout: 30 * time.Second,
		hc:      &http.Client{},
	}, nil
}

type upsertRequest struct {
	Namespace string   `json:"namespace"`
	Vectors   []Vector `json:"vectors"`
}

func (c *httpClient) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	return c.do(ctx, "/vectors/upsert", upsertRequest{Namespace: namespace, Vectors: vectors}, nil)
}

type queryRequest struct {
	Namespace string    `json:"namespace"`
	Vector    []float32 `json:"vector"`
	TopK      int       `json:"top_k"`
}

type queryResponse struct {
	Matches []Match `json:"matches"`
}

func (c *httpClient) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	var resp queryResponse
	if err := c.do(ctx, "/query", queryRequest{Namespace: namespace, Vector: vector, TopK: topK}, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

type deleteRequest struct {
	Namespace string   `json:"namespace"`
	IDs       []string `json:"ids,omitempty"`
	DeleteAll bool     `json:"delete_all,omitempty"`
}

func (c *httpClient) Delete(ctx context.Context, namespace string, ids []string, all bool) error {
	return c.do(ctx, "/vectors/delete", deleteRequest{Namespace: namespace, IDs: ids, DeleteAll: all}, nil)
}

func (c *httpClient) do(ctx context.Context, path string, body any, out any) error {
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

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("vector index %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("vector index %s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(data)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return fmt.Errorf("vector index %s: status %d: %s", path, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
