package genext

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docassess/internal/textutil"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Model names accepted by the gateway.
type Model string

const (
	ModelGPT35Turbo16K Model = "gpt-35-turbo-16k"
	ModelGPT4Turbo     Model = "gpt-4-turbo-8k"
	ModelGPT4o         Model = "gpt-4o"
	ModelAda           Model = "text-embedding-ada-v002"
	ModelSonnet        Model = "anthropic.claude-3-sonnet-20240229-v1:0"
	ModelHaiku         Model = "anthropic.claude-3-haiku-20240307-v1:0"
)

const (
	statusPending = "PENDING"

	defaultSystemPrompt        = "You are a friendly AI assistant, helping humans with their questions."
	defaultMaxCompletionTokens = 400

	chatPath      = "/text-prediction/generate-chat-request"
	embeddingPath = "/embedding/generate-embedding-request"
)

// ErrPollingTimeout is returned when a request is still pending after MaxPolls.
var ErrPollingTimeout = errors.New("polling took too long, aborting")

// Config holds gateway endpoints and credentials. It is built once at
// process start and not modified afterwards.
type Config struct {
	BaseURL      string // e.g. https://host/generaid/llm/v1/tenant_id
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	APIKey       string

	// CABundlePath pins the TLS roots. When the file is missing it is
	// downloaded once from CABundleURL. Empty means system roots.
	CABundlePath string
	CABundleURL  string

	PollInterval          time.Duration
	EmbeddingPollInterval time.Duration
	MaxPolls              int
	HTTPTimeout           time.Duration
}

// Client talks to the LLM gateway's asynchronous request/poll API.
type Client struct {
	cfg   Config
	log   *slog.Logger
	Stats *LLMStats

	mu         sync.Mutex
	httpClient *http.Client

	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 600 * time.Millisecond
	}
	if cfg.EmbeddingPollInterval <= 0 {
		cfg.EmbeddingPollInterval = time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 50
	}
	if cfg.Scope == "" {
		cfg.Scope = "machine2machine"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		cfg:   cfg,
		log:   log,
		Stats: NewLLMStats(time.Hour),
		sleep: sleepCtx,
	}
}

// ChatRequest is one system prompt plus one user question.
type ChatRequest struct {
	System              string
	Question            string
	Model               Model
	Temperature         float64
	MaxCompletionTokens int
	ConversationID      string
}

// ChatResponse is the final, non-pending state of a chat request.
type ChatResponse struct {
	Status         string `json:"status"`
	ConversationID string `json:"conversation_id"`
	Completion     string `json:"completion"`
}

// EmbeddingResponse is the final state of an embedding request.
type EmbeddingResponse struct {
	Status    string          `json:"status"`
	Embedding []float64       `json:"embedding"`
	Raw       json.RawMessage `json:"-"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type modelParameters struct {
	Temperature             float64 `json:"temperature"`
	MaxCompletionTokenCount int     `json:"max_completion_token_count"`
}

type chatPayload struct {
	ModelName       Model           `json:"model_name"`
	ModelParameters modelParameters `json:"model_parameters"`
	History         []message       `json:"history"`
	ConversationID  string          `json:"conversation_id,omitempty"`
}

type embeddingPayload struct {
	ModelName Model  `json:"model_name"`
	Input     string `json:"input"`
}

// Chat submits a chat request and blocks until the gateway finishes it.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = ModelHaiku
	}
	if req.System == "" {
		req.System = defaultSystemPrompt
	}
	if req.MaxCompletionTokens <= 0 {
		req.MaxCompletionTokens = defaultMaxCompletionTokens
	}
	payload := chatPayload{
		ModelName: req.Model,
		ModelParameters: modelParameters{
			Temperature:             req.Temperature,
			MaxCompletionTokenCount: req.MaxCompletionTokens,
		},
		History: []message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Question},
		},
		ConversationID: req.ConversationID,
	}

	start := time.Now()
	body, polls, err := c.submitAndPoll(ctx, chatPath, payload, c.cfg.PollInterval)
	if err != nil {
		return nil, err
	}
	c.Stats.Record(time.Since(start), polls)

	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	c.log.Info("received answer", "model", req.Model, "polls", polls)
	return &resp, nil
}

// Embed requests an embedding vector for input.
func (c *Client) Embed(ctx context.Context, input string) (*EmbeddingResponse, error) {
	payload := embeddingPayload{ModelName: ModelAda, Input: input}
	body, _, err := c.submitAndPoll(ctx, embeddingPath, payload, c.cfg.EmbeddingPollInterval)
	if err != nil {
		return nil, err
	}
	var resp EmbeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	resp.Raw = body
	c.log.Info("received embedding response", "dimensions", len(resp.Embedding))
	return &resp, nil
}

// submitAndPoll fetches a fresh token, posts payload and polls until the
// request leaves PENDING. It returns the final body and the number of polls.
func (c *Client) submitAndPoll(ctx context.Context, path string, payload any, interval time.Duration) ([]byte, int, error) {
	hc, err := c.session(ctx)
	if err != nil {
		return nil, 0, err
	}
	token, err := c.accessToken(ctx, hc)
	if err != nil {
		return nil, 0, err
	}

	requestID, err := c.post(ctx, hc, token, path, payload)
	if err != nil {
		return nil, 0, err
	}
	return c.poll(ctx, hc, token, path+"/"+requestID, requestID, interval)
}

func (c *Client) accessToken(ctx context.Context, hc *http.Client) (string, error) {
	cc := clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     c.cfg.TokenURL,
		Scopes:       []string{c.cfg.Scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, hc))
	if err != nil {
		return "", fmt.Errorf("oauth2 authentication failed: %w", err)
	}
	c.log.Debug("received access token")
	return tok.AccessToken, nil
}

func (c *Client) post(ctx context.Context, hc *http.Client, token, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(hc, httpReq, token, "post "+path)
	if err != nil {
		return "", err
	}
	var created struct {
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("decode request id: %w", err)
	}
	if created.RequestID == "" {
		return "", fmt.Errorf("post %s: response has no request_id", path)
	}
	return created.RequestID, nil
}

func (c *Client) poll(ctx context.Context, hc *http.Client, token, path, requestID string, interval time.Duration) ([]byte, int, error) {
	c.log.Info("start polling", "request_id", requestID)
	start := time.Now()

	for attempt := 1; attempt <= c.cfg.MaxPolls; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return nil, attempt, fmt.Errorf("create request: %w", err)
		}
		body, err := c.do(hc, httpReq, token, "poll "+requestID)
		if err != nil {
			return nil, attempt, err
		}

		var state struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &state); err != nil {
			return nil, attempt, fmt.Errorf("decode poll response: %w", err)
		}
		if state.Status != statusPending {
			c.log.Info("finished polling", "request_id", requestID, "status", state.Status,
				"polls", attempt, "duration_ms", time.Since(start).Milliseconds())
			return body, attempt, nil
		}

		if attempt < c.cfg.MaxPolls {
			if err := c.sleep(ctx, interval); err != nil {
				return nil, attempt, err
			}
		}
	}
	return nil, c.cfg.MaxPolls, fmt.Errorf("request %s: %w", requestID, ErrPollingTimeout)
}

func (c *Client) do(hc *http.Client, req *http.Request, token, op string) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-apikey", c.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// session returns the HTTP client shared by all calls, building it on first
// use. Environment proxies are always bypassed.
func (c *Client) session(ctx context.Context) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient != nil {
		return c.httpClient, nil
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = nil
	if c.cfg.CABundlePath != "" {
		pool, err := loadCABundle(ctx, c.cfg.CABundlePath, c.cfg.CABundleURL, c.log)
		if err != nil {
			return nil, err
		}
		tr.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	c.httpClient = &http.Client{Transport: tr, Timeout: c.cfg.HTTPTimeout}
	return c.httpClient, nil
}

// loadCABundle reads the PEM bundle at path, downloading it from url first
// if the file does not exist yet.
func loadCABundle(ctx context.Context, path, url string, log *slog.Logger) (*x509.CertPool, error) {
	pemData, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info("CA file does not exist yet, downloading", "path", path, "url", url)
		pemData, err = downloadCABundle(ctx, path, url)
	}
	if err != nil {
		return nil, fmt.Errorf("load ca bundle: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, fmt.Errorf("load ca bundle: no certificates in %s", path)
	}
	return pool, nil
}

func downloadCABundle(ctx context.Context, path, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%s missing and no download url configured", path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download ca bundle: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read ca bundle: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Op: "download ca bundle", StatusCode: resp.StatusCode, Body: string(data)}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ca dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write ca bundle: %w", err)
	}
	return data, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StatusError is a non-2xx answer from the gateway. It is never retried.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, textutil.Truncate(e.Body, 200))
}

// Close releases idle connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
}
