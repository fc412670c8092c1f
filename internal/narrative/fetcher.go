// Package narrative generates market analyses through the OpenAI Responses
// API with web search enabled, and caches them per quantised market snapshot.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"coinpulse/internal/models"
)

var (
	ErrMissingCredential = errors.New("narrative: missing API credential")
	ErrMalformedResponse = errors.New("narrative: unexpected response shape")
	ErrEmptyContent      = errors.New("narrative: response contained no text")
)

const (
	DefaultModel   = openai.GPT4oMini
	webSearchTool  = "web_search_preview"
	maxErrorBody   = 4096
	defaultTimeout = 60 * time.Second
)

// Config holds the endpoint settings. APIKey comes from OPENAI_API_KEY.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Store is the analysis cache, satisfied by cache.Freshness.
type Store interface {
	Get(key string) (models.Entry[models.Narrative], bool)
	Put(key string, n models.Narrative)
}

type Fetcher struct {
	cfg        Config
	httpClient *http.Client
	store      Store
	logger     *slog.Logger
	now        func() time.Time
}

func NewFetcher(cfg Config, store Store, logger *slog.Logger) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openai.DefaultConfig("").BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// Enabled reports whether a credential is configured.
func (f *Fetcher) Enabled() bool {
	return f.cfg.APIKey != ""
}

// Fetch returns a cached narrative for the request's key or generates a new
// one. Any failure is terminal for the call and nothing is cached.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (models.Narrative, error) {
	key := CacheKey(req, f.now())
	if entry, ok := f.store.Get(key); ok {
		f.logger.Debug("narrative cache hit", "key", key)
		return entry.Payload, nil
	}

	if f.cfg.APIKey == "" {
		return models.Narrative{}, ErrMissingCredential
	}

	started := f.now()
	resp, err := f.post(ctx, BuildPrompt(req))
	if err != nil {
		f.logger.Warn("narrative request failed", "symbol", req.Symbol, "error", err)
		return models.Narrative{}, err
	}

	text, sources, err := parseResponse(resp)
	if err != nil {
		f.logger.Warn("narrative response rejected", "symbol", req.Symbol, "error", err)
		return models.Narrative{}, err
	}

	n := models.Narrative{
		ID:          uuid.NewString(),
		Text:        text,
		Sources:     sources,
		IsReal:      true,
		GeneratedAt: f.now(),
	}
	f.store.Put(key, n)
	f.logger.Info("narrative generated", "symbol", req.Symbol, "id", n.ID,
		"sources", len(sources), "chars", len(text), "took", f.now().Sub(started))
	return n, nil
}

type tool struct {
	Type string `json:"type"`
}

type responsesRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Tools []tool `json:"tools"`
}

func (f *Fetcher) post(ctx context.Context, prompt string) ([]byte, error) {
	payload, err := json.Marshal(responsesRequest{
		Model: f.cfg.Model,
		Input: prompt,
		Tools: []tool{{Type: webSearchTool}},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.BaseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("narrative request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, upstreamError(resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("narrative response: %w", err)
	}
	return body, nil
}

// upstreamError decodes the OpenAI error envelope when there is one and
// falls back to the status text.
func upstreamError(status int, body []byte) *openai.APIError {
	var envelope openai.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		envelope.Error.HTTPStatusCode = status
		return envelope.Error
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &openai.APIError{
		HTTPStatusCode: status,
		Message:        msg,
		Type:           "upstream_error",
	}
}
