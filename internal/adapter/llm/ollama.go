// Package llm talks to an Ollama-compatible chat backend over its streaming protocol.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"

	"docqa/config"
	"docqa/internal/adapter/transport"
	"docqa/internal/domain"
	"docqa/internal/logger"
)

const (
	chatPath            = "/api/chat"
	probeTimeout        = 5 * time.Second
	warmUpPrompt        = "hi"
	warmUpMaxTokens     = 5
	maxStreamLineBytes  = 1 << 20
	errorBodyPreviewLen = 200
)

// OllamaClient streams chat completions. The connect timeout bounds dialing only; the
// read timeout is an idle timer that restarts on every received line, so a slow but
// steady generation never times out.
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	numCtx      int
	numPredict  int
	readTimeout time.Duration
	http        *http.Client
	api         *api.Client
	log         logger.Logger
}

func NewOllamaClient(cfg config.ChatConfig, log logger.Logger) (*OllamaClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, domain.ConfigError("chat", fmt.Sprintf("invalid chat base URL %q", cfg.BaseURL))
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, domain.ConfigError("chat", "chat model is required")
	}
	if cfg.ConnectTimeout <= 0 || cfg.ReadTimeout <= 0 {
		return nil, domain.ConfigError("chat", "chat timeouts must be positive")
	}
	if log == nil {
		log = logger.Nop()
	}

	httpClient := &http.Client{Transport: transport.NewTransport(cfg.ConnectTimeout)}
	return &OllamaClient{
		baseURL:     base.String(),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		numCtx:      cfg.NumCtx,
		numPredict:  cfg.NumPredict,
		readTimeout: cfg.ReadTimeout,
		http:        httpClient,
		api:         api.NewClient(base, httpClient),
		log:         log.With("component", "chat", "model", cfg.Model),
	}, nil
}

func (c *OllamaClient) ModelName() string {
	return c.model
}

// Chat sends messages and accumulates the streamed reply.
func (c *OllamaClient) Chat(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (domain.Completion, error) {
	const op = "chat"
	failed := domain.Completion{State: domain.StateFailed}

	req, err := c.buildRequest(messages, opts)
	if err != nil {
		return failed, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return failed, fmt.Errorf("marshal chat request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var idle atomic.Bool
	timer := time.AfterFunc(c.readTimeout, func() {
		idle.Store(true)
		cancel()
	})
	defer timer.Stop()

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return failed, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	c.log.Debug("Connecting", "messages", len(req.Messages))
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if idle.Load() {
			return failed, domain.TimeoutError(op, err)
		}
		return failed, transport.Classify(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPreviewLen))
		return failed, domain.UnexpectedResponseError(op,
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(preview))))
	}

	completion := domain.Completion{State: domain.StateStreaming}
	var acc strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineBytes)
	for scanner.Scan() {
		timer.Reset(c.readTimeout)

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record api.ChatResponse
		if err := json.Unmarshal(line, &record); err != nil {
			completion.Skipped++
			continue
		}
		if record.Message.Content != "" {
			acc.WriteString(record.Message.Content)
			completion.Fragments++
		}
		if record.Done {
			completion.State = domain.StateDone
			break
		}
	}
	completion.Text = strings.TrimSpace(acc.String())

	if completion.State == domain.StateDone {
		c.log.Debug("Stream complete", "fragments", completion.Fragments, "skipped", completion.Skipped)
		return completion, nil
	}

	scanErr := scanner.Err()
	switch {
	case idle.Load():
		if completion.Fragments > 0 {
			completion.State = domain.StateTimedOutPartial
			c.log.Warn("Read timeout, returning partial response",
				"fragments", completion.Fragments, "chars", len(completion.Text))
			return completion, nil
		}
		return failed, domain.TimeoutError(op, fmt.Errorf("no data within %s", c.readTimeout))
	case ctx.Err() != nil:
		return failed, transport.Classify(op, ctx.Err())
	case scanErr != nil:
		return failed, transport.Classify(op, scanErr)
	}

	// Stream closed without a done record.
	completion.State = domain.StateDone
	c.log.Debug("Stream closed before done marker", "fragments", completion.Fragments)
	return completion, nil
}

func (c *OllamaClient) buildRequest(messages []domain.ChatMessage, opts domain.ChatOptions) (*api.ChatRequest, error) {
	if len(messages) == 0 {
		return nil, domain.InvalidInputError("chat", "at least one message is required")
	}
	apiMessages := make([]api.Message, 0, len(messages))
	for i, m := range messages {
		if !m.Role.Valid() {
			return nil, domain.InvalidInputError("chat", fmt.Sprintf("message %d has invalid role %q", i, m.Role))
		}
		apiMessages = append(apiMessages, api.Message{Role: string(m.Role), Content: m.Content})
	}

	model := opts.Model
	if model == "" {
		model = c.model
	}

	temperature := c.temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	options := map[string]any{
		"num_ctx":     c.numCtx,
		"temperature": temperature,
	}
	switch {
	case opts.MaxTokens > 0:
		options["num_predict"] = opts.MaxTokens
	case c.numPredict > 0:
		options["num_predict"] = c.numPredict
	}

	stream := true
	return &api.ChatRequest{
		Model:    model,
		Messages: apiMessages,
		Stream:   &stream,
		Options:  options,
	}, nil
}

// WarmUp sends a tiny request so the backend loads the model. Failures are only logged.
func (c *OllamaClient) WarmUp(ctx context.Context) {
	start := time.Now()
	_, err := c.Chat(ctx, []domain.ChatMessage{{Role: domain.RoleUser, Content: warmUpPrompt}},
		domain.ChatOptions{MaxTokens: warmUpMaxTokens})
	if err != nil {
		c.log.Warn("Warm-up failed", "error", err)
		return
	}
	c.log.Info("Model warmed up", "duration", time.Since(start).Round(time.Millisecond))
}

// Available reports whether the backend answers its model listing endpoint.
func (c *OllamaClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := c.api.List(ctx); err != nil {
		c.log.Debug("Backend probe failed", "error", err)
		return false
	}
	return true
}
