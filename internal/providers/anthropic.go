package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AnthropicLLM implements LLMPort by streaming the Anthropic Messages API
// directly over SSE — the `anthropic` engine named in spec §6.
type AnthropicLLM struct {
	apiKey       string
	url          string
	defaultModel string
	client       *http.Client
}

// NewAnthropicLLM builds an Anthropic streaming client against url using
// apiKey, defaulting turns that don't request a model to defaultModel.
func NewAnthropicLLM(apiKey, url, defaultModel string, poolSize int) *AnthropicLLM {
	return &AnthropicLLM{
		apiKey:       apiKey,
		url:          url,
		defaultModel: defaultModel,
		client:       NewPooledHTTPClient(poolSize, 120*time.Second),
	}
}

// GenerateStream implements LLMPort.
func (c *AnthropicLLM) GenerateStream(ctx context.Context, systemPrompt, userText string, opts LLMOptions) (<-chan LLMChunk, error) {
	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     model,
		MaxTokens: opts.MaxTokens,
		Stream:    true,
		System:    systemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: userText}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ProviderUnavailable{Provider: "anthropic", Reason: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &ProviderUnavailable{Provider: "anthropic", Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, errBody)}
	}

	out := make(chan LLMChunk, 8)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		consumeAnthropicStream(ctx, resp.Body, out)
	}()
	return out, nil
}

func consumeAnthropicStream(ctx context.Context, body io.Reader, out chan<- LLMChunk) {
	scanner := bufio.NewScanner(body)
	var eventType string
	var accumulated strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "event: ") {
			eventType = strings.TrimPrefix(line, "event: ")
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if eventType == "message_stop" {
			select {
			case out <- LLMChunk{Accumulated: accumulated.String(), Finished: true}:
			case <-ctx.Done():
			}
			return
		}

		if eventType != "content_block_delta" {
			continue
		}
		var delta anthropicDeltaEvent
		if json.Unmarshal([]byte(data), &delta) != nil {
			continue
		}
		if delta.Delta.Type != "text_delta" || delta.Delta.Text == "" {
			continue
		}
		accumulated.WriteString(delta.Delta.Text)
		select {
		case out <- LLMChunk{Delta: delta.Delta.Text, Accumulated: accumulated.String()}:
		case <-ctx.Done():
			return
		}
	}

	// Scanner loop ended without a message_stop event: either a transport
	// error or the connection closed early. Either way, the turn failed.
	err := scanner.Err()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	select {
	case out <- LLMChunk{Accumulated: accumulated.String(), Err: err}:
	case <-ctx.Done():
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Stream    bool               `json:"stream"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicDeltaEvent struct {
	Delta anthropicDelta `json:"delta"`
}

type anthropicDelta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}
