package ai

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

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// ChatOptions tunes a single completion call. The zero value means provider
// defaults; the intent gate pins Temperature to 0 and JSONOnly to true.
type ChatOptions struct {
	Temperature *float64
	MaxTokens   int
	JSONOnly    bool
}

// Usage carries the provider-reported token accounting for one call.
type Usage struct {
	TokensIn  int
	TokensOut int
}

// Client speaks the OpenAI-compatible chat/embeddings wire shape. Any vendor
// exposing that surface can sit behind it.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *Client) requestBody(cfg ChatConfig, messages []ChatMessage, opts ChatOptions, stream bool) map[string]any {
	body := map[string]any{
		"model":    cfg.Model,
		"messages": messages,
		"stream":   stream,
	}
	if opts.Temperature != nil {
		body["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		body["max_tokens"] = opts.MaxTokens
	}
	if opts.JSONOnly {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	if stream {
		body["stream_options"] = map[string]bool{"include_usage": true}
	}
	return body
}

func (c *Client) newRequest(ctx context.Context, cfg ChatConfig, path string, body any) (*http.Request, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal llm request failed: %w", err)
	}
	url := strings.TrimRight(cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	return req, nil
}

// Complete performs a blocking chat completion.
func (c *Client) Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage, opts ChatOptions) (string, Usage, error) {
	req, err := c.newRequest(ctx, cfg, "/chat/completions", c.requestBody(cfg, messages, opts, false))
	if err != nil {
		return "", Usage{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", Usage{}, fmt.Errorf("llm response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("empty llm choices")
	}
	usage := Usage{TokensIn: parsed.Usage.PromptTokens, TokensOut: parsed.Usage.CompletionTokens}
	return parsed.Choices[0].Message.Content, usage, nil
}

// StreamComplete performs a streaming chat completion, invoking onChunk for
// every text delta in arrival order. It returns the concatenated text. An
// onChunk error aborts the stream and is returned as-is, so callers can
// detect client disconnects.
func (c *Client) StreamComplete(
	ctx context.Context,
	cfg ChatConfig,
	messages []ChatMessage,
	opts ChatOptions,
	onChunk func(chunk string) error,
) (string, Usage, error) {
	req, err := c.newRequest(ctx, cfg, "/chat/completions", c.requestBody(cfg, messages, opts, true))
	if err != nil {
		return "", Usage{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("llm stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", Usage{}, fmt.Errorf("llm stream status %d: %s", resp.StatusCode, string(raw))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var full strings.Builder
	var usage Usage
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
			Usage *struct {
				PromptTokens     int `json:"prompt_tokens"`
				CompletionTokens int `json:"completion_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if chunk.Usage != nil {
			usage.TokensIn = chunk.Usage.PromptTokens
			usage.TokensOut = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		text := chunk.Choices[0].Delta.Content
		if text == "" {
			continue
		}

		full.WriteString(text)
		if err := onChunk(text); err != nil {
			return full.String(), usage, err
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), usage, fmt.Errorf("scan llm stream failed: %w", err)
	}
	return full.String(), usage, nil
}

// StripFences removes markdown code fences some providers wrap around JSON
// output despite the response-format hint.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
