package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// DefaultAnthropicVersion is sent on every request per the Messages API
// versioning scheme.
const DefaultAnthropicVersion = "2023-06-01"

// ClaudeProvider generates advisor verdicts by calling the Anthropic
// Messages API directly. It reuses the SDK's request/response param types
// for their JSON shape rather than the SDK's client, since the advisor only
// ever needs one non-streaming call and wants direct control of retries.
type ClaudeProvider struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	model     string
	maxTokens int64
}

// NewClaudeProvider builds a provider backed by the given API key, model,
// and max output tokens, talking to the default Anthropic API endpoint.
func NewClaudeProvider(apiKey, model string, maxTokens int64) *ClaudeProvider {
	return &ClaudeProvider{
		http:      newHTTPClient(),
		baseURL:   DefaultClaudeBaseURL,
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
	}
}

// WithBaseURL overrides the API endpoint, for testing or self-hosted
// gateways.
func (p *ClaudeProvider) WithBaseURL(baseURL string) *ClaudeProvider {
	p.baseURL = strings.TrimRight(baseURL, "/")
	return p
}

func (p *ClaudeProvider) Generate(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal claude request: %w", err)
	}

	url := p.baseURL + "/v1/messages"

	var lastErr error
	for attempt := 0; ; attempt++ {
		text, statusCode, err := p.doRequest(ctx, url, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !shouldRetry(statusCode, attempt) {
			break
		}
		if sleepErr := sleepBackoff(ctx, attempt); sleepErr != nil {
			return "", sleepErr
		}
	}

	return "", fmt.Errorf("claude request failed: %w", lastErr)
}

func (p *ClaudeProvider) doRequest(ctx context.Context, url string, body []byte) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", DefaultAnthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed anthropic.Message
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode claude response: %w", err)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, resp.StatusCode, nil
		}
	}

	return "", resp.StatusCode, fmt.Errorf("no text content in Claude response")
}
