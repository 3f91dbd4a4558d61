package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// GeminiProvider generates advisor verdicts using the Gemini generateContent
// REST API.
type GeminiProvider struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
}

// NewGeminiProvider builds a provider backed by the given base URL, API key,
// model, and max output tokens.
func NewGeminiProvider(baseURL, apiKey, model string, maxTokens int) *GeminiProvider {
	return &GeminiProvider{
		http:      newHTTPClient(),
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	System   geminiContent   `json:"systemInstruction"`
	Config   geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) Generate(ctx context.Context, system, user string) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: user}}}},
		System:   geminiContent{Parts: []geminiPart{{Text: system}}},
		Config:   geminiGenConfig{MaxOutputTokens: p.maxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

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

	return "", fmt.Errorf("gemini request failed: %w", lastErr)
}

func (p *GeminiProvider) doRequest(ctx context.Context, url string, body []byte) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("x-goog-api-key", p.apiKey)
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

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", resp.StatusCode, fmt.Errorf("no text in Gemini response")
	}

	return parsed.Candidates[0].Content.Parts[0].Text, resp.StatusCode, nil
}
