// Package gemini speaks the Google generateContent API. Roles are remapped
// (assistant becomes model, system collapses into user) and content is
// nested under parts; temperature and token limits live in generationConfig.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"unichat/internal/providers"
)

type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg}
}

var _ providers.Provider = (*Client)(nil)

func (c *Client) Chat(ctx context.Context, req providers.ChatRequest) (providers.ChatResponse, error) {
	body, err := c.buildPayload(req)
	if err != nil {
		return providers.ChatResponse{}, err
	}
	endpointURL, err := c.endpointURL(req.Model)
	if err != nil {
		return providers.ChatResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return providers.ChatResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return providers.ChatResponse{}, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return providers.ChatResponse{}, fmt.Errorf("read gemini response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providers.ChatResponse{}, fmt.Errorf("gemini status %d: %s", resp.StatusCode, errorText(respBody))
	}

	text, err := parseGenerateContent(respBody)
	if err != nil {
		return providers.ChatResponse{}, fmt.Errorf("gemini: %w", err)
	}
	return providers.ChatResponse{Text: text}, nil
}

func (c *Client) buildPayload(req providers.ChatRequest) ([]byte, error) {
	contents := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		contents = append(contents, map[string]any{
			"role":  mapRole(m.Role),
			"parts": []map[string]string{{"text": m.Content}},
		})
	}

	generationConfig := map[string]any{
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		generationConfig["maxOutputTokens"] = req.MaxTokens
	}

	b, err := json.Marshal(map[string]any{
		"contents":         contents,
		"generationConfig": generationConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generateContent payload: %w", err)
	}
	return b, nil
}

// mapRole converts uniform roles to Gemini's. Gemini has no separate system
// role in this API version, so system content is submitted as user content.
func mapRole(role string) string {
	if role == providers.RoleAssistant {
		return "model"
	}
	return "user"
}

// The API key travels as a query parameter rather than a header.
func (c *Client) endpointURL(model string) (string, error) {
	base := strings.TrimSpace(c.cfg.BaseURL)
	if base == "" {
		return "", fmt.Errorf("gemini base url is empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/models/" + model + ":generateContent"
	q := u.Query()
	q.Set("key", c.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func parseGenerateContent(body []byte) (string, error) {
	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode generateContent response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty candidates in generateContent response")
	}
	if strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text) == "" {
		return "", fmt.Errorf("missing candidate text in generateContent response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func errorText(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}
