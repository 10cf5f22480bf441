// Package lmstudio provides an oracle.Classifier backed by an
// OpenAI-compatible completions endpoint, such as LM Studio's local
// server.
//
// Requests are plain /v1/completions calls; the prompt lists the known
// folder paths and the item's metadata, and the model is asked to answer
// with a folder path only. Calls are never retried - a non-2xx response
// is surfaced as a hard failure.
package lmstudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rbaliyan/mailsort/oracle"
)

// Compile-time check
var _ oracle.Classifier = (*Client)(nil)

// Client calls an OpenAI-compatible completions endpoint.
type Client struct {
	url  string
	opts *options
}

// New creates a client for the given completions URL, for example
// "http://localhost:1234/v1/completions".
func New(url string, opts ...Option) *Client {
	return &Client{
		url:  url,
		opts: newOptions(opts...),
	}
}

type completionRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

// Classify sends one completion request and returns the suggested folder
// path, trimmed. An empty model answer is ErrNoSuggestion; the caller
// decides the fallback.
func (c *Client) Classify(ctx context.Context, req oracle.Request) (string, error) {
	payload, err := json.Marshal(completionRequest{
		Model:     c.opts.model,
		Prompt:    c.buildPrompt(req),
		MaxTokens: c.opts.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", oracle.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", oracle.ErrRequestFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s", oracle.ErrRequestFailed, resp.StatusCode, truncate(string(body), 200))
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", oracle.ErrRequestFailed, err)
	}
	if len(parsed.Choices) == 0 {
		return "", oracle.ErrNoSuggestion
	}

	suggestion := strings.TrimSpace(parsed.Choices[0].Text)
	if suggestion == "" {
		return "", oracle.ErrNoSuggestion
	}
	c.opts.logger.Debug("oracle suggestion", "folder", suggestion)
	return suggestion, nil
}

// buildPrompt assembles the completion prompt: instructions, the known
// folder list, then the item details with the body truncated.
func (c *Client) buildPrompt(req oracle.Request) string {
	var sb strings.Builder

	sb.WriteString(c.opts.systemPrompt)
	sb.WriteString("\n\nExisting folders:\n")
	for _, f := range req.Folders {
		sb.WriteString(f)
		sb.WriteByte('\n')
	}

	sb.WriteString("\nEmail details:\n")
	fmt.Fprintf(&sb, "Subject: %s\n", req.Subject)
	fmt.Fprintf(&sb, "From: %s <%s>\n", req.SenderName, req.SenderEmail)
	fmt.Fprintf(&sb, "To: %s\n", req.To)
	if req.CC != "" {
		fmt.Fprintf(&sb, "CC: %s\n", req.CC)
	}
	if !req.ReceivedAt.IsZero() {
		fmt.Fprintf(&sb, "Received: %s\n", req.ReceivedAt.Format("2006-01-02"))
	}
	fmt.Fprintf(&sb, "Attachments: %d\n", len(req.Attachments))
	if len(req.Attachments) > 0 {
		fmt.Fprintf(&sb, "Attachment names: %s\n", strings.Join(req.Attachments, ", "))
	}
	if len(req.Labels) > 0 {
		fmt.Fprintf(&sb, "Labels: %s\n", strings.Join(req.Labels, ", "))
	}
	fmt.Fprintf(&sb, "Content: %s\n", truncate(req.Body, c.opts.bodyLimit))

	sb.WriteString("\nFolder:\nAnswer with the folder path only, no explanation.\n")
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
