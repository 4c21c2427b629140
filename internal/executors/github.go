package executors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// GitHubConfig points at the GitHub REST API (or an enterprise mirror).
type GitHubConfig struct {
	BaseURL string // e.g. "https://api.github.com"
	Token   string
	Client  Doer
}

func (c GitHubConfig) doer() Doer {
	if c.Client != nil {
		return c.Client
	}
	return NewHTTPDoer(0)
}

// NewCreateGitHubIssueExecutor builds the Executor for create_github_issue.
// repo is expected as "owner/name".
func NewCreateGitHubIssueExecutor(cfg GitHubConfig, toolArgs map[string]any) func() (any, error) {
	repo, _ := toolArgs["repo"].(string)
	title, _ := toolArgs["title"].(string)
	body, _ := toolArgs["body"].(string)

	return func() (any, error) {
		payload, err := json.Marshal(map[string]any{"title": title, "body": body})
		if err != nil {
			return nil, fmt.Errorf("marshal github issue payload: %w", err)
		}

		ctx, cancel := withTimeout(context.Background(), 0)
		defer cancel()

		url := fmt.Sprintf("%s/repos/%s/issues", cfg.BaseURL, repo)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build github request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("Authorization", "Bearer "+cfg.Token)

		resp, err := cfg.doer().Do(req)
		if err != nil {
			return nil, fmt.Errorf("github request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("github returned %d: %s", resp.StatusCode, string(raw))
		}

		var created struct {
			Number  int    `json:"number"`
			HTMLURL string `json:"html_url"`
		}
		if err := json.Unmarshal(raw, &created); err != nil {
			return nil, fmt.Errorf("decode github response: %w", err)
		}

		return map[string]any{"issue_number": created.Number, "url": created.HTMLURL}, nil
	}
}
