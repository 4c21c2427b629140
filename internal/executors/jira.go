package executors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// JiraConfig carries the fixed (non-per-action) coordinates for a Jira
// instance: the confirmation core never sees these, only the Executor
// closures built from them.
type JiraConfig struct {
	BaseURL  string
	Email    string
	APIToken string
	Client   Doer
}

func (c JiraConfig) doer() Doer {
	if c.Client != nil {
		return c.Client
	}
	return NewHTTPDoer(0)
}

// NewCreateJiraIssueExecutor builds the Executor PrepareAction stages for a
// create_jira_issue action, grounded on the fields the original jira.py tool
// accepts (project key, summary, description, issue type).
func NewCreateJiraIssueExecutor(cfg JiraConfig, toolArgs map[string]any) func() (any, error) {
	project, _ := toolArgs["project"].(string)
	summary, _ := toolArgs["summary"].(string)
	description, _ := toolArgs["description"].(string)
	issueType, _ := toolArgs["issue_type"].(string)
	if issueType == "" {
		issueType = "Task"
	}

	return func() (any, error) {
		body := map[string]any{
			"fields": map[string]any{
				"project":     map[string]string{"key": project},
				"summary":     summary,
				"description": description,
				"issuetype":   map[string]string{"name": issueType},
			},
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal jira issue payload: %w", err)
		}

		ctx, cancel := withTimeout(context.Background(), 0)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/rest/api/2/issue", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build jira request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(cfg.Email, cfg.APIToken)

		resp, err := cfg.doer().Do(req)
		if err != nil {
			return nil, fmt.Errorf("jira request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("jira returned %d: %s", resp.StatusCode, string(raw))
		}

		var created struct {
			Key string `json:"key"`
			ID  string `json:"id"`
		}
		if err := json.Unmarshal(raw, &created); err != nil {
			return nil, fmt.Errorf("decode jira response: %w", err)
		}

		return map[string]any{
			"issue_key": created.Key,
			"issue_id":  created.ID,
			"url":       fmt.Sprintf("%s/browse/%s", cfg.BaseURL, created.Key),
		}, nil
	}
}

// NewAddJiraCommentExecutor builds the Executor for add_jira_comment.
func NewAddJiraCommentExecutor(cfg JiraConfig, toolArgs map[string]any) func() (any, error) {
	issueKey, _ := toolArgs["issue_key"].(string)
	comment, _ := toolArgs["comment"].(string)

	return func() (any, error) {
		body := map[string]any{"body": comment}
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal jira comment payload: %w", err)
		}

		ctx, cancel := withTimeout(context.Background(), 0)
		defer cancel()

		url := fmt.Sprintf("%s/rest/api/2/issue/%s/comment", cfg.BaseURL, issueKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build jira comment request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(cfg.Email, cfg.APIToken)

		resp, err := cfg.doer().Do(req)
		if err != nil {
			return nil, fmt.Errorf("jira comment request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("jira returned %d: %s", resp.StatusCode, string(raw))
		}

		return map[string]any{"issue_key": issueKey, "status": "commented"}, nil
	}
}
