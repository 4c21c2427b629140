package executors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateJiraIssueExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "tok", pass)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"key": "OPS-42", "id": "10042"})
	}))
	defer srv.Close()

	cfg := JiraConfig{BaseURL: srv.URL, Email: "bot@example.com", APIToken: "tok"}
	exec := NewCreateJiraIssueExecutor(cfg, map[string]any{
		"project": "OPS", "summary": "fix it", "description": "details",
	})

	result, err := exec()
	require.NoError(t, err)

	m, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "OPS-42", m["issue_key"])
	assert.Equal(t, srv.URL+"/browse/OPS-42", m["url"])
}

func TestCreateJiraIssueExecutor_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("unauthorized"))
	}))
	defer srv.Close()

	cfg := JiraConfig{BaseURL: srv.URL, Email: "bot@example.com", APIToken: "bad"}
	exec := NewCreateJiraIssueExecutor(cfg, map[string]any{"project": "OPS", "summary": "x"})

	_, err := exec()
	require.Error(t, err)
}

func TestSendEmailExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key123", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := EmailConfig{Endpoint: srv.URL, APIKey: "key123", From: "agent@example.com"}
	exec := NewSendEmailExecutor(cfg, map[string]any{
		"to": "user@example.com", "subject": "hi", "body": "hello",
	})

	result, err := exec()
	require.NoError(t, err)
	m := result.(map[string]any)
	assert.Equal(t, "sent", m["status"])
}

func TestCreateGitHubIssueExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/issues", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"number": 7, "html_url": "https://github.com/acme/widgets/issues/7"})
	}))
	defer srv.Close()

	cfg := GitHubConfig{BaseURL: srv.URL, Token: "ghp_x"}
	exec := NewCreateGitHubIssueExecutor(cfg, map[string]any{
		"repo": "acme/widgets", "title": "bug", "body": "steps to reproduce",
	})

	result, err := exec()
	require.NoError(t, err)
	m := result.(map[string]any)
	assert.EqualValues(t, 7, m["issue_number"])
}
