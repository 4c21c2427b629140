// Package preview renders a human-readable markdown preview for a pending
// action from its integration, tool name, and parameters, so the agent
// runtime can show it to a user before they confirm.
package preview

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Formatter renders parameters into a markdown preview string. A Formatter
// must be pure: it reads parameters and returns text, nothing else.
type Formatter func(parameters map[string]any) string

type formatterKey struct {
	integration string
	toolName    string
}

// Registry maps (integration, tool_name) pairs to Formatters, falling back
// to a generic renderer on a miss.
type Registry struct {
	mu         sync.RWMutex
	formatters map[formatterKey]Formatter
	logger     *slog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{formatters: make(map[formatterKey]Formatter), logger: logger}
}

// Register installs (or replaces) the formatter for a given integration and
// tool name. Both are matched case-insensitively.
func (r *Registry) Register(integration, toolName string, formatter Formatter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formatters[key(integration, toolName)] = formatter
}

// Format renders parameters for (integration, toolName), falling back to a
// generic listing when no formatter is registered.
func (r *Registry) Format(integration, toolName string, parameters map[string]any) string {
	r.mu.RLock()
	formatter, ok := r.formatters[key(integration, toolName)]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("no preview formatter registered, using generic fallback", "integration", integration, "tool_name", toolName)
		return genericPreview(integration, toolName, parameters)
	}
	return formatter(parameters)
}

func key(integration, toolName string) formatterKey {
	return formatterKey{integration: strings.ToLower(integration), toolName: strings.ToLower(toolName)}
}

// genericPreview renders a stable, deterministic "### tool_name (integration)"
// heading followed by a sorted key: value listing. Used whenever no
// dedicated formatter has been registered for a tool.
func genericPreview(integration, toolName string, parameters map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s (%s)\n\n", toolName, integration)

	keys := make([]string, 0, len(parameters))
	for k := range parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&b, "- **%s:** %v\n", k, parameters[k])
	}
	return b.String()
}

// DefaultRegistry returns a Registry pre-populated with formatters for the
// integrations named in the original agent tool suite: Jira, email,
// GitHub, and Confluence.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register("jira", "create_jira_issue", formatCreateJiraIssue)
	r.Register("jira", "add_jira_comment", formatAddJiraComment)
	r.Register("email", "send_email", formatSendEmail)
	r.Register("github", "create_github_issue", formatCreateGitHubIssue)
	r.Register("confluence", "create_confluence_page", formatCreateConfluencePage)
	return r
}
