package preview

import "fmt"

func stringParam(parameters map[string]any, key string) string {
	if v, ok := parameters[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func formatCreateJiraIssue(parameters map[string]any) string {
	return fmt.Sprintf(
		"## Create Jira Issue\n\n**Project:** %s\n**Summary:** %s\n**Description:** %s\n**Issue Type:** %s\n",
		stringParam(parameters, "project"),
		stringParam(parameters, "summary"),
		stringParam(parameters, "description"),
		orDefault(stringParam(parameters, "issue_type"), "Task"),
	)
}

func formatAddJiraComment(parameters map[string]any) string {
	return fmt.Sprintf(
		"## Add Jira Comment\n\n**Issue:** %s\n**Comment:**\n\n%s\n",
		stringParam(parameters, "issue_key"),
		stringParam(parameters, "comment"),
	)
}

func formatSendEmail(parameters map[string]any) string {
	return fmt.Sprintf(
		"## Send Email\n\n**To:** %s\n**Subject:** %s\n\n%s\n",
		stringParam(parameters, "to"),
		stringParam(parameters, "subject"),
		stringParam(parameters, "body"),
	)
}

func formatCreateGitHubIssue(parameters map[string]any) string {
	return fmt.Sprintf(
		"## Create GitHub Issue\n\n**Repository:** %s\n**Title:** %s\n\n%s\n",
		stringParam(parameters, "repo"),
		stringParam(parameters, "title"),
		stringParam(parameters, "body"),
	)
}

func formatCreateConfluencePage(parameters map[string]any) string {
	return fmt.Sprintf(
		"## Create Confluence Page\n\n**Space:** %s\n**Title:** %s\n\n%s\n",
		stringParam(parameters, "space"),
		stringParam(parameters, "title"),
		stringParam(parameters, "content"),
	)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
