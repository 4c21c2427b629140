package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vitaliisemenov/agent-confirmation/internal/confirmation"
	"github.com/vitaliisemenov/agent-confirmation/internal/executors"
)

var (
	demoTool   string
	demoUser   string
	demoAction bool
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run one prepare/preview/confirm cycle against the configured backend",
	Long: `demo stages a single create_jira_issue action, prints its rendered
preview, and then confirms or cancels it depending on --confirm — a sanity
check that configuration, the cache backend, and the preview registry are
wired correctly end to end, the same cycle an agent runtime drives per tool
call.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		svc, err := buildService(cfg)
		if err != nil {
			return err
		}

		ctx := context.Background()
		jiraCfg := executors.JiraConfig{
			BaseURL:  "https://example.atlassian.net",
			Email:    "bot@example.com",
			APIToken: "demo-token",
		}
		toolArgs := map[string]any{
			"project":     "OPS",
			"summary":     "Demo issue from confirmctl",
			"description": "Staged by confirmctl demo for wiring verification.",
		}

		prep, err := svc.PrepareAction(ctx, confirmation.PrepareInput{
			UserID:    demoUser,
			ToolName:  demoTool,
			ToolArgs:  toolArgs,
			RiskLevel: "low",
			Executor:  executors.NewCreateJiraIssueExecutor(jiraCfg, toolArgs),
		})
		if err != nil {
			return err
		}

		fmt.Println("--- preview ---")
		fmt.Println(prep.Preview)
		fmt.Printf("action_id=%s expires_at=%s\n", prep.ActionID, prep.ExpiresAt)

		if !demoAction {
			res, err := svc.CancelAction(ctx, prep.ActionID, demoUser)
			if err != nil {
				return err
			}
			fmt.Printf("cancelled action_id=%s\n", res.ActionID)
			return nil
		}

		res, err := svc.ConfirmAction(ctx, prep.ActionID, demoUser)
		if err != nil {
			return err
		}
		encoded, _ := json.MarshalIndent(res.Result, "", "  ")
		fmt.Println("--- executor result ---")
		fmt.Println(string(encoded))
		return nil
	},
}

func init() {
	demoCmd.Flags().StringVar(&demoTool, "tool", "create_jira_issue", "tool name to stage")
	demoCmd.Flags().StringVar(&demoUser, "user", "demo-user", "user_id to stage and resolve the action as")
	demoCmd.Flags().BoolVar(&demoAction, "confirm", false, "confirm (and execute) the staged action instead of cancelling it")
}
