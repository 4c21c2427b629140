package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the confirmation service from config and block until signaled",
	Long: `serve constructs a confirmation.Service the way an embedding agent
runtime would and keeps the process alive so its Redis-backed store (or
in-memory store, for local smoke testing) stays warm. It does not open any
network listener — embedders call into the Service in-process; serve exists
to validate that configuration and Redis connectivity are sound before an
agent runtime wires itself up the same way.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		svc, err := buildService(cfg)
		if err != nil {
			return err
		}
		_ = svc

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cmd.Println("confirmation service ready, backend:", cfg.Confirmation.Backend)
		<-ctx.Done()
		cmd.Println("shutting down")
		return nil
	},
}
