package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codewiki/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <repo>",
	Short: "Watch a repository and mark articles stale on source edits",
	Long: `Watch a registered repository's working tree. When a file that
grounds one or more wiki articles changes, those articles are marked
incomplete so the next generate run rewrites them. Runs until
interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		r, err := a.resolveRepo(args[0])
		if err != nil {
			return err
		}

		logger, err := zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Watching %s/%s at %s (Ctrl-C to stop)\n", r.Organization, r.Name, r.LocalPath)
		w := watch.New(a.store, logger)
		if err := w.Run(ctx, r); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}
