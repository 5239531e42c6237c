package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/1103837067/GcodeLens/pkg/serve"
)

var serveBatchSize int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming extraction worker",
	Long: `Run GcodeLens as a long-lived worker that accepts parse and layout requests
on stdin and writes results to stdout using NDJSON.

Parse requests are answered with one progress message per batch followed
by the complete program. The process runs until stdin closes, a close
request arrives or SIGTERM is received. Logs go to stderr.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&serveBatchSize, "batch-size", 0, "Lines per batch (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := serve.NewServer(newScheduler(serveBatchSize), logger, cmd.InOrStdin(), cmd.OutOrStdout())
	logger.Info().Str("version", serve.Version).Msg("worker ready")
	return srv.Run(ctx)
}
