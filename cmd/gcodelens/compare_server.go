package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/1103837067/GcodeLens/pkg/compare"
)

// shutdownTimeout bounds how long in-flight comparisons may finish.
const shutdownTimeout = 10 * time.Second

var compareServerListen string

var compareServerCmd = &cobra.Command{
	Use:   "compare-server",
	Short: "Serve comparisons over HTTP",
	Long: `Run the comparison service: POST /gcode/compare accepts a multipart form
with gcodeA, gcodeB, manifestA and manifestB files and returns the
comparison as JSON. GET /health reports liveness.`,
	Args: cobra.NoArgs,
	RunE: runCompareServer,
}

func init() {
	compareServerCmd.Flags().StringVar(&compareServerListen, "listen", "", "Listen address (default from config)")
	rootCmd.AddCommand(compareServerCmd)
}

func runCompareServer(cmd *cobra.Command, args []string) error {
	addr := compareServerListen
	if addr == "" {
		addr = cfg.Server.ListenAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return serveCompare(ctx, ln)
}

// serveCompare runs the comparison service on ln until ctx is done.
func serveCompare(ctx context.Context, ln net.Listener) error {
	handler := compare.NewHandler(compare.NewLocal(), logger, cfg.Compare.Timeout)
	srv := &http.Server{
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Msg("comparison service listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
