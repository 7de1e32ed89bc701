package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clipdeck/internal/httpapi"
	"clipdeck/internal/toolexec"
	"clipdeck/web"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI and JSON API",
	Args:  cobra.NoArgs,
	RunE:  serveRun,
}

func init() {
	serveCmd.Flags().StringVarP(&flagAddr, "addr", "a", "", "Listen address (default from config, :3001)")
}

func serveRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := os.MkdirAll(a.files.Dir(), 0755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	// Missing tools are reported per request; warn early so the operator knows.
	for _, tool := range []toolexec.Tool{a.ytdlp, a.ffmpeg} {
		if version, err := a.runner.Probe(ctx, tool); err != nil {
			logger.Warn().Str("tool", tool.Name).Msg(err.Error())
		} else {
			logger.Info().Str("tool", tool.Name).Str("version", version).Msg("tool available")
		}
	}

	hc := httpapi.Config{
		Formats:   a.formats,
		Downloads: a.downloads,
		Files:     a.files,
		Prober:    a.runner,
		Tools:     []toolexec.Tool{a.ytdlp, a.ffmpeg},
		Static:    web.Static(),
		Metrics:   a.metrics,
		Logger:    logger,
		RateLimit: cfg.Server.RateLimit,
		Burst:     cfg.Server.Burst,
	}
	if a.history != nil {
		hc.History = a.history
	}

	addr := cfg.Server.Addr
	if flagAddr != "" {
		addr = flagAddr
	}
	srv := httpapi.NewHTTPServer(addr, httpapi.New(hc).Handler())

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Str("download_dir", a.files.Dir()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
