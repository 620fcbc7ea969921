package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/alzaheer/privacyshield/internal/config"
	"github.com/alzaheer/privacyshield/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the de-identification HTTP API",
		Long: `Serve the HTTP API:

  GET  /health               liveness
  GET  /v1/entities          supported PII entity types
  POST /v1/deidentify/pdf    PDF in, de-identified PDF out
  POST /v1/deidentify/text   {"text": ...} in, redacted text and entities out
  POST /v1/deidentify/image  PNG/JPEG in, face-blurred JPEG out
  POST /v1/faces/stats       PNG/JPEG in, detected faces out

Uploads are either the raw request body or the "file" part of a
multipart form.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			p, err := buildPipeline(cfg)
			if err != nil {
				return err
			}
			srv := server.NewServer(p.assembler, p.analyzer, p.blurrer,
				server.WithDefaults(redactOptions(cfg)),
				server.WithRateLimit(cfg.Server.RateLimit, cfg.Server.Burst),
				server.WithMaxUploadBytes(cfg.MaxUploadBytes()),
				server.WithVersion(resolvedVersion()),
			)
			return listenAndServe(ctx, cfg, srv.Routes())
		},
	}
	cmd.Flags().String("addr", config.DefaultServerAddr, "listen address")
	_ = a.v.BindPFlag(config.KeyServerAddr, cmd.Flags().Lookup("addr"))
	return cmd
}

func listenAndServe(ctx context.Context, cfg *config.Config, h http.Handler) error {
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      30 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("analyzer", cfg.Analyzer.Backend).
		Str("face_cascade", cascadeName(cfg)).
		Float64("rate_limit", cfg.Server.RateLimit).
		Msg("privacyshield_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
