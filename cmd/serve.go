package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/abhisek/chatterbox/internal/api"
	"github.com/abhisek/chatterbox/internal/config"
	"github.com/abhisek/chatterbox/internal/gate"
	"github.com/abhisek/chatterbox/internal/llm"
	"github.com/abhisek/chatterbox/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the safety gate HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		st, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		var repo store.EventRepo
		if st != nil {
			defer st.Close()
			repo = st.EventRepo()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		provider, err := buildProvider(ctx, cfg, repo, logger)
		if err != nil {
			return err
		}
		factory, err := gate.NewFactory(cfg, provider, logger)
		if err != nil {
			return fmt.Errorf("build gate: %w", err)
		}

		return serve(ctx, cfg.Server, api.NewServer(api.Options{
			Sessions:       factory,
			Events:         repo,
			Logger:         logger,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}), logger)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}

// buildProvider returns nil when no LLM stage is enabled.
func buildProvider(ctx context.Context, cfg config.Config, repo store.EventRepo, logger *slog.Logger) (llm.Provider, error) {
	if !cfg.LLMEnabled() {
		return nil, nil
	}
	provider, err := llm.NewProvider(ctx, cfg.LLM, repo, logger)
	if err != nil {
		return nil, fmt.Errorf("build LLM provider: %w", err)
	}
	logger.Info("LLM stages enabled",
		"provider", cfg.LLM.Provider,
		"similarity", cfg.Gate.LLMSimilarity,
		"composer", cfg.Gate.LLMComposer,
		"intent", cfg.Gate.LLMIntent,
	)
	return provider, nil
}

func serve(ctx context.Context, cfg config.ServerConfig, srv *api.Server, logger *slog.Logger) error {
	gin.SetMode(gin.ReleaseMode)
	httpSrv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("starting server", "addr", cfg.Addr)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	select {
	case err := <-listenErrCh:
		srv.Close()
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	// Shutdown does not close hijacked stream connections.
	srv.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
