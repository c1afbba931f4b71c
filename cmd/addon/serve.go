package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ogero/stremio-autoarabic/internal"
	"github.com/ogero/stremio-autoarabic/internal/cache"
	"github.com/ogero/stremio-autoarabic/internal/common"
	"github.com/ogero/stremio-autoarabic/internal/config"
	"github.com/ogero/stremio-autoarabic/internal/loki"
	"github.com/ogero/stremio-autoarabic/pkg/imdb"
	"github.com/ogero/stremio-autoarabic/pkg/opensubtitles"
	"github.com/ogero/stremio-autoarabic/pkg/subdl"
	"github.com/ogero/stremio-autoarabic/pkg/translate"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	statsChannel      = "stats"
	statsPollInterval = 5 * time.Minute
)

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the addon HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {

	shutdownLogger, err := common.InitLogger(serviceName, internal.AddonVersion, cfg.ServiceEnvironment, cfg.OTLPExporterEndpoint, common.ParseLevel(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("failed to common.InitLogger: %w", err)
	}
	defer func() { _ = shutdownLogger(context.Background()) }()

	shutdownInstrumentation, err := common.InitInstrumentation(serviceName, internal.AddonVersion, cfg.ServiceEnvironment, cfg.OTLPExporterEndpoint)
	if err != nil {
		return fmt.Errorf("failed to common.InitInstrumentation: %w", err)
	}
	defer shutdownInstrumentation(context.Background())

	c, err := cache.Open(cfg.CachePath, common.Log)
	if err != nil {
		return fmt.Errorf("failed to cache.Open: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			common.Log.Error("Failed to cache.Close", "err", err)
		}
	}()

	providers, err := newProviders(cfg)
	if err != nil {
		return err
	}

	statsHub, err := internal.NewStatsHub(statsChannel)
	if err != nil {
		return fmt.Errorf("failed to internal.NewStatsHub: %w", err)
	}
	if cfg.LokiHost != "" {
		go statsHub.StartPollingStats(ctx, loki.NewLoki(cfg.LokiHost, serviceName), statsPollInterval)
	}

	translator := translate.New(translate.NewGoogle(cfg.TranslateBaseURL), translate.Options{
		Concurrency: cfg.TranslateConcurrency,
	})

	svc := internal.NewAddonService(
		internal.NewSubtitleFetcher(providers...),
		translator,
		imdb.NewStalkrIMDB(),
		c,
		statsHub,
		cfg.StripAds,
	)

	app, err := internal.NewApp(svc, statsHub, cfg.AddonHost, cfg.TestSubtitle)
	if err != nil {
		return fmt.Errorf("failed to internal.NewApp: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ServerListenAddr,
		Handler:           otelhttp.NewHandler(app.Router(), serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		names := make([]string, 0, len(providers))
		for _, p := range providers {
			names = append(names, p.Name())
		}
		common.Log.Info("Listening", "addr", cfg.ServerListenAddr, "providers", names, "cache", c.Enabled())
		common.Log.Info("Install at", "url", fmt.Sprintf("%s/manifest.json", cfg.AddonHost))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to http.Server.ListenAndServe: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.Log.Error("Failed to http.Server.Shutdown", "err", err)
	}
	if err := statsHub.Shutdown(shutdownCtx); err != nil {
		common.Log.Error("Failed to internal.StatsHub.Shutdown", "err", err)
	}

	common.Log.Info("Bye!")

	return nil
}

// newProviders returns the subtitle providers in lookup order. Without an OpenSubtitles API key the keyless
// legacy API is used instead.
func newProviders(cfg *config.Config) ([]internal.SubtitleProvider, error) {
	var providers []internal.SubtitleProvider

	if cfg.OpenSubtitlesAPIKey != "" {
		client, err := opensubtitles.NewOpenSubtitles(cfg.OpenSubtitlesAPIKey, cfg.OpenSubtitlesUserAgent)
		if err != nil {
			return nil, fmt.Errorf("failed to opensubtitles.NewOpenSubtitles: %w", err)
		}
		providers = append(providers, internal.NewOpenSubtitlesProvider("opensubtitles", client))
	} else {
		providers = append(providers, internal.NewOpenSubtitlesProvider("opensubtitles-legacy", opensubtitles.NewLegacyOpenSubtitles()))
	}

	if cfg.SubDLAPIKey != "" {
		client, err := subdl.NewSubDL(cfg.SubDLAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to subdl.NewSubDL: %w", err)
		}
		providers = append(providers, internal.NewSubDLProvider(client))
	}

	return providers, nil
}
