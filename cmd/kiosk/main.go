package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/adapter/audio"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/adapter/display"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/adapter/httpserver"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/app"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/config"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/eventloop"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/logging"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/version"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupAudio falls back to a silent sink when no player is usable. The runtime
// keeps working and raises NO_AUDIO_CONTEXT instead.
func setupAudio(cfg *config.Config) (domain.AudioSink, bool) {
	sink, err := audio.New(cfg.AudioPlayerCmd)
	if err != nil {
		slog.Warn("Audio player unavailable, announcements will be silent", "error", err)
		return sink, true
	}
	return sink, false
}

func runGracefulShutdown(ctx context.Context, kiosk *app.Kiosk, srv *httpserver.Server, hub *display.Hub, stopLoop context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer close(done)

		select {
		case sig := <-sigChan:
			slog.Info("Shutdown signal received, cleaning up...", "signal", sig.String())
		case <-ctx.Done():
			slog.Warn("Runtime exited, cleaning up...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := kiosk.Stop(shutdownCtx); err != nil && !errors.Is(err, domain.ErrLoopStopped) {
			slog.Error("Kiosk stop error", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		hub.Stop()
		stopLoop()
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Kiosk starting",
		"env", cfg.AppEnv,
		"version", info.Version,
		"commit", info.Commit,
		"backend", cfg.BackendHost,
		"http_addr", cfg.HTTPAddr,
	)

	sink, audioUnavailable := setupAudio(cfg)
	if c, ok := sink.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	loop := eventloop.New(clock)
	hub := display.NewHub(clock, cfg.DisplayMaxClients)

	kioskCfg := app.NewConfig(cfg, audioUnavailable)
	kioskCfg.Channels.Header = http.Header{"User-Agent": []string{version.UserAgent()}}
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.ChannelHandshake,
	}
	kiosk := app.New(loop, dialer, hub, sink, kioskCfg)

	srv := httpserver.NewServer(httpserver.Options{
		Addr:          cfg.HTTPAddr,
		RateLimit:     cfg.APIRateLimit,
		RateBurst:     cfg.APIRateBurst,
		AllowedOrigin: httpserver.NewCheckOrigin(cfg.AppEnv == "development"),
		HealthChecks: []httpserver.HealthCheck{{
			Name: "display_hub",
			Check: func(context.Context) error {
				_, err := hub.Snapshot()
				return err
			},
		}},
	}, kiosk, hub)

	loopCtx, stopLoop := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(loopCtx)

	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		startCtx, cancel := context.WithTimeout(gctx, shutdownTimeout)
		defer cancel()
		return kiosk.Start(startCtx)
	})
	g.Go(srv.Start)

	done := runGracefulShutdown(gctx, kiosk, srv, hub, stopLoop)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Kiosk runtime error", "error", err)
		stopLoop()
		<-done
		os.Exit(1)
	}

	<-done
	slog.Info("Kiosk stopped")
}
