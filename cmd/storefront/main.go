package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/homly/storefront/internal/api"
	"github.com/homly/storefront/internal/config"
	"github.com/homly/storefront/internal/logging"
	"github.com/homly/storefront/internal/metrics"
	"github.com/homly/storefront/internal/notify"
	"github.com/homly/storefront/internal/store"
)

// shutdownGrace bounds how long in-flight requests and notifications may
// take once a shutdown signal arrives.
const shutdownGrace = 20 * time.Second

func main() {
	cfgFile := flag.String("config", "", "Path to config file (YAML)")
	addr := flag.String("addr", "", "API listen address, overrides HTTP_ADDR/PORT")
	flag.Parse()

	cfg, err := loadConfig(*cfgFile, *addr)
	if err != nil {
		log.Fatalf("failed loading config: %v", err)
	}

	cleanup := initLogging(cfg)
	defer cleanup()

	for _, w := range cfg.Validate() {
		logging.Get().Warn().Msg(w)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	initMetricsAndInflux(ctx, cfg)

	dispatcher := notify.NewFromConfig(cfg)
	srv := newServer(cfg, store.NewFileStore(cfg.StorePath), dispatcher)
	serveAndWait(srv, dispatcher)
}

// loadConfig applies defaults, then the optional file, then the environment
// and finally CLI flags.
func loadConfig(cfgFile, addr string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if cfgFile != "" {
		c, err := config.LoadConfigFromFile(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if addr != "" {
		cfg.HTTPAddr = addr
	}
	return cfg, nil
}

// initLogging initializes log subsystem from config and returns a cleanup func
func initLogging(cfg *config.Config) func() {
	cleanup, err := logging.Init(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	return cleanup
}

// initMetricsAndInflux starts optional metrics server and Influx pusher
func initMetricsAndInflux(ctx context.Context, cfg *config.Config) {
	if cfg.MetricsEnabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.PromHandler())
			mux.Handle("/status", metrics.JSONHandler())
			addr := fmt.Sprintf(":%d", cfg.MetricsPort)
			logging.Get().Info().Str("addr", addr).Msg("starting metrics server")
			if err := http.ListenAndServe(addr, mux); err != nil {
				logging.Get().Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}
	if cfg.InfluxURL != "" {
		go metrics.StartInfluxPusher(ctx, cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, cfg.InfluxInterval)
	}
}

func newServer(cfg *config.Config, s api.OrderStore, n api.OrderNotifier) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewHandler(s, n).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// serveAndWait runs the API until SIGINT/SIGTERM, then drains requests and
// background notifications.
func serveAndWait(srv *http.Server, dispatcher *notify.Dispatcher) {
	errCh := make(chan error, 1)
	go func() {
		logging.Get().Info().Str("addr", srv.Addr).Strs("channels", dispatcher.Channels()).Msg("storefront api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-errCh:
		logging.Get().Fatal().Err(err).Msg("api server failed")
	}

	logging.Get().Info().Msg("shutdown signal received, waiting for in-flight requests and notifications")
	if err := shutdown(srv, dispatcher, shutdownGrace); err != nil {
		logging.Get().Warn().Err(err).Msg("shutdown did not complete cleanly")
	}
}

func shutdown(srv *http.Server, dispatcher *notify.Dispatcher, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := dispatcher.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for notifications: %w", err)
	}
	return nil
}
