package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"venue-router/internal/cfg"
	"venue-router/internal/marketdata"
	"venue-router/internal/metrics"
	"venue-router/internal/router"
	"venue-router/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	rtr := router.New(c.ModelPath, mw)
	// Load the registry at startup so a broken artifact is visible
	// immediately, not on the first routing call.
	if _, err := rtr.Registry(); err != nil {
		log.Warn().Err(err).Str("model_path", c.ModelPath).Msg("model registry unavailable, routing calls will fail until the trainer produces an artifact")
	}

	quotes := startQuoteFeed(ctx, c, mw)

	startMetricsServer(ctx, c)

	var decisions router.DecisionWriter
	if store != nil {
		decisions = &decisionRecorder{store: store, metrics: mw}
	}

	srv := router.NewServer(rtr, quotes, decisions, c.ListenPort)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("route server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel, srv)
}

// decisionRecorder persists routing decisions and counts them.
type decisionRecorder struct {
	store   *storage.Store
	metrics *metrics.Wrapper
}

func (d *decisionRecorder) StoreDecision(rec storage.DecisionRecord) error {
	if err := d.store.StoreDecision(rec); err != nil {
		d.metrics.ErrorsTotalInc()
		return err
	}
	d.metrics.DecisionsStoredInc()
	return nil
}

// quoteSource resolves the latest NBBO from the streaming cache, falling
// back to a REST snapshot for symbols the feed has not seen.
type quoteSource struct {
	cache *marketdata.Cache
	rest  *marketdata.Client
}

func (q *quoteSource) Latest(symbol string) (marketdata.Quote, bool) {
	if quote, ok := q.cache.Latest(symbol); ok {
		return quote, true
	}
	if q.rest == nil {
		return marketdata.Quote{}, false
	}
	quote, err := q.rest.Snapshot(symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("quote snapshot failed")
		return marketdata.Quote{}, false
	}
	q.cache.Update(quote)
	return quote, true
}

// initializeStorage initializes storage if DATA_PATH is configured.
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return nil
	}
	return store
}

// startQuoteFeed starts the NBBO stream when symbols are configured and
// returns the quote source the route server should use, or nil when no
// market data is configured.
func startQuoteFeed(ctx context.Context, c cfg.Settings, mw *metrics.Wrapper) router.QuoteSource {
	if len(c.Symbols) == 0 {
		return nil
	}

	cache := marketdata.NewCache()
	quotes := make(chan marketdata.Quote, 64)
	errors := make(chan error, 32)

	ws := marketdata.NewWS(c.QuoteWsURL)
	go func() {
		if err := ws.Stream(ctx, c.Symbols, quotes, errors, c.Ping); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("quote stream ended")
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case q := <-quotes:
				cache.Update(q)
				mw.QuotesReceivedInc()
			case err := <-errors:
				log.Error().Err(err).Msg("quote feed error")
				mw.WSReconnectsInc()
				mw.ErrorsTotalInc()
			}
		}
	}()

	var rest *marketdata.Client
	if c.QuoteBaseURL != "" {
		rest = marketdata.NewREST(c.QuoteBaseURL, c.RESTTimeout)
	}

	return &quoteSource{cache: cache, rest: rest}
}

// startMetricsServer starts the Prometheus metrics HTTP server.
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// waitForShutdown waits for shutdown signals and drains the route server.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, srv *router.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("route server shutdown failed")
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("shutdown complete")
	case <-shutdownCtx.Done():
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
