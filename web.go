/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/mysteryathlete/catalog"
	"github.com/Seednode/mysteryathlete/store"
	"github.com/Seednode/mysteryathlete/upstream"
	"github.com/julienschmidt/httprouter"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("mysteryathlete v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Version page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func storeOptions(cfg *Config) store.Options {
	opts := store.Options{
		Kind: cfg.store,
		Path: cfg.dbPath,
		URL:  cfg.dbURL,
		TTL:  cfg.redisTTL,
	}
	if cfg.store == "redis" {
		opts.URL = cfg.redisURL
	}

	return opts
}

// newBackend serves rounds either from a catalog, recording results into
// shared, or from another instance's API.
func newBackend(cfg *Config, shared store.Store) (*backend, error) {
	if cfg.upstream != "" {
		client, err := upstream.New(cfg.upstream, nil)
		if err != nil {
			return nil, err
		}

		return &backend{fetcher: client, transport: client, stats: client}, nil
	}

	var (
		cat *catalog.Catalog
		err error
	)
	if cfg.catalog != "" {
		cat, err = catalog.LoadDir(cfg.catalog)
	} else {
		cat, err = catalog.Builtin()
	}
	if err != nil {
		return nil, err
	}

	rec := catalog.NewRecorder(shared, cat.Has)
	cat.WithStats(rec)

	return &backend{
		fetcher:   cat,
		transport: rec,
		stats:     rec,
		sports:    cat.Sports(),
	}, nil
}

// drainErrors logs handler write failures.
func drainErrors(ctx context.Context, logger *slog.Logger, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			logger.Debug("response not written", "error", err)
		}
	}
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logf(cfg, "START: mysteryathlete v%s", releaseVersion)

	logger := newLogger(cfg, os.Stdout)

	shared, err := store.Open(ctx, storeOptions(cfg))
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.store, err)
	}
	defer shared.Close()

	logf(cfg, "START: Using %s store", cfg.store)

	b, err := newBackend(cfg, shared)
	if err != nil {
		return err
	}

	if cfg.upstream != "" {
		logf(cfg, "START: Using upstream %s", cfg.upstream)
	} else {
		logf(cfg, "START: Serving rounds for %s", strings.Join(b.sports, ", "))
	}

	reg := newRegistry()
	metrics := newMetrics(reg)

	mux := httprouter.New()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		logger.Error("handler panicked", "path", r.URL.Path, "panic", i)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	errs := make(chan error, 64)
	go drainErrors(ctx, logger, errs)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	mux.GET(cfg.prefix+"/", serveHomePage(cfg, b, errs))

	mux.GET(cfg.prefix+"/favicons/*favicon", serveFavicons(cfg, errs))

	mux.GET(cfg.prefix+"/favicon.ico", serveFavicons(cfg, errs))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))

	if cfg.metrics {
		registerMetricsHandler(cfg, reg, mux)
	}

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	registerAPI(cfg, b, errs, mux)

	pm := newPlayerManager(cfg, b, shared, logger, metrics)
	defer pm.Close()

	go pm.reaperLoop(ctx)

	registerPlay(cfg, pm, errs, mux)

	go func() {
		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("%s | ERROR: %v\n", time.Now().Format(logDate), err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	logf(cfg, "STOP: Waiting for pending submissions")

	return nil
}
