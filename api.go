/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// JSON backend for rounds and results. The upstream client speaks this same
// API, so one instance can serve as another's backend.
//
// Routes:
//   - GET  $prefix/api/sports
//   - GET  $prefix/api/rounds/:sport?date=
//   - POST $prefix/api/rounds/:sport/:date/results
//   - GET  $prefix/api/rounds/:sport/:date/stats

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/mysteryathlete/catalog"
	"github.com/Seednode/mysteryathlete/round"
	"github.com/Seednode/mysteryathlete/upstream"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

const (
	maxResultBytes   = 16 << 10
	limiterPruneSize = 500
	limiterIdleAge   = 10 * time.Minute
)

type statsSource interface {
	Stats(ctx context.Context, k round.Key) (round.RoundStats, error)
}

// backend is where rounds come from and results go to.
type backend struct {
	fetcher   round.Fetcher
	transport round.Transport
	stats     statsSource
	sports    []string
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one limiter per client address and prunes idle
// entries once the map grows.
type IPRateLimiter struct {
	mu  sync.Mutex
	ips map[string]*ipEntry
	r   rate.Limit
	b   int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*ipEntry),
		r:   r,
		b:   b,
	}
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := time.Now()

	if len(i.ips) > limiterPruneSize {
		cutoff := now.Add(-limiterIdleAge)
		for k, e := range i.ips {
			if e.lastSeen.Before(cutoff) {
				delete(i.ips, k)
			}
		}
	}

	e, ok := i.ips[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(i.r, i.b)}
		i.ips[ip] = e
	}
	e.lastSeen = now

	return e.limiter
}

// clientHost is realIP without the port, so one address shares a limiter
// across connections.
func clientHost(r *http.Request) string {
	ip := realIP(r)
	if i := strings.LastIndex(ip, ":"); i > strings.LastIndex(ip, "]") {
		ip = ip[:i]
	}
	return ip
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	return w.Write(data)
}

func writeError(cfg *Config, w http.ResponseWriter, status int, err error) (int, error) {
	return writeJSON(cfg, w, status, map[string]string{"error": err.Error()})
}

// errorStatus maps backend errors onto HTTP statuses.
func errorStatus(err error) int {
	var statusErr *upstream.StatusError

	switch {
	case errors.Is(err, round.ErrRoundNotFound):
		return http.StatusNotFound
	case errors.Is(err, round.ErrInvalidKey),
		errors.Is(err, catalog.ErrInvalidResult),
		errors.Is(err, errFutureDate),
		errors.Is(err, errInvalidDate):
		return http.StatusBadRequest
	case errors.As(err, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500:
		return statusErr.Code
	case errors.As(err, &statusErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func apiKey(ps httprouter.Params) (round.Key, error) {
	k := round.Key{
		Sport:    strings.ToLower(ps.ByName("sport")),
		PlayDate: ps.ByName("date"),
	}

	return k, k.Validate()
}

func logServed(cfg *Config, what string, r *http.Request, written int, startTime time.Time) {
	logf(cfg, "SERVE: %s (%s) to %s in %s",
		what,
		humanReadableSize(int64(written)),
		realIP(r),
		time.Since(startTime).Round(time.Microsecond),
	)
}

func serveSports(cfg *Config, b *backend, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		sports := b.sports
		if sports == nil {
			sports = []string{}
		}

		written, err := writeJSON(cfg, w, http.StatusOK, map[string][]string{"sports": sports})
		if err != nil {
			errs <- err

			return
		}

		logServed(cfg, "Sports", r, written, startTime)
	}
}

func serveRound(cfg *Config, b *backend, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		sport := strings.ToLower(ps.ByName("sport"))

		written, err := func() (int, error) {
			date, err := resolveDate(r.URL.Query().Get("date"), time.Now())
			if err != nil {
				return writeError(cfg, w, http.StatusBadRequest, err)
			}

			if err := (round.Key{Sport: sport, PlayDate: date}).ValidateSelection(); err != nil {
				return writeError(cfg, w, http.StatusBadRequest, err)
			}

			rd, err := b.fetcher.FetchRound(r.Context(), sport, date)
			if err != nil {
				return writeError(cfg, w, errorStatus(err), err)
			}

			return writeJSON(cfg, w, http.StatusOK, rd)
		}()
		if err != nil {
			errs <- err

			return
		}

		logServed(cfg, "Round "+sport, r, written, startTime)
	}
}

func serveSubmitResult(cfg *Config, b *backend, limiter *IPRateLimiter, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		if !limiter.GetLimiter(clientHost(r)).Allow() {
			if _, err := writeError(cfg, w, http.StatusTooManyRequests, errors.New(http.StatusText(http.StatusTooManyRequests))); err != nil {
				errs <- err
			}

			return
		}

		k, kerr := apiKey(ps)

		written, err := func() (int, error) {
			if kerr != nil {
				return writeError(cfg, w, http.StatusBadRequest, kerr)
			}

			var res round.Result

			dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxResultBytes))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&res); err != nil {
				return writeError(cfg, w, http.StatusBadRequest, err)
			}

			if err := b.transport.SubmitResult(r.Context(), k, res); err != nil {
				return writeError(cfg, w, errorStatus(err), err)
			}

			return writeJSON(cfg, w, http.StatusAccepted, map[string]string{"status": "accepted"})
		}()
		if err != nil {
			errs <- err

			return
		}

		logServed(cfg, "Result "+k.String(), r, written, startTime)
	}
}

func serveStats(cfg *Config, b *backend, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		k, kerr := apiKey(ps)

		written, err := func() (int, error) {
			if kerr != nil {
				return writeError(cfg, w, http.StatusBadRequest, kerr)
			}

			stats, err := b.stats.Stats(r.Context(), k)
			if err != nil {
				return writeError(cfg, w, errorStatus(err), err)
			}

			return writeJSON(cfg, w, http.StatusOK, stats)
		}()
		if err != nil {
			errs <- err

			return
		}

		logServed(cfg, "Stats "+k.String(), r, written, startTime)
	}
}

func registerAPI(cfg *Config, b *backend, errs chan<- error, mux *httprouter.Router) {
	limiter := NewIPRateLimiter(rate.Limit(cfg.guessRate), cfg.guessBurst)

	mux.GET(cfg.prefix+"/api/sports", serveSports(cfg, b, errs))
	mux.GET(cfg.prefix+"/api/rounds/:sport", serveRound(cfg, b, errs))
	mux.POST(cfg.prefix+"/api/rounds/:sport/:date/results", serveSubmitResult(cfg, b, limiter, errs))
	mux.GET(cfg.prefix+"/api/rounds/:sport/:date/stats", serveStats(cfg, b, errs))
}
