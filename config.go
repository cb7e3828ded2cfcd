/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Seednode/mysteryathlete/round"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind              string
	catalog           string
	closeGuessPolicy  string
	copiedBannerDelay time.Duration
	dbPath            string
	dbURL             string
	guessBurst        int
	guessRate         float64
	metrics           bool
	photoReturnDelay  time.Duration
	playerTimeout     time.Duration
	port              int
	prefix            string
	profile           bool
	redisTTL          time.Duration
	redisURL          string
	store             string
	submitTimeout     time.Duration
	tlsCert           string
	tlsKey            string
	upstream          string
	verbose           bool
	version           bool

	policy round.Policy
}

var storeKinds = []string{"memory", "sqlite", "postgres", "mysql", "redis"}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}

	c.store = strings.ToLower(c.store)
	switch c.store {
	case "memory":
	case "sqlite":
		if c.dbPath == "" {
			return errors.New("--db-path is required for --store sqlite")
		}
	case "postgres", "mysql":
		if c.dbURL == "" {
			return fmt.Errorf("--db-url is required for --store %s", c.store)
		}
	case "redis":
		if c.redisURL == "" {
			return errors.New("--redis-url is required for --store redis")
		}
	default:
		return fmt.Errorf("invalid store %q (must be one of %s)", c.store, strings.Join(storeKinds, ", "))
	}

	if c.upstream != "" && c.catalog != "" {
		return errors.New("--catalog and --upstream are mutually exclusive")
	}
	if c.upstream != "" {
		if u, err := url.Parse(c.upstream); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid upstream url: %q", c.upstream)
		}
	}

	policy, err := round.ParsePolicy(c.closeGuessPolicy)
	if err != nil {
		return err
	}
	c.policy = policy

	if c.guessRate <= 0 || c.guessBurst < 1 {
		return fmt.Errorf("invalid guess rate limit: %v/s burst %d", c.guessRate, c.guessBurst)
	}

	for name, d := range map[string]time.Duration{
		"photo-return-delay":  c.photoReturnDelay,
		"copied-banner-delay": c.copiedBannerDelay,
		"submit-timeout":      c.submitTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("--%s must be positive: %s", name, d)
		}
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("MYSTERYATHLETE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "mysteryathlete",
		Short:         "Serves the daily mystery athlete puzzle.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: MYSTERYATHLETE_BIND)")
	fs.StringVar(&cfg.catalog, "catalog", "", "directory or file of round yaml, instead of the built-in rounds (env: MYSTERYATHLETE_CATALOG)")
	fs.StringVar(&cfg.closeGuessPolicy, "close-guess-policy", string(round.PolicyTwoStrike), "close guesses before the answer is revealed: two-strike or single-strike (env: MYSTERYATHLETE_CLOSE_GUESS_POLICY)")
	fs.DurationVar(&cfg.copiedBannerDelay, "copied-banner-delay", 2*time.Second, "how long the share banner stays up (env: MYSTERYATHLETE_COPIED_BANNER_DELAY)")
	fs.StringVar(&cfg.dbPath, "db-path", "mysteryathlete.db", "sqlite database file (env: MYSTERYATHLETE_DB_PATH)")
	fs.StringVar(&cfg.dbURL, "db-url", "", "postgres or mysql connection string (env: MYSTERYATHLETE_DB_URL)")
	fs.IntVar(&cfg.guessBurst, "guess-burst", 5, "guesses and flips allowed in a burst (env: MYSTERYATHLETE_GUESS_BURST)")
	fs.Float64Var(&cfg.guessRate, "guess-rate", 2, "sustained guesses and flips per second per connection (env: MYSTERYATHLETE_GUESS_RATE)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "expose prometheus metrics at /metrics (env: MYSTERYATHLETE_METRICS)")
	fs.DurationVar(&cfg.photoReturnDelay, "photo-return-delay", 500*time.Millisecond, "duration of the return from the photo view (env: MYSTERYATHLETE_PHOTO_RETURN_DELAY)")
	fs.DurationVar(&cfg.playerTimeout, "player-timeout", 10*time.Minute, "time before disconnected players are forgotten (env: MYSTERYATHLETE_PLAYER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: MYSTERYATHLETE_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: MYSTERYATHLETE_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: MYSTERYATHLETE_PROFILE)")
	fs.DurationVar(&cfg.redisTTL, "redis-ttl", 0, "expire redis keys after this long, 0 to keep forever (env: MYSTERYATHLETE_REDIS_TTL)")
	fs.StringVar(&cfg.redisURL, "redis-url", "", "redis connection url (env: MYSTERYATHLETE_REDIS_URL)")
	fs.StringVar(&cfg.store, "store", "memory", "where progress is kept: "+strings.Join(storeKinds, ", ")+" (env: MYSTERYATHLETE_STORE)")
	fs.DurationVar(&cfg.submitTimeout, "submit-timeout", 10*time.Second, "timeout for result submission (env: MYSTERYATHLETE_SUBMIT_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: MYSTERYATHLETE_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: MYSTERYATHLETE_TLS_KEY)")
	fs.StringVar(&cfg.upstream, "upstream", "", "base url of another instance to fetch rounds from and submit results to (env: MYSTERYATHLETE_UPSTREAM)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: MYSTERYATHLETE_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: MYSTERYATHLETE_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("mysteryathlete v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
