/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package catalog serves rounds from YAML files and aggregates the results
// players submit for them.
package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/mysteryathlete/round"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed rounds/*.yaml
var builtin embed.FS

// DateFormat is the layout of every play date.
const DateFormat = "2006-01-02"

var ErrDuplicateRound = errors.New("duplicate round")

type file struct {
	Sport  string  `yaml:"sport"`
	Rounds []entry `yaml:"rounds"`
}

type entry struct {
	ID       string            `yaml:"id"`
	PlayDate string            `yaml:"playDate"`
	Player   round.PlayerFacts `yaml:"player"`
}

// StatsSource supplies live stats for a round.
type StatsSource interface {
	Stats(ctx context.Context, k round.Key) (round.RoundStats, error)
}

// Catalog is an immutable set of rounds indexed by key.
type Catalog struct {
	mu     sync.RWMutex
	rounds map[round.Key]*round.Round
	dates  map[string][]string
	stats  StatsSource
	now    func() time.Time
}

// Builtin loads the sample rounds compiled into the binary.
func Builtin() (*Catalog, error) {
	return Load(builtin)
}

// LoadDir loads every .yaml or .yml file under dir.
func LoadDir(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return Load(os.DirFS(filepath.Dir(dir)), filepath.Base(dir))
	}

	return Load(os.DirFS(dir))
}

// Load parses the named files in fsys, or every YAML file in it when none
// are named.
func Load(fsys fs.FS, names ...string) (*Catalog, error) {
	if len(names) == 0 {
		err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			ext := strings.ToLower(filepath.Ext(path))
			if !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
				names = append(names, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	c := &Catalog{
		rounds: make(map[round.Key]*round.Round),
		dates:  make(map[string][]string),
		now:    time.Now,
	}

	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}

		if err := c.add(name, data); err != nil {
			return nil, err
		}
	}

	for sport := range c.dates {
		sort.Strings(c.dates[sport])
	}

	return c, nil
}

func (c *Catalog) add(name string, data []byte) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	for i, e := range f.Rounds {
		k := round.Key{Sport: strings.ToLower(f.Sport), PlayDate: e.PlayDate}

		if err := k.Validate(); err != nil {
			return fmt.Errorf("%s: round %d: %w", name, i, err)
		}
		if _, err := time.Parse(DateFormat, k.PlayDate); err != nil {
			return fmt.Errorf("%s: round %d: %w", name, i, err)
		}
		if strings.TrimSpace(e.Player.Name) == "" {
			return fmt.Errorf("%s: round %d: player name is required", name, i)
		}
		if _, ok := c.rounds[k]; ok {
			return fmt.Errorf("%s: %w: %s", name, ErrDuplicateRound, k)
		}

		id := e.ID
		if id == "" {
			id = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mysteryathlete:"+k.String())).String()
		}

		c.rounds[k] = &round.Round{
			ID:       id,
			Sport:    k.Sport,
			PlayDate: k.PlayDate,
			Player:   e.Player,
		}
		c.dates[k.Sport] = append(c.dates[k.Sport], k.PlayDate)
	}

	return nil
}

// WithStats attaches a live stats source.
func (c *Catalog) WithStats(s StatsSource) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats = s
	return c
}

// WithClock replaces the clock used to resolve today.
func (c *Catalog) WithClock(now func() time.Time) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
	return c
}

// Sports lists every sport with at least one round.
func (c *Catalog) Sports() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sports := make([]string, 0, len(c.dates))
	for s := range c.dates {
		sports = append(sports, s)
	}
	sort.Strings(sports)

	return sports
}

// Has reports whether the catalog holds a round for k.
func (c *Catalog) Has(k round.Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.rounds[k]
	return ok
}

// Resolve turns an empty play date into the most recent round on or before
// today.
func (c *Catalog) Resolve(sport, playDate string) (round.Key, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	k := round.Key{Sport: sport, PlayDate: playDate}
	if playDate != "" {
		if _, ok := c.rounds[k]; !ok {
			return k, round.ErrRoundNotFound
		}
		return k, nil
	}

	today := c.now().Format(DateFormat)
	dates := c.dates[sport]

	i, found := slices.BinarySearch(dates, today)
	if !found {
		i--
	}
	if i < 0 {
		return k, round.ErrRoundNotFound
	}

	k.PlayDate = dates[i]
	return k, nil
}

// FetchRound implements round.Fetcher.
func (c *Catalog) FetchRound(ctx context.Context, sport, playDate string) (*round.Round, error) {
	k, err := c.Resolve(sport, playDate)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	r := *c.rounds[k]
	stats := c.stats
	c.mu.RUnlock()

	if stats != nil {
		s, err := stats.Stats(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("loading stats for %s: %w", k, err)
		}
		r.Stats = s
	}

	return &r, nil
}
