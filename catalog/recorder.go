/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Seednode/mysteryathlete/round"
)

const statsPrefix = "stats:"

// ErrInvalidResult is returned for submissions that could not have come from
// a real round.
var ErrInvalidResult = errors.New("invalid result")

// StatsKey is the store key holding the aggregate for k.
func StatsKey(k round.Key) string {
	return statsPrefix + k.String()
}

type aggregate struct {
	Plays           int                `json:"plays"`
	Correct         int                `json:"correct"`
	ScoreSum        int                `json:"scoreSum"`
	CorrectScoreSum int                `json:"correctScoreSum"`
	Highest         int                `json:"highest"`
	TilesSum        int                `json:"tilesSum"`
	TileFlips       map[round.Tile]int `json:"tileFlips"`
	FirstTileCounts map[round.Tile]int `json:"firstTileCounts"`
	LastTileCounts  map[round.Tile]int `json:"lastTileCounts"`
}

func (a *aggregate) add(res round.Result) {
	if a.TileFlips == nil {
		a.TileFlips = make(map[round.Tile]int)
	}
	if a.FirstTileCounts == nil {
		a.FirstTileCounts = make(map[round.Tile]int)
	}
	if a.LastTileCounts == nil {
		a.LastTileCounts = make(map[round.Tile]int)
	}

	if a.Plays == 0 || res.Score > a.Highest {
		a.Highest = res.Score
	}

	a.Plays++
	a.ScoreSum += res.Score
	a.TilesSum += len(res.FlippedTiles)

	if res.Completed {
		a.Correct++
		a.CorrectScoreSum += res.Score
	}

	for _, t := range res.FlippedTiles {
		a.TileFlips[t]++
	}
	if res.FirstTileFlipped != "" {
		a.FirstTileCounts[res.FirstTileFlipped]++
	}
	if res.LastTileFlipped != "" {
		a.LastTileCounts[res.LastTileFlipped]++
	}
}

func (a *aggregate) stats() round.RoundStats {
	s := round.RoundStats{
		TotalPlays: a.Plays,
		TileFlips:  make(map[round.Tile]int),
	}
	if a.Plays == 0 {
		return s
	}

	s.HighestScore = a.Highest
	s.PercentageCorrect = 100 * float64(a.Correct) / float64(a.Plays)
	s.AverageScore = float64(a.ScoreSum) / float64(a.Plays)
	s.AverageTilesFlipped = float64(a.TilesSum) / float64(a.Plays)
	if a.Correct > 0 {
		s.AverageCorrectScore = float64(a.CorrectScoreSum) / float64(a.Correct)
	}

	for t, n := range a.TileFlips {
		s.TileFlips[t] = n
	}
	s.MostCommonFirstTile = mostCommon(a.FirstTileCounts)
	s.MostCommonLastTile = mostCommon(a.LastTileCounts)

	return s
}

// mostCommon breaks ties by board order.
func mostCommon(counts map[round.Tile]int) round.Tile {
	var best round.Tile
	bestN := 0

	for _, t := range round.Tiles {
		if n := counts[t]; n > bestN {
			best, bestN = t, n
		}
	}

	return best
}

// Recorder aggregates submitted results into a store. It implements both
// round.Transport and StatsSource.
type Recorder struct {
	store round.Store
	known func(round.Key) bool

	mu sync.Mutex
}

// NewRecorder records into store. When known is set, results for rounds it
// rejects fail with round.ErrRoundNotFound.
func NewRecorder(store round.Store, known func(round.Key) bool) *Recorder {
	return &Recorder{store: store, known: known}
}

func validate(res round.Result) error {
	if res.Score > round.InitialScore {
		return fmt.Errorf("%w: score %d above %d", ErrInvalidResult, res.Score, round.InitialScore)
	}
	if len(res.FlippedTiles) > len(round.Tiles) {
		return fmt.Errorf("%w: %d tiles flipped", ErrInvalidResult, len(res.FlippedTiles))
	}

	for _, t := range append([]round.Tile{res.FirstTileFlipped, res.LastTileFlipped}, res.FlippedTiles...) {
		if t == "" {
			continue
		}
		if parsed, ok := round.ParseTile(string(t)); !ok || parsed != t {
			return fmt.Errorf("%w: unknown tile %q", ErrInvalidResult, t)
		}
	}

	switch res.CompletionReason {
	case round.CompletionWon, round.CompletionRevealed, round.CompletionGaveUp:
	default:
		return fmt.Errorf("%w: completion reason %q", ErrInvalidResult, res.CompletionReason)
	}

	return nil
}

// SubmitResult implements round.Transport.
func (r *Recorder) SubmitResult(ctx context.Context, k round.Key, res round.Result) error {
	if err := k.Validate(); err != nil {
		return err
	}
	if r.known != nil && !r.known(k) {
		return round.ErrRoundNotFound
	}
	if err := validate(res); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	agg, err := r.load(ctx, k)
	if err != nil {
		return err
	}

	agg.add(res)

	data, err := json.Marshal(agg)
	if err != nil {
		return err
	}

	return r.store.Set(ctx, StatsKey(k), string(data))
}

// Stats implements StatsSource.
func (r *Recorder) Stats(ctx context.Context, k round.Key) (round.RoundStats, error) {
	agg, err := r.load(ctx, k)
	if err != nil {
		return round.RoundStats{}, err
	}

	return agg.stats(), nil
}

func (r *Recorder) load(ctx context.Context, k round.Key) (*aggregate, error) {
	raw, ok, err := r.store.Get(ctx, StatsKey(k))
	if err != nil {
		return nil, err
	}

	agg := &aggregate{}
	if !ok {
		return agg, nil
	}

	if err := json.Unmarshal([]byte(raw), agg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", StatsKey(k), err)
	}

	return agg, nil
}
