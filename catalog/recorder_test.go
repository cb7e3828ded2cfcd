/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package catalog

import (
	"context"
	"testing"

	"github.com/Seednode/mysteryathlete/round"
	"github.com/Seednode/mysteryathlete/store"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nbaKey = round.Key{Sport: "nba", PlayDate: "2026-10-18"}

func TestRecorderAggregates(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(store.NewMemory(), nil)

	results := []round.Result{
		{
			Score:            91,
			Completed:        true,
			CompletionReason: round.CompletionWon,
			FlippedTiles:     []round.Tile{round.TileBio, round.TilePhoto},
			FirstTileFlipped: round.TileBio,
			LastTileFlipped:  round.TilePhoto,
		},
		{
			Score:            80,
			Completed:        false,
			CompletionReason: round.CompletionGaveUp,
			FlippedTiles:     []round.Tile{round.TileBio, round.TileCareerStats, round.TileJerseyNumbers},
			FirstTileFlipped: round.TileBio,
			LastTileFlipped:  round.TileJerseyNumbers,
			IncorrectGuesses: 2,
		},
		{
			Score:            97,
			Completed:        true,
			CompletionReason: round.CompletionRevealed,
			FlippedTiles:     []round.Tile{round.TileCareerStats},
			FirstTileFlipped: round.TileCareerStats,
			LastTileFlipped:  round.TileCareerStats,
		},
	}

	for _, res := range results {
		require.NoError(t, rec.SubmitResult(ctx, nbaKey, res))
	}

	got, err := rec.Stats(ctx, nbaKey)
	require.NoError(t, err)

	want := round.RoundStats{
		TotalPlays:          3,
		PercentageCorrect:   100 * 2.0 / 3.0,
		AverageScore:        (91 + 80 + 97) / 3.0,
		AverageCorrectScore: (91 + 97) / 2.0,
		HighestScore:        97,
		AverageTilesFlipped: 2,
		TileFlips: map[round.Tile]int{
			round.TileBio:           2,
			round.TilePhoto:         1,
			round.TileCareerStats:   2,
			round.TileJerseyNumbers: 1,
		},
		MostCommonFirstTile: round.TileBio,
		MostCommonLastTile:  round.TileJerseyNumbers,
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestRecorderEmptyStats(t *testing.T) {
	rec := NewRecorder(store.NewMemory(), nil)

	got, err := rec.Stats(context.Background(), nbaKey)
	require.NoError(t, err)
	assert.Zero(t, got.TotalPlays)
	assert.Empty(t, got.TileFlips)
	assert.Empty(t, got.MostCommonFirstTile)
}

func TestRecorderNegativeHighest(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(store.NewMemory(), nil)

	require.NoError(t, rec.SubmitResult(ctx, nbaKey, round.Result{Score: -4, CompletionReason: round.CompletionGaveUp}))

	got, err := rec.Stats(ctx, nbaKey)
	require.NoError(t, err)
	assert.Equal(t, -4, got.HighestScore)
}

func TestRecorderRejects(t *testing.T) {
	ctx := context.Background()
	known := func(k round.Key) bool { return k == nbaKey }
	rec := NewRecorder(store.NewMemory(), known)

	valid := round.Result{Score: 50, CompletionReason: round.CompletionWon, Completed: true}

	assert.ErrorIs(t, rec.SubmitResult(ctx, round.Key{Sport: "nba", PlayDate: "2026-10-19"}, valid), round.ErrRoundNotFound)
	assert.ErrorIs(t, rec.SubmitResult(ctx, round.Key{Sport: "NBA!", PlayDate: "2026-10-18"}, valid), round.ErrInvalidKey)

	bad := []round.Result{
		{Score: 101, CompletionReason: round.CompletionWon},
		{Score: 50, CompletionReason: round.CompletionNone},
		{Score: 50, CompletionReason: round.CompletionWon, FlippedTiles: []round.Tile{"shoeSize"}},
		{Score: 50, CompletionReason: round.CompletionWon, FirstTileFlipped: "0"},
	}
	for _, res := range bad {
		assert.ErrorIs(t, rec.SubmitResult(ctx, nbaKey, res), ErrInvalidResult)
	}

	got, err := rec.Stats(ctx, nbaKey)
	require.NoError(t, err)
	assert.Zero(t, got.TotalPlays)
}
