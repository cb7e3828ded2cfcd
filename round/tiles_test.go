/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlipBioThenPhoto(t *testing.T) {
	p := NewProgress()
	b := NewBoard(&p)

	res := b.Click(&p, answer, TileBio)
	assert.Equal(t, EffectFlipped, res.Effect)
	assert.True(t, res.Scored)
	assert.Equal(t, 97, p.Score)

	res = b.Click(&p, answer, TilePhoto)
	assert.Equal(t, EffectFlipped, res.Effect)

	assert.Equal(t, 91, p.Score)
	assert.Equal(t, 2, p.TilesFlippedCount)
	assert.Equal(t, TileBio, p.FirstTileFlipped)
	assert.Equal(t, TilePhoto, p.LastTileFlipped)
	assert.Equal(t, []Tile{TileBio, TilePhoto}, p.FlippedTiles)
	assert.True(t, p.PhotoRevealed)
	assert.Equal(t, ViewPhotoRevealed, b.View())
}

func TestFlipTwiceIsNoop(t *testing.T) {
	p := NewProgress()
	b := NewBoard(&p)

	b.Click(&p, answer, TileCareerStats)
	res := b.Click(&p, answer, TileCareerStats)

	assert.Equal(t, EffectNone, res.Effect)
	assert.False(t, res.Changed)
	assert.Equal(t, 97, p.Score)
	assert.Equal(t, 1, p.TilesFlippedCount)
}

func TestClickWhilePhotoShownReturns(t *testing.T) {
	p := NewProgress()
	b := NewBoard(&p)
	b.Click(&p, answer, TilePhoto)

	res := b.Click(&p, answer, TileYearsActive)
	assert.Equal(t, EffectReturning, res.Effect)
	assert.True(t, res.Changed)
	assert.False(t, p.Flipped(TileYearsActive))
	assert.False(t, p.PhotoRevealed)
	assert.Equal(t, ViewReturningFromPhoto, b.View())
	assert.Equal(t, 94, p.Score)

	assert.True(t, b.FinishReturn(res.Generation))
	assert.Equal(t, ViewNormal, b.View())
	assert.False(t, b.FinishReturn(res.Generation))

	res = b.Click(&p, answer, TileYearsActive)
	assert.Equal(t, EffectFlipped, res.Effect)
}

func TestReopenPhoto(t *testing.T) {
	p := NewProgress()
	b := NewBoard(&p)
	b.Click(&p, answer, TilePhoto)
	ret := b.Click(&p, answer, TileBio)
	require.True(t, b.FinishReturn(ret.Generation))

	res := b.Click(&p, answer, TilePhoto)
	assert.Equal(t, EffectPhotoShow, res.Effect)
	assert.False(t, res.Scored)
	assert.Equal(t, 94, p.Score)
	assert.Equal(t, 1, p.TilesFlippedCount)
	assert.True(t, p.PhotoRevealed)
}

func TestStaleReturnIsIgnored(t *testing.T) {
	p := NewProgress()
	b := NewBoard(&p)
	b.Click(&p, answer, TilePhoto)

	first := b.Click(&p, answer, TileBio)
	require.Equal(t, EffectReturning, first.Effect)

	// Reopened before the return timer fired.
	res := b.Click(&p, answer, TilePhoto)
	require.Equal(t, EffectPhotoShow, res.Effect)

	assert.False(t, b.FinishReturn(first.Generation))
	assert.Equal(t, ViewPhotoRevealed, b.View())
	assert.True(t, p.PhotoRevealed)
}

func TestRecapFlipsDoNotScore(t *testing.T) {
	p := NewProgress()
	b := NewBoard(&p)
	b.Click(&p, answer, TileBio)
	require.True(t, GiveUp(&p))

	res := b.Click(&p, answer, TileJerseyNumbers)
	assert.Equal(t, EffectFlipped, res.Effect)
	assert.True(t, res.Changed)
	assert.False(t, res.Scored)

	assert.Equal(t, 97, p.Score)
	assert.Equal(t, 1, p.TilesFlippedCount)
	assert.Equal(t, TileBio, p.LastTileFlipped)
	assert.True(t, p.Flipped(TileJerseyNumbers))
}

func TestUnknownTile(t *testing.T) {
	p := NewProgress()
	b := NewBoard(&p)

	res := b.Click(&p, answer, Tile("shoeSize"))
	assert.Equal(t, EffectNone, res.Effect)
	assert.Equal(t, NewProgress(), p)
}

func TestBoardRestoresPhotoView(t *testing.T) {
	p := NewProgress()
	p.FlippedTiles = []Tile{TilePhoto}
	p.PhotoRevealed = true

	assert.Equal(t, ViewPhotoRevealed, NewBoard(&p).View())
}

func TestParseTile(t *testing.T) {
	tile, ok := ParseTile("careerStats")
	assert.True(t, ok)
	assert.Equal(t, TileCareerStats, tile)

	tile, ok = ParseTile("8")
	assert.True(t, ok)
	assert.Equal(t, TilePhoto, tile)

	_, ok = ParseTile("9")
	assert.False(t, ok)
}

func TestTileStatesInBoardOrder(t *testing.T) {
	p := NewProgress()
	b := NewBoard(&p)
	b.Click(&p, answer, TileCareerStats)
	b.Click(&p, answer, TileBio)

	states := p.TileStates()
	require.Len(t, states, len(Tiles))
	for i, ts := range states {
		assert.Equal(t, Tiles[i], ts.Name)
		assert.Equal(t, ts.Name == TileBio || ts.Name == TileCareerStats, ts.Flipped, ts.Name)
	}
}
