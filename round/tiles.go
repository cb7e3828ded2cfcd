/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

// View is the board-wide display state driven by the photo tile.
type View string

const (
	ViewNormal             View = "normal"
	ViewPhotoRevealed      View = "photoRevealed"
	ViewReturningFromPhoto View = "returningFromPhoto"
)

// Effect is what a tile click did.
type Effect string

const (
	EffectNone      Effect = "none"
	EffectFlipped   Effect = "flipped"
	EffectPhotoShow Effect = "photoShown"
	EffectReturning Effect = "returning"
)

// ClickResult describes one tile click. Generation is set when Effect is
// EffectReturning and must be handed back to FinishReturn.
type ClickResult struct {
	Effect     Effect
	Tile       Tile
	Scored     bool
	Changed    bool
	Generation uint64
}

// Board holds the view state for one session. Per-tile flip state lives in
// Progress so that it is persisted with everything else.
type Board struct {
	view View
	gen  uint64
}

// NewBoard derives the view from restored progress.
func NewBoard(p *Progress) *Board {
	b := &Board{view: ViewNormal}
	if p.PhotoRevealed {
		b.view = ViewPhotoRevealed
	}
	return b
}

func (b *Board) View() View { return b.view }

// Generation increases on every view transition; a pending return that
// carries an older generation is stale.
func (b *Board) Generation() uint64 { return b.gen }

func (b *Board) setView(p *Progress, v View) {
	b.gen++
	b.view = v
	p.PhotoRevealed = v == ViewPhotoRevealed
}

// Click applies a click on tile t to p.
func (b *Board) Click(p *Progress, answer string, t Tile) ClickResult {
	res := ClickResult{Effect: EffectNone, Tile: t}

	switch {
	case !t.Valid():
		return res

	case b.view == ViewPhotoRevealed:
		b.setView(p, ViewReturningFromPhoto)
		res.Effect = EffectReturning
		res.Changed = true
		res.Generation = b.gen
		return res

	case t == TilePhoto && p.Flipped(TilePhoto):
		b.setView(p, ViewPhotoRevealed)
		res.Effect = EffectPhotoShow
		res.Changed = true
		return res

	case p.Flipped(t):
		return res
	}

	p.FlippedTiles = append(p.FlippedTiles, t)
	res.Effect = EffectFlipped
	res.Changed = true

	if !p.Completed() {
		action := ActionRegularTile
		if t == TilePhoto {
			action = ActionPhotoTile
		}
		p.Score = CalculateNewScore(p.Score, action)
		p.TilesFlippedCount++
		p.Hint = GenerateHint(p.Score, p.Hint, answer)
		if p.FirstTileFlipped == "" {
			p.FirstTileFlipped = t
		}
		p.LastTileFlipped = t
		res.Scored = true
	}

	if t == TilePhoto {
		b.setView(p, ViewPhotoRevealed)
	}

	return res
}

// FinishReturn completes a ReturningFromPhoto transition. It reports false
// when gen has been superseded by a newer transition.
func (b *Board) FinishReturn(gen uint64) bool {
	if gen != b.gen || b.view != ViewReturningFromPhoto {
		return false
	}
	b.gen++
	b.view = ViewNormal
	return true
}
