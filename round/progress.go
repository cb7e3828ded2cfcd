/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import "slices"

// CompletionReason records how a round ended.
type CompletionReason string

const (
	CompletionNone     CompletionReason = "none"
	CompletionWon      CompletionReason = "won"
	CompletionRevealed CompletionReason = "revealed"
	CompletionGaveUp   CompletionReason = "gaveUp"
)

// Progress is the mutable, persisted state of one player's round.
type Progress struct {
	Score              int              `json:"score"`
	TilesFlippedCount  int              `json:"tilesFlippedCount"`
	IncorrectGuesses   int              `json:"incorrectGuesses"`
	Hint               string           `json:"hint"`
	CompletionReason   CompletionReason `json:"completionReason"`
	FlippedTiles       []Tile           `json:"flippedTiles"`
	FirstTileFlipped   Tile             `json:"firstTileFlipped"`
	LastTileFlipped    Tile             `json:"lastTileFlipped"`
	PhotoRevealed      bool             `json:"photoRevealed"`
	LastSubmittedGuess string           `json:"lastSubmittedGuess"`
	PreviousCloseGuess string           `json:"previousCloseGuess"`
	Rank               Rank             `json:"rank"`
}

// NewProgress returns the state of a round nobody has touched yet.
func NewProgress() Progress {
	return Progress{
		Score:            InitialScore,
		CompletionReason: CompletionNone,
		FlippedTiles:     []Tile{},
	}
}

// Completed reports whether the round has ended for any reason.
func (p *Progress) Completed() bool {
	return p.CompletionReason != CompletionNone && p.CompletionReason != ""
}

// Solved reports whether the answer was reached by guessing.
func (p *Progress) Solved() bool {
	return p.CompletionReason == CompletionWon || p.CompletionReason == CompletionRevealed
}

// Flipped reports whether a tile has been revealed.
func (p *Progress) Flipped(t Tile) bool {
	return slices.Contains(p.FlippedTiles, t)
}

// TileState is one board position.
type TileState struct {
	Name    Tile `json:"name"`
	Flipped bool `json:"flipped"`
}

// TileStates returns all nine tiles in board order.
func (p *Progress) TileStates() []TileState {
	states := make([]TileState, len(Tiles))
	for i, t := range Tiles {
		states[i] = TileState{Name: t, Flipped: p.Flipped(t)}
	}
	return states
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p Progress) Clone() Progress {
	p.FlippedTiles = slices.Clone(p.FlippedTiles)
	if p.FlippedTiles == nil {
		p.FlippedTiles = []Tile{}
	}
	return p
}
