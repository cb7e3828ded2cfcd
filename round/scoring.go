/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import "strings"

const (
	InitialScore          = 100
	RegularTilePenalty    = 3
	PhotoTilePenalty      = 6
	IncorrectGuessPenalty = 2
	HintThreshold         = 70

	// CloseGuessDistance is the largest edit distance still counted as close.
	CloseGuessDistance = 3
)

// Rank is the label awarded at the instant a round is won.
type Rank string

const (
	RankNone    Rank = ""
	RankAmazing Rank = "Amazing"
	RankElite   Rank = "Elite"
	RankSolid   Rank = "Solid"
)

var rankThresholds = []struct {
	min  int
	rank Rank
}{
	{95, RankAmazing},
	{90, RankElite},
	{80, RankSolid},
}

// Action is anything that can cost points.
type Action int

const (
	ActionCorrectGuess Action = iota
	ActionIncorrectGuess
	ActionRegularTile
	ActionPhotoTile
)

func (a Action) penalty() int {
	switch a {
	case ActionIncorrectGuess:
		return IncorrectGuessPenalty
	case ActionRegularTile:
		return RegularTilePenalty
	case ActionPhotoTile:
		return PhotoTilePenalty
	}
	return 0
}

// CalculateNewScore subtracts the action's penalty. Scores are not floored and
// may go negative.
func CalculateNewScore(score int, a Action) int {
	return score - a.penalty()
}

// EvaluateRank maps a winning score to its rank.
func EvaluateRank(score int) Rank {
	for _, t := range rankThresholds {
		if score >= t.min {
			return t.rank
		}
	}
	return RankNone
}

// GenerateHint unlocks the initials hint the first time the score drops below
// HintThreshold. An existing hint is returned unchanged.
func GenerateHint(newScore int, currentHint, answer string) string {
	if currentHint != "" || newScore >= HintThreshold {
		return currentHint
	}
	return Initials(answer)
}

// Initials returns the first letter of each whitespace-separated token of
// name, joined by ".", e.g. "Babe Ruth" -> "B.R".
func Initials(name string) string {
	fields := strings.Fields(name)
	initials := make([]string, 0, len(fields))
	for _, f := range fields {
		initials = append(initials, string([]rune(f)[:1]))
	}
	return strings.Join(initials, ".")
}
