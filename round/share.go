/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import (
	"fmt"
	"strings"
)

const (
	glyphFlipped = "🟥"
	glyphHidden  = "🟩"
	shareColumns = 3
)

// ShareText renders the spoiler-free result grid for a round.
func ShareText(k Key, p *Progress) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Mystery Athlete %s %s\n", Title(k.Sport), k.PlayDate)

	for i, t := range Tiles {
		if p.Flipped(t) {
			b.WriteString(glyphFlipped)
		} else {
			b.WriteString(glyphHidden)
		}
		if (i+1)%shareColumns == 0 {
			b.WriteByte('\n')
		}
	}

	switch {
	case p.Solved() && p.Rank != RankNone:
		fmt.Fprintf(&b, "Score: %d (%s)", p.Score, p.Rank)
	case p.CompletionReason == CompletionGaveUp:
		fmt.Fprintf(&b, "Score: %d (gave up)", p.Score)
	default:
		fmt.Fprintf(&b, "Score: %d", p.Score)
	}

	return b.String()
}
