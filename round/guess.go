/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import (
	"fmt"
	"strings"
)

// Outcome is the result of evaluating one guess.
type Outcome string

const (
	OutcomeRejected Outcome = "rejected"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeReopened Outcome = "reopened"
	OutcomeWon      Outcome = "won"
	OutcomeClose    Outcome = "close"
	OutcomeRevealed Outcome = "revealed"
	OutcomeWrong    Outcome = "wrong"
)

// Policy decides how many close guesses it takes to reveal the answer.
type Policy string

const (
	// PolicyTwoStrike reveals the answer on a second, different close guess.
	PolicyTwoStrike Policy = "two-strike"

	// PolicySingleStrike reveals the answer on the first close guess.
	PolicySingleStrike Policy = "single-strike"
)

// ParsePolicy accepts the flag spellings of a Policy. An empty string selects
// PolicyTwoStrike.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyTwoStrike:
		return PolicyTwoStrike, nil
	case PolicySingleStrike:
		return PolicySingleStrike, nil
	}
	return "", fmt.Errorf("unknown close guess policy %q (want %q or %q)", s, PolicyTwoStrike, PolicySingleStrike)
}

const closeMessage = "You're close! Check your spelling and try again."

// GuessResult describes what a guess did.
type GuessResult struct {
	Outcome  Outcome `json:"outcome"`
	Message  string  `json:"message,omitempty"`
	Rank     Rank    `json:"rank,omitempty"`
	Distance int     `json:"-"`
}

// Mutated reports whether the guess changed the progress.
func (r GuessResult) Mutated() bool {
	switch r.Outcome {
	case OutcomeWon, OutcomeClose, OutcomeRevealed, OutcomeWrong:
		return true
	}
	return false
}

// Completes reports whether the guess ended the round.
func (r GuessResult) Completes() bool {
	return r.Outcome == OutcomeWon || r.Outcome == OutcomeRevealed
}

// EvaluateGuess applies one raw guess to p.
func EvaluateGuess(p *Progress, answer, raw string, policy Policy) GuessResult {
	guess := Normalize(raw)
	if guess == "" {
		return GuessResult{Outcome: OutcomeRejected}
	}

	target := Normalize(answer)

	if p.Completed() {
		if guess == target {
			p.LastSubmittedGuess = guess
			return GuessResult{
				Outcome: OutcomeReopened,
				Message: fmt.Sprintf("You already found %s today.", answer),
				Rank:    p.Rank,
			}
		}
		return GuessResult{Outcome: OutcomeIgnored}
	}

	// Every accepted guess before completion was wrong, so repeating the last
	// one would only farm penalties.
	if guess == p.LastSubmittedGuess {
		return GuessResult{Outcome: OutcomeRejected}
	}
	p.LastSubmittedGuess = guess

	if guess == target {
		p.Rank = EvaluateRank(p.Score)
		p.CompletionReason = CompletionWon
		p.Hint = ""
		p.PreviousCloseGuess = ""
		return GuessResult{
			Outcome: OutcomeWon,
			Message: fmt.Sprintf("Correct! The mystery athlete is %s.", answer),
			Rank:    p.Rank,
		}
	}

	d := Distance(guess, target)

	p.Score = CalculateNewScore(p.Score, ActionIncorrectGuess)
	p.Hint = GenerateHint(p.Score, p.Hint, answer)

	if d > CloseGuessDistance {
		p.IncorrectGuesses++
		return GuessResult{
			Outcome:  OutcomeWrong,
			Message:  fmt.Sprintf("%q is not the mystery athlete.", strings.TrimSpace(raw)),
			Distance: d,
		}
	}

	strikeOut := policy == PolicySingleStrike ||
		(p.PreviousCloseGuess != "" && p.PreviousCloseGuess != guess)
	if !strikeOut {
		p.PreviousCloseGuess = guess
		return GuessResult{Outcome: OutcomeClose, Message: closeMessage, Distance: d}
	}

	p.Rank = EvaluateRank(p.Score)
	p.CompletionReason = CompletionRevealed
	p.PreviousCloseGuess = ""
	return GuessResult{
		Outcome:  OutcomeRevealed,
		Message:  fmt.Sprintf("Close enough! The mystery athlete is %s.", answer),
		Rank:     p.Rank,
		Distance: d,
	}
}

// GiveUp ends the round without a score change. It reports false when the
// round was already complete.
func GiveUp(p *Progress) bool {
	if p.Completed() {
		return false
	}
	p.CompletionReason = CompletionGaveUp
	p.PreviousCloseGuess = ""
	return true
}
