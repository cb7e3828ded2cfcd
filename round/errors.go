/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import (
	"errors"
	"fmt"
)

var (
	// ErrRoundNotFound indicates no round is scheduled for a sport and date.
	ErrRoundNotFound = errors.New("round not found")

	// ErrInvalidKey indicates a malformed sport or play date.
	ErrInvalidKey = errors.New("invalid round key")
)

// DataFetchError is the only failure surfaced to the player. It is cleared by
// an explicit retry.
type DataFetchError struct {
	Key Key
	Err error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("fetch round %s: %v", e.Key, e.Err)
}

func (e *DataFetchError) Unwrap() error { return e.Err }

// SubmissionError wraps a failed result submission. It is logged and dropped.
type SubmissionError struct {
	Key Key
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit result %s: %v", e.Key, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed store read or write. Gameplay continues in
// memory when one occurs.
type PersistenceError struct {
	Op       string
	StoreKey string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.StoreKey, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
