/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Seednode/mysteryathlete/catalog"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"
)

var (
	errFutureDate  = errors.New("rounds are not available before their play date")
	errInvalidDate = errors.New("invalid date")

	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	return w
}()

// resolveDate turns user input into a play date. Empty input stays empty and
// means today to the round fetcher; anything else may be a YYYY-MM-DD date
// or a phrase like "yesterday" or "last friday".
func resolveDate(input string, now time.Time) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}

	today := now.Format(catalog.DateFormat)

	var date string
	if isoDatePattern.MatchString(input) {
		t, err := time.ParseInLocation(catalog.DateFormat, input, now.Location())
		if err != nil {
			return "", fmt.Errorf("%w: %q", errInvalidDate, input)
		}
		date = t.Format(catalog.DateFormat)
	} else {
		r, err := dateParser.Parse(strings.ToLower(input), now)
		if err != nil {
			return "", err
		}
		if r == nil {
			return "", fmt.Errorf("%w: %q", errInvalidDate, input)
		}
		date = r.Time.Format(catalog.DateFormat)
	}

	if date > today {
		return "", fmt.Errorf("%w: %s", errFutureDate, date)
	}

	return date, nil
}
