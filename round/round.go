/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package round implements the mystery athlete round engine: fuzzy guess
// matching, scoring and ranks, the tile reveal board, persisted sessions,
// result submission and the per-player event loop that drives them.
package round

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Key identifies one daily round.
type Key struct {
	Sport    string `json:"sport"`
	PlayDate string `json:"playDate"`
}

var (
	sportPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Validate reports whether the key can be used as a storage key.
func (k Key) Validate() error {
	return k.check(false)
}

// ValidateSelection is Validate, except that an empty play date (today) is
// allowed.
func (k Key) ValidateSelection() error {
	return k.check(true)
}

func (k Key) check(allowEmptyDate bool) error {
	if !sportPattern.MatchString(k.Sport) {
		return fmt.Errorf("%w: sport %q", ErrInvalidKey, k.Sport)
	}
	if allowEmptyDate && k.PlayDate == "" {
		return nil
	}
	if !datePattern.MatchString(k.PlayDate) {
		return fmt.Errorf("%w: play date %q", ErrInvalidKey, k.PlayDate)
	}
	return nil
}

func (k Key) String() string {
	return k.Sport + ":" + k.PlayDate
}

// Tile names one revealable fact category.
type Tile string

const (
	TileBio                  Tile = "bio"
	TilePlayerInformation    Tile = "playerInformation"
	TileDraftInformation     Tile = "draftInformation"
	TileYearsActive          Tile = "yearsActive"
	TileTeamsPlayedOn        Tile = "teamsPlayedOn"
	TileJerseyNumbers        Tile = "jerseyNumbers"
	TileCareerStats          Tile = "careerStats"
	TilePersonalAchievements Tile = "personalAchievements"
	TilePhoto                Tile = "photo"
)

// Tiles is the fixed board order.
var Tiles = [...]Tile{
	TileBio,
	TilePlayerInformation,
	TileDraftInformation,
	TileYearsActive,
	TileTeamsPlayedOn,
	TileJerseyNumbers,
	TileCareerStats,
	TilePersonalAchievements,
	TilePhoto,
}

func (t Tile) Valid() bool {
	return slices.Contains(Tiles[:], t)
}

// ParseTile accepts a tile name or its board index ("0".."8").
func ParseTile(s string) (Tile, bool) {
	for i, t := range Tiles {
		if string(t) == s || strconv.Itoa(i) == s {
			return t, true
		}
	}
	return "", false
}

// PlayerFacts is the answer plus everything a tile can reveal.
type PlayerFacts struct {
	Name                 string `json:"name" yaml:"name"`
	Bio                  string `json:"bio" yaml:"bio"`
	PlayerInformation    string `json:"playerInformation" yaml:"playerInformation"`
	DraftInformation     string `json:"draftInformation" yaml:"draftInformation"`
	YearsActive          string `json:"yearsActive" yaml:"yearsActive"`
	TeamsPlayedOn        string `json:"teamsPlayedOn" yaml:"teamsPlayedOn"`
	JerseyNumbers        string `json:"jerseyNumbers" yaml:"jerseyNumbers"`
	CareerStats          string `json:"careerStats" yaml:"careerStats"`
	PersonalAchievements string `json:"personalAchievements" yaml:"personalAchievements"`
	Photo                string `json:"photo" yaml:"photo"`
}

// Fact returns the text (or photo URL) behind a tile.
func (p PlayerFacts) Fact(t Tile) string {
	switch t {
	case TileBio:
		return p.Bio
	case TilePlayerInformation:
		return p.PlayerInformation
	case TileDraftInformation:
		return p.DraftInformation
	case TileYearsActive:
		return p.YearsActive
	case TileTeamsPlayedOn:
		return p.TeamsPlayedOn
	case TileJerseyNumbers:
		return p.JerseyNumbers
	case TileCareerStats:
		return p.CareerStats
	case TilePersonalAchievements:
		return p.PersonalAchievements
	case TilePhoto:
		return p.Photo
	}
	return ""
}

// RoundStats are aggregated by the backend across all players.
type RoundStats struct {
	TotalPlays          int          `json:"totalPlays"`
	PercentageCorrect   float64      `json:"percentageCorrect"`
	AverageScore        float64      `json:"averageScore"`
	AverageCorrectScore float64      `json:"averageCorrectScore"`
	HighestScore        int          `json:"highestScore"`
	AverageTilesFlipped float64      `json:"averageTilesFlipped"`
	TileFlips           map[Tile]int `json:"tileFlips,omitempty"`
	MostCommonFirstTile Tile         `json:"mostCommonFirstTile,omitempty"`
	MostCommonLastTile  Tile         `json:"mostCommonLastTile,omitempty"`
}

// Round is one day's puzzle for a sport. It is never mutated after fetch.
type Round struct {
	ID       string      `json:"roundId"`
	Sport    string      `json:"sport"`
	PlayDate string      `json:"playDate"`
	Player   PlayerFacts `json:"player"`
	Stats    RoundStats  `json:"stats"`
}

// Key returns the round's session key.
func (r *Round) Key() Key {
	return Key{Sport: r.Sport, PlayDate: r.PlayDate}
}

// Title formats a sport name for display. League abbreviations are
// uppercased ("nba" -> "NBA"), anything longer is capitalized.
func Title(sport string) string {
	switch {
	case sport == "":
		return ""
	case len(sport) <= 3:
		return strings.ToUpper(sport)
	}
	return strings.ToUpper(sport[:1]) + sport[1:]
}
