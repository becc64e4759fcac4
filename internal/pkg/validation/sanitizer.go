// Package validation cleans and checks provider data before it reaches the games.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

const maxTeamNameLen = 100

var (
	controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	spaces       = regexp.MustCompile(`\s+`)
)

// SanitizeTeamName collapses whitespace, drops control characters and trims.
// Names longer than maxTeamNameLen runes are cut.
func SanitizeTeamName(name string) string {
	// Tabs and newlines are whitespace; they must become spaces before the
	// control character pass removes them.
	sanitized := spaces.ReplaceAllString(name, " ")
	sanitized = strings.TrimSpace(controlChars.ReplaceAllString(sanitized, ""))
	if utf8.RuneCountInString(sanitized) > maxTeamNameLen {
		sanitized = strings.TrimSpace(string([]rune(sanitized)[:maxTeamNameLen]))
	}
	return sanitized
}

// SanitizeFixture cleans a provider fixture in place
func SanitizeFixture(f *models.Fixture) {
	if f == nil {
		return
	}
	f.HomeTeam = SanitizeTeamName(f.HomeTeam)
	f.AwayTeam = SanitizeTeamName(f.AwayTeam)
	f.Competition = strings.ToUpper(strings.TrimSpace(f.Competition))

	// A negative score is a provider glitch; treat the result as unknown.
	if f.HomeGoals != nil && *f.HomeGoals < 0 {
		f.HomeGoals = nil
	}
	if f.AwayGoals != nil && *f.AwayGoals < 0 {
		f.AwayGoals = nil
	}
	if f.Status == models.FixtureFinished && (f.HomeGoals == nil || f.AwayGoals == nil) {
		f.Status = models.FixtureLive
	}
}

// SanitizeTeams cleans team names and drops blanks and duplicates
func SanitizeTeams(teams []string) []string {
	out := make([]string, 0, len(teams))
	seen := make(map[string]bool, len(teams))
	for _, t := range teams {
		t = SanitizeTeamName(t)
		key := models.NormalizeTeamName(t)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
