package models

import (
	"strconv"
	"strings"
)

// teamNamePrefixes are stripped so "AFC Bournemouth" and "Bournemouth" compare equal.
var teamNamePrefixes = []string{
	"a.f.c. ", "afc ", "f.c. ", "fc ", "c.f. ", "cf ", "s.c. ", "sc ", "a.c. ", "ac ",
	"r.c. ", "rc ", "s.s.c. ", "ssc ", "u.d. ", "ud ", "c.d. ", "cd ",
}

// teamNameSuffixes are stripped from the end, e.g. "Arsenal FC".
var teamNameSuffixes = []string{
	" a.f.c.", " afc", " f.c.", " fc", " c.f.", " cf", " s.c.", " sc",
}

// NormalizeTeamName normalizes a team name for comparing provider data with user picks.
func NormalizeTeamName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.Join(strings.Fields(s), " ")
	for _, p := range teamNamePrefixes {
		if strings.HasPrefix(s, p) && len(s) > len(p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	for _, suf := range teamNameSuffixes {
		if strings.HasSuffix(s, suf) && len(s) > len(suf) {
			s = strings.TrimSpace(s[:len(s)-len(suf)])
			break
		}
	}
	return s
}

// SameTeam reports whether a and b name the same club
func SameTeam(a, b string) bool {
	na := NormalizeTeamName(a)
	return na != "" && na == NormalizeTeamName(b)
}

// FixtureKey builds a stable local key for a fixture.
// Format: round|home|away
func FixtureKey(homeTeam, awayTeam string, round int) string {
	return strconv.Itoa(round) + "|" + keyPart(homeTeam) + "|" + keyPart(awayTeam)
}

func keyPart(s string) string {
	s = NormalizeTeamName(s)
	s = strings.ReplaceAll(s, "|", " ")
	s = strings.ReplaceAll(s, "/", " ")
	return strings.Join(strings.Fields(s), " ")
}
