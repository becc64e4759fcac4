package models

import "time"

// FixtureStatus is the normalized match status
type FixtureStatus string

const (
	FixtureScheduled FixtureStatus = "scheduled"
	FixtureLive      FixtureStatus = "live"
	FixtureFinished  FixtureStatus = "finished"
	FixturePostponed FixtureStatus = "postponed"
	FixtureCancelled FixtureStatus = "cancelled"
)

// Outcome is the 1X2 result of a match
type Outcome string

const (
	OutcomeHome Outcome = "home"
	OutcomeDraw Outcome = "draw"
	OutcomeAway Outcome = "away"
)

func outcomeOf(home, away int) Outcome {
	switch {
	case home > away:
		return OutcomeHome
	case home < away:
		return OutcomeAway
	default:
		return OutcomeDraw
	}
}

// Fixture is a match as reported by the sports-data provider
type Fixture struct {
	ID          int64         `json:"id"` // provider match ID
	Competition string        `json:"competition"`
	Season      int           `json:"season"`
	Round       int           `json:"round"`
	HomeTeam    string        `json:"home_team"`
	AwayTeam    string        `json:"away_team"`
	HomeGoals   *int          `json:"home_goals,omitempty"`
	AwayGoals   *int          `json:"away_goals,omitempty"`
	Status      FixtureStatus `json:"status"`
	KickOff     time.Time     `json:"kick_off"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Finished reports whether the final score is known
func (f Fixture) Finished() bool {
	return f.Status == FixtureFinished && f.HomeGoals != nil && f.AwayGoals != nil
}

// Void reports whether the fixture will not be played in this round
func (f Fixture) Void() bool {
	return f.Status == FixturePostponed || f.Status == FixtureCancelled
}

// Settled reports whether the fixture no longer changes round results
func (f Fixture) Settled() bool {
	return f.Finished() || f.Void()
}

// Outcome returns the result; only meaningful for finished fixtures
func (f Fixture) Outcome() Outcome {
	if !f.Finished() {
		return ""
	}
	return outcomeOf(*f.HomeGoals, *f.AwayGoals)
}

// Involves reports whether the normalized team plays in the fixture
func (f Fixture) Involves(team string) bool {
	n := NormalizeTeamName(team)
	return n != "" && (NormalizeTeamName(f.HomeTeam) == n || NormalizeTeamName(f.AwayTeam) == n)
}

// GoalsFor returns goals scored by team in a finished fixture
func (f Fixture) GoalsFor(team string) int {
	if !f.Finished() {
		return 0
	}
	n := NormalizeTeamName(team)
	switch n {
	case NormalizeTeamName(f.HomeTeam):
		return *f.HomeGoals
	case NormalizeTeamName(f.AwayTeam):
		return *f.AwayGoals
	}
	return 0
}

// ResultFor returns won/lost/void/pending for a team backed in this fixture
func (f Fixture) ResultFor(team string) PickResult {
	if f.Void() {
		return PickVoid
	}
	if !f.Finished() {
		return PickPending
	}
	n := NormalizeTeamName(team)
	out := f.Outcome()
	switch {
	case out == OutcomeHome && n == NormalizeTeamName(f.HomeTeam):
		return PickWon
	case out == OutcomeAway && n == NormalizeTeamName(f.AwayTeam):
		return PickWon
	default:
		return PickLost
	}
}

// Standing is one row of a competition table
type Standing struct {
	Competition    string `json:"competition"`
	Season         int    `json:"season"`
	Position       int    `json:"position"`
	TeamName       string `json:"team_name"`
	Played         int    `json:"played"`
	Points         int    `json:"points"`
	GoalDifference int    `json:"goal_difference"`
	GoalsFor       int    `json:"goals_for"`
}

// RoundComplete reports whether every fixture of the round is settled.
// A round with no fixtures is not complete.
func RoundComplete(fixtures []Fixture) bool {
	if len(fixtures) == 0 {
		return false
	}
	for _, f := range fixtures {
		if !f.Settled() {
			return false
		}
	}
	return true
}

// FixturesForRound filters fixtures by round
func FixturesForRound(fixtures []Fixture, round int) []Fixture {
	var out []Fixture
	for _, f := range fixtures {
		if f.Round == round {
			out = append(out, f)
		}
	}
	return out
}
