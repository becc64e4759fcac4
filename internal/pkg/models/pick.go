package models

import "time"

// PickResult is the settlement state of a pick or prediction
type PickResult string

const (
	PickPending PickResult = "pending"
	PickWon     PickResult = "won"
	PickLost    PickResult = "lost"
	PickVoid    PickResult = "void"
)

// Pick is a Last Man Standing team selection for one round
type Pick struct {
	ID         int64      `json:"id"`
	EntryID    int64      `json:"entry_id"`
	InstanceID int64      `json:"instance_id"`
	Round      int        `json:"round"`
	TeamName   string     `json:"team_name"`
	Result     PickResult `json:"result"`
	CreatedAt  time.Time  `json:"created_at"`
	SettledAt  *time.Time `json:"settled_at,omitempty"`
}

// ScorePrediction is an exact score guess for one fixture (Weekly Score Predictor)
type ScorePrediction struct {
	EntryID    int64     `json:"entry_id"`
	InstanceID int64     `json:"instance_id"`
	Round      int       `json:"round"`
	FixtureID  int64     `json:"fixture_id"`
	HomeGoals  int       `json:"home_goals"`
	AwayGoals  int       `json:"away_goals"`
	Points     int       `json:"points"`
	Settled    bool      `json:"settled"`
	CreatedAt  time.Time `json:"created_at"`
}

// Outcome returns the predicted result of the fixture
func (p ScorePrediction) Outcome() Outcome {
	return outcomeOf(p.HomeGoals, p.AwayGoals)
}

// TablePrediction is a full predicted final table (index 0 is the champion)
type TablePrediction struct {
	EntryID    int64     `json:"entry_id"`
	InstanceID int64     `json:"instance_id"`
	Positions  []string  `json:"positions"`
	CreatedAt  time.Time `json:"created_at"`
}

// TeamAssignment allocates one team to an entry (Race to 33)
type TeamAssignment struct {
	EntryID    int64  `json:"entry_id"`
	InstanceID int64  `json:"instance_id"`
	TeamName   string `json:"team_name"`
}
