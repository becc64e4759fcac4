package sportsdata

import (
	"strings"
	"time"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

// Wire types of the football-data.org v4 API. Only the fields we read are mapped.

type apiTeam struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
}

type apiScore struct {
	Winner   string `json:"winner"`
	FullTime struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"fullTime"`
}

type apiMatch struct {
	ID          int64     `json:"id"`
	UTCDate     time.Time `json:"utcDate"`
	Status      string    `json:"status"`
	Matchday    int       `json:"matchday"`
	LastUpdated time.Time `json:"lastUpdated"`
	HomeTeam    apiTeam   `json:"homeTeam"`
	AwayTeam    apiTeam   `json:"awayTeam"`
	Score       apiScore  `json:"score"`
}

type matchesResponse struct {
	Matches []apiMatch `json:"matches"`
}

type apiTableRow struct {
	Position       int     `json:"position"`
	Team           apiTeam `json:"team"`
	PlayedGames    int     `json:"playedGames"`
	Points         int     `json:"points"`
	GoalsFor       int     `json:"goalsFor"`
	GoalDifference int     `json:"goalDifference"`
}

type standingsResponse struct {
	Standings []struct {
		Type  string        `json:"type"`
		Table []apiTableRow `json:"table"`
	} `json:"standings"`
}

type teamsResponse struct {
	Teams []apiTeam `json:"teams"`
}

// mapStatus converts provider statuses into the fixture lifecycle
func mapStatus(s string) models.FixtureStatus {
	switch strings.ToUpper(s) {
	case "IN_PLAY", "PAUSED", "LIVE":
		return models.FixtureLive
	case "FINISHED", "AWARDED":
		return models.FixtureFinished
	case "POSTPONED", "SUSPENDED":
		return models.FixturePostponed
	case "CANCELLED":
		return models.FixtureCancelled
	default:
		return models.FixtureScheduled
	}
}

func (m apiMatch) toFixture(competition string, season int) models.Fixture {
	f := models.Fixture{
		ID:          m.ID,
		Competition: competition,
		Season:      season,
		Round:       m.Matchday,
		HomeTeam:    m.HomeTeam.Name,
		AwayTeam:    m.AwayTeam.Name,
		Status:      mapStatus(m.Status),
		KickOff:     m.UTCDate.UTC(),
		UpdatedAt:   m.LastUpdated.UTC(),
	}
	// A finished match without a full-time score is kept as live until the score arrives.
	if f.Status == models.FixtureFinished && (m.Score.FullTime.Home == nil || m.Score.FullTime.Away == nil) {
		f.Status = models.FixtureLive
	}
	if f.Status == models.FixtureFinished || f.Status == models.FixtureLive {
		f.HomeGoals = m.Score.FullTime.Home
		f.AwayGoals = m.Score.FullTime.Away
	}
	return f
}

func (r standingsResponse) toStandings(competition string, season int) []models.Standing {
	for _, s := range r.Standings {
		if s.Type != "" && s.Type != "TOTAL" {
			continue
		}
		out := make([]models.Standing, 0, len(s.Table))
		for _, row := range s.Table {
			out = append(out, models.Standing{
				Competition:    competition,
				Season:         season,
				Position:       row.Position,
				TeamName:       row.Team.Name,
				Played:         row.PlayedGames,
				Points:         row.Points,
				GoalDifference: row.GoalDifference,
				GoalsFor:       row.GoalsFor,
			})
		}
		return out
	}
	return nil
}
