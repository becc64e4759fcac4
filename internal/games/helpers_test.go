package games

import (
	"time"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func goals(v int) *int { return &v }

func finished(id int64, round int, home, away string, hg, ag int) models.Fixture {
	return models.Fixture{
		ID: id, Round: round, HomeTeam: home, AwayTeam: away,
		HomeGoals: goals(hg), AwayGoals: goals(ag),
		Status: models.FixtureFinished, KickOff: testNow.Add(-48 * time.Hour),
	}
}

func scheduled(id int64, round int, home, away string) models.Fixture {
	return models.Fixture{
		ID: id, Round: round, HomeTeam: home, AwayTeam: away,
		Status: models.FixtureScheduled, KickOff: testNow.Add(48 * time.Hour),
	}
}

func postponed(id int64, round int, home, away string) models.Fixture {
	return models.Fixture{
		ID: id, Round: round, HomeTeam: home, AwayTeam: away,
		Status: models.FixturePostponed, KickOff: testNow.Add(-48 * time.Hour),
	}
}

func activeEntries(ids ...int64) []models.Entry {
	out := make([]models.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Entry{ID: id, InstanceID: 1, UserID: "user", Status: models.EntryActive})
	}
	return out
}

func instance(t models.GameType, start, end int) models.GameInstance {
	return models.GameInstance{
		ID: 1, GameType: t, StartRound: start, EndRound: end, CurrentRound: start,
		Status: models.InstanceActive, StartsAt: testNow.Add(-72 * time.Hour),
	}
}

func entryByID(entries []models.Entry, id int64) (models.Entry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return models.Entry{}, false
}

func ids(entries []models.Entry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
