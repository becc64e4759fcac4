package games

import (
	"sort"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

// TablePredictorRules: predict the final table. Score is the sum of position
// errors against the real standings; the lowest score wins once the last
// round is complete.
type TablePredictorRules struct{}

func (TablePredictorRules) GameType() models.GameType { return models.TablePredictor }

func (TablePredictorRules) ValidateSubmission(in SubmissionInput) error {
	inst := in.Instance
	if inst.Status != models.InstanceOpen {
		return invalidf("table predictions close when the instance starts")
	}
	if !in.Now.Before(inst.StartsAt) {
		return ErrLocked
	}
	if !in.Entry.Alive() {
		return invalidf("entry is %s", in.Entry.Status)
	}
	positions := in.Submission.Positions
	if len(in.Teams) == 0 {
		return invalidf("competition teams are not known yet")
	}
	if len(positions) != len(in.Teams) {
		return invalidf("expected %d teams, got %d", len(in.Teams), len(positions))
	}
	known := make(map[string]bool, len(in.Teams))
	for _, t := range in.Teams {
		known[models.NormalizeTeamName(t)] = true
	}
	seen := make(map[string]bool, len(positions))
	for _, p := range positions {
		n := models.NormalizeTeamName(p)
		if !known[n] {
			return invalidf("unknown team %q", p)
		}
		if seen[n] {
			return invalidf("team %q listed twice", p)
		}
		seen[n] = true
	}
	return nil
}

// TableScore returns Σ |predicted − actual| over the predicted teams.
// Teams missing from the standings count the largest possible distance.
func TableScore(positions []string, standings []models.Standing) int {
	actual := make(map[string]int, len(standings))
	for _, s := range standings {
		actual[models.NormalizeTeamName(s.TeamName)] = s.Position
	}
	worst := len(standings) - 1
	if worst < 0 {
		worst = 0
	}
	score := 0
	for i, team := range positions {
		pos, ok := actual[models.NormalizeTeamName(team)]
		if !ok {
			score += worst
			continue
		}
		diff := i + 1 - pos
		if diff < 0 {
			diff = -diff
		}
		score += diff
	}
	return score
}

func (TablePredictorRules) Evaluate(in RoundInput) (Outcome, error) {
	inst := in.Instance
	out := Outcome{Instance: inst}
	if inst.Status != models.InstanceActive {
		return out, nil
	}

	book := newEntryBook(in.Entries)
	tables := make(map[int64]models.TablePrediction, len(in.Tables))
	for _, t := range in.Tables {
		tables[t.EntryID] = t
	}

	standings := append([]models.Standing(nil), in.Standings...)
	sort.Slice(standings, func(i, j int) bool { return standings[i].Position < standings[j].Position })

	for _, e := range book.alive() {
		t, ok := tables[e.ID]
		if !ok {
			// No table was submitted before the start.
			book.eliminate(e.ID, inst.StartRound)
			continue
		}
		if len(standings) > 0 {
			book.setScore(e.ID, TableScore(t.Positions, standings))
		}
	}

	if len(standings) > 0 && roundsComplete(in.Fixtures, inst.StartRound, inst.EndRound) {
		alive := book.alive()
		if len(alive) == 0 {
			finish(&inst, models.InstanceRolledOver, in.Now)
		} else {
			best := alive[0].Score
			for _, e := range alive[1:] {
				if e.Score < best {
					best = e.Score
				}
			}
			var winners []int64
			for _, e := range alive {
				if e.Score == best {
					winners = append(winners, e.ID)
				}
			}
			book.settle(winners, inst.EndRound)
			finish(&inst, models.InstanceCompleted, in.Now)
		}
		for r := inst.StartRound; r <= inst.EndRound; r++ {
			out.SettledRounds = append(out.SettledRounds, r)
		}
	}

	book.fill(&out)
	out.Instance = inst
	return out, nil
}

// roundsComplete reports whether every round in [from, to] is complete
func roundsComplete(fixtures []models.Fixture, from, to int) bool {
	for r := from; r <= to; r++ {
		if !models.RoundComplete(models.FixturesForRound(fixtures, r)) {
			return false
		}
	}
	return true
}
