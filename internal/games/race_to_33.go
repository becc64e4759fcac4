package games

import (
	"math/rand"
	"sort"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

// DefaultRaceTarget is the goal count that wins Race to 33
const DefaultRaceTarget = 33

// RaceTo33Rules: each entry is dealt teams, and the first entry whose teams
// reach the target goal count (at the end of a complete round) wins.
type RaceTo33Rules struct{}

func (RaceTo33Rules) GameType() models.GameType { return models.RaceTo33 }

func (RaceTo33Rules) ValidateSubmission(in SubmissionInput) error {
	return invalidf("race to 33 teams are assigned, not picked")
}

// AssignTeams deals teams to entries. The shuffle is seeded with the instance
// ID so re-running an activation yields the same assignment. With more entries
// than teams every entry still gets one team and teams are shared.
func AssignTeams(instanceID int64, entries []models.Entry, teams []string) []models.TeamAssignment {
	if len(entries) == 0 || len(teams) == 0 {
		return nil
	}
	pool := make([]string, 0, len(teams))
	seen := make(map[string]bool, len(teams))
	for _, t := range teams {
		n := models.NormalizeTeamName(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		pool = append(pool, t)
	}
	sort.Slice(pool, func(i, j int) bool {
		return models.NormalizeTeamName(pool[i]) < models.NormalizeTeamName(pool[j])
	})
	rng := rand.New(rand.NewSource(instanceID))
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	ordered := append([]models.Entry(nil), entries...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var out []models.TeamAssignment
	if len(ordered) > len(pool) {
		for i, e := range ordered {
			out = append(out, models.TeamAssignment{EntryID: e.ID, InstanceID: instanceID, TeamName: pool[i%len(pool)]})
		}
		return out
	}
	per := len(pool) / len(ordered)
	for i, e := range ordered {
		for _, t := range pool[i*per : (i+1)*per] {
			out = append(out, models.TeamAssignment{EntryID: e.ID, InstanceID: instanceID, TeamName: t})
		}
	}
	return out
}

func (RaceTo33Rules) Evaluate(in RoundInput) (Outcome, error) {
	inst := in.Instance
	out := Outcome{Instance: inst}
	if inst.Status != models.InstanceActive {
		return out, nil
	}
	target := in.RaceTarget
	if target <= 0 {
		target = DefaultRaceTarget
	}

	book := newEntryBook(in.Entries)
	teams := make(map[int64][]string)
	for _, a := range in.Assignments {
		teams[a.EntryID] = append(teams[a.EntryID], a.TeamName)
	}
	goalsUpTo := func(entryID int64, round int) int {
		total := 0
		for _, f := range in.Fixtures {
			if f.Round < inst.StartRound || f.Round > round || !f.Finished() {
				continue
			}
			for _, t := range teams[entryID] {
				total += f.GoalsFor(t)
			}
		}
		return total
	}

	alive := book.alive()
	for _, e := range alive {
		book.setScore(e.ID, goalsUpTo(e.ID, inst.EndRound))
	}

	for round := inst.StartRound; round <= inst.EndRound; round++ {
		if !models.RoundComplete(models.FixturesForRound(in.Fixtures, round)) {
			break
		}
		out.SettledRounds = append(out.SettledRounds, round)
		best := 0
		totals := make(map[int64]int, len(alive))
		for _, e := range alive {
			totals[e.ID] = goalsUpTo(e.ID, round)
			if totals[e.ID] > best {
				best = totals[e.ID]
			}
		}
		if best >= target {
			var winners []int64
			for _, e := range alive {
				if totals[e.ID] == best {
					winners = append(winners, e.ID)
				}
			}
			book.settle(winners, round)
			finish(&inst, models.InstanceCompleted, in.Now)
			break
		}
		if round == inst.EndRound {
			book.settle(nil, round)
			finish(&inst, models.InstanceRolledOver, in.Now)
		}
	}
	if !inst.Status.Terminal() && len(out.SettledRounds) > 0 {
		next := out.SettledRounds[len(out.SettledRounds)-1] + 1
		if next > inst.CurrentRound && next <= inst.EndRound {
			inst.CurrentRound = next
			inst.UpdatedAt = in.Now
		}
	}

	book.fill(&out)
	out.Instance = inst
	return out, nil
}
