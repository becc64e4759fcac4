package games

import (
	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

// LastManStandingRules: pick one team per round, survive only if it wins,
// and never back the same team twice.
type LastManStandingRules struct{}

func (LastManStandingRules) GameType() models.GameType { return models.LastManStanding }

func (LastManStandingRules) ValidateSubmission(in SubmissionInput) error {
	inst := in.Instance
	if inst.Status != models.InstanceOpen && inst.Status != models.InstanceActive {
		return invalidf("instance is %s", inst.Status)
	}
	if !in.Entry.Alive() {
		return invalidf("entry is %s", in.Entry.Status)
	}
	// Picks for later rounds may be made ahead; settlement can skip past a
	// round the processor has not seen yet.
	round := in.Submission.Round
	first := max(inst.CurrentRound, inst.StartRound)
	if round < first || round > inst.EndRound {
		return invalidf("picks are open for rounds %d to %d", first, inst.EndRound)
	}
	team := in.Submission.TeamName
	if models.NormalizeTeamName(team) == "" {
		return invalidf("team is required")
	}

	var fixture *models.Fixture
	for i := range in.Fixtures {
		if in.Fixtures[i].Round == round && in.Fixtures[i].Involves(team) {
			fixture = &in.Fixtures[i]
			break
		}
	}
	if fixture == nil {
		return invalidf("%s has no fixture in round %d", team, round)
	}
	if !in.Now.Before(fixture.KickOff) {
		return ErrLocked
	}

	for _, p := range in.EntryPicks {
		if p.Round == round {
			// Replacing this round's pick is fine until the old pick kicks off.
			for _, f := range in.Fixtures {
				if f.Round == round && f.Involves(p.TeamName) && !in.Now.Before(f.KickOff) {
					return ErrLocked
				}
			}
			continue
		}
		if models.SameTeam(p.TeamName, team) {
			return invalidf("%s was already used in round %d", team, p.Round)
		}
	}
	return nil
}

func (LastManStandingRules) Evaluate(in RoundInput) (Outcome, error) {
	inst := in.Instance
	out := Outcome{Instance: inst}
	if inst.Status != models.InstanceActive {
		return out, nil
	}

	book := newEntryBook(in.Entries)
	picks := make(map[int64]map[int]models.Pick)
	for _, p := range in.Picks {
		if picks[p.EntryID] == nil {
			picks[p.EntryID] = make(map[int]models.Pick)
		}
		picks[p.EntryID][p.Round] = p
	}

	for {
		round := inst.CurrentRound
		alive := book.alive()
		if len(alive) == 0 {
			finish(&inst, models.InstanceRolledOver, in.Now)
			break
		}

		fixtures := models.FixturesForRound(in.Fixtures, round)
		if !models.RoundComplete(fixtures) {
			break
		}

		for _, e := range alive {
			p, ok := picks[e.ID][round]
			if !ok {
				book.eliminate(e.ID, round)
				continue
			}
			result := models.PickVoid
			for _, f := range fixtures {
				if f.Involves(p.TeamName) {
					result = f.ResultFor(p.TeamName)
					break
				}
			}
			if p.Result != result {
				p.Result = result
				settled := in.Now
				p.SettledAt = &settled
				out.Picks = append(out.Picks, p)
			}
			if result == models.PickLost {
				book.eliminate(e.ID, round)
			}
		}
		out.SettledRounds = append(out.SettledRounds, round)

		survivors := book.alive()
		switch {
		case len(survivors) == 0:
			// Everyone still standing went out together.
			finish(&inst, models.InstanceRolledOver, in.Now)
		case len(survivors) == 1, round >= inst.EndRound:
			for _, e := range survivors {
				book.crown(e.ID)
			}
			finish(&inst, models.InstanceCompleted, in.Now)
		default:
			inst.CurrentRound++
			inst.UpdatedAt = in.Now
		}
		if inst.Status.Terminal() {
			break
		}
	}

	book.fill(&out)
	out.Instance = inst
	return out, nil
}
