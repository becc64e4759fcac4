package games

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

func TestAssignTeams_DeterministicAndEven(t *testing.T) {
	teams := []string{"Arsenal", "Chelsea", "Liverpool", "Everton", "Fulham", "Brentford", "Wolves"}
	entries := activeEntries(3, 1, 2)

	a1 := AssignTeams(42, entries, teams)
	a2 := AssignTeams(42, entries, teams)
	if diff := cmp.Diff(a1, a2); diff != "" {
		t.Fatalf("assignment not deterministic:\n%s", diff)
	}

	perEntry := map[int64]int{}
	seen := map[string]bool{}
	for _, a := range a1 {
		perEntry[a.EntryID]++
		if seen[a.TeamName] {
			t.Errorf("team %s assigned twice", a.TeamName)
		}
		seen[a.TeamName] = true
	}
	if diff := cmp.Diff(map[int64]int{1: 2, 2: 2, 3: 2}, perEntry); diff != "" {
		t.Errorf("teams per entry mismatch (-want +got):\n%s", diff)
	}
}

func TestAssignTeams_MoreEntriesThanTeams(t *testing.T) {
	out := AssignTeams(7, activeEntries(1, 2, 3), []string{"Arsenal", "Chelsea"})
	if len(out) != 3 {
		t.Fatalf("assignments = %d, want 3", len(out))
	}
	if out[0].TeamName == out[1].TeamName || out[2].TeamName != out[0].TeamName {
		t.Errorf("unexpected sharing: %+v", out)
	}
}

func TestRaceTo33_FirstToTargetWins(t *testing.T) {
	in := RoundInput{
		Instance: instance(models.RaceTo33, 1, 38),
		Now:      testNow,
		Fixtures: []models.Fixture{
			finished(1, 1, "Arsenal", "Chelsea", 2, 1),
			finished(2, 1, "Liverpool", "Everton", 1, 0),
			finished(3, 2, "Arsenal", "Everton", 3, 0),
			finished(4, 2, "Chelsea", "Liverpool", 1, 1),
			scheduled(5, 3, "Arsenal", "Liverpool"),
		},
		Entries: activeEntries(1, 2),
		Assignments: []models.TeamAssignment{
			{EntryID: 1, TeamName: "Arsenal"},
			{EntryID: 2, TeamName: "Chelsea"},
			{EntryID: 2, TeamName: "Liverpool"},
		},
		RaceTarget: 5,
	}
	out, err := RaceTo33Rules{}.Evaluate(in)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.Instance.Status != models.InstanceCompleted {
		t.Fatalf("status = %s, want completed", out.Instance.Status)
	}
	// After round 2: entry 1 = 5 goals, entry 2 = 1+1+1+1 = 4.
	if diff := cmp.Diff([]int64{1}, ids(out.Winners)); diff != "" {
		t.Errorf("winners mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2}, out.SettledRounds); diff != "" {
		t.Errorf("settled rounds mismatch (-want +got):\n%s", diff)
	}
}

func TestRaceTo33_AdvancesWhileBelowTarget(t *testing.T) {
	in := RoundInput{
		Instance:    instance(models.RaceTo33, 1, 38),
		Now:         testNow,
		Fixtures:    []models.Fixture{finished(1, 1, "Arsenal", "Chelsea", 2, 1), scheduled(2, 2, "Arsenal", "Chelsea")},
		Entries:     activeEntries(1, 2),
		Assignments: []models.TeamAssignment{{EntryID: 1, TeamName: "Arsenal"}, {EntryID: 2, TeamName: "Chelsea"}},
	}
	out, _ := RaceTo33Rules{}.Evaluate(in)
	if out.Settled() {
		t.Fatal("nobody reached 33")
	}
	if out.Instance.CurrentRound != 2 {
		t.Errorf("current round = %d, want 2", out.Instance.CurrentRound)
	}
	scores := map[int64]int{}
	for _, e := range out.Entries {
		scores[e.ID] = e.Score
	}
	if diff := cmp.Diff(map[int64]int{1: 2, 2: 1}, scores); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}
}

func TestRaceTo33_RollsOverAtSeasonEnd(t *testing.T) {
	in := RoundInput{
		Instance:    instance(models.RaceTo33, 1, 1),
		Now:         testNow,
		Fixtures:    []models.Fixture{finished(1, 1, "Arsenal", "Chelsea", 2, 1)},
		Entries:     activeEntries(1, 2),
		Assignments: []models.TeamAssignment{{EntryID: 1, TeamName: "Arsenal"}, {EntryID: 2, TeamName: "Chelsea"}},
	}
	out, _ := RaceTo33Rules{}.Evaluate(in)
	if out.Instance.Status != models.InstanceRolledOver {
		t.Fatalf("status = %s, want rolled_over", out.Instance.Status)
	}
}

func TestRegistry(t *testing.T) {
	for _, gt := range models.GameTypes {
		r, ok := ForType(gt)
		if !ok {
			t.Fatalf("no rules registered for %s", gt)
		}
		if r.GameType() != gt {
			t.Errorf("rules for %s report %s", gt, r.GameType())
		}
	}
	if _, err := MustForType("darts"); err == nil {
		t.Error("expected error for unknown game type")
	}
}
