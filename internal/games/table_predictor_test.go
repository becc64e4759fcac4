package games

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

func standings(teams ...string) []models.Standing {
	out := make([]models.Standing, 0, len(teams))
	for i, t := range teams {
		out = append(out, models.Standing{Position: i + 1, TeamName: t})
	}
	return out
}

func TestTableScore(t *testing.T) {
	st := standings("Arsenal FC", "Liverpool FC", "Chelsea FC", "Everton FC")
	tests := []struct {
		name      string
		positions []string
		want      int
	}{
		{"perfect", []string{"Arsenal", "Liverpool", "Chelsea", "Everton"}, 0},
		{"swap top two", []string{"Liverpool", "Arsenal", "Chelsea", "Everton"}, 2},
		{"reversed", []string{"Everton", "Chelsea", "Liverpool", "Arsenal"}, 8},
		{"unknown team", []string{"Arsenal", "Liverpool", "Chelsea", "Wrexham"}, 3},
	}
	for _, tt := range tests {
		if got := TableScore(tt.positions, st); got != tt.want {
			t.Errorf("%s: TableScore = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestTablePredictor_ScoresAndSettles(t *testing.T) {
	in := RoundInput{
		Instance:  instance(models.TablePredictor, 1, 2),
		Now:       testNow,
		Standings: standings("Arsenal", "Liverpool", "Chelsea"),
		Fixtures: []models.Fixture{
			finished(1, 1, "Arsenal", "Chelsea", 1, 0),
			finished(2, 2, "Liverpool", "Chelsea", 2, 0),
		},
		Entries: activeEntries(1, 2, 3, 4),
		Tables: []models.TablePrediction{
			{EntryID: 1, Positions: []string{"Arsenal", "Liverpool", "Chelsea"}},
			{EntryID: 2, Positions: []string{"Liverpool", "Arsenal", "Chelsea"}},
			{EntryID: 3, Positions: []string{"Arsenal", "Liverpool", "Chelsea"}},
		},
	}
	out, err := TablePredictorRules{}.Evaluate(in)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.Instance.Status != models.InstanceCompleted {
		t.Fatalf("status = %s, want completed", out.Instance.Status)
	}
	if diff := cmp.Diff([]int64{1, 3}, ids(out.Winners)); diff != "" {
		t.Errorf("winners mismatch (-want +got):\n%s", diff)
	}
	// entry 4 never submitted a table, entry 2 lost on score
	if diff := cmp.Diff([]int64{4, 2}, ids(out.Eliminated)); diff != "" {
		t.Errorf("eliminated mismatch (-want +got):\n%s", diff)
	}
}

func TestTablePredictor_KeepsRunningUntilLastRound(t *testing.T) {
	in := RoundInput{
		Instance:  instance(models.TablePredictor, 1, 2),
		Now:       testNow,
		Standings: standings("Arsenal", "Liverpool"),
		Fixtures:  []models.Fixture{finished(1, 1, "Arsenal", "Liverpool", 1, 0), scheduled(2, 2, "Liverpool", "Arsenal")},
		Entries:   activeEntries(1),
		Tables:    []models.TablePrediction{{EntryID: 1, Positions: []string{"Liverpool", "Arsenal"}}},
	}
	out, _ := TablePredictorRules{}.Evaluate(in)
	if out.Settled() {
		t.Fatal("must not settle before the last round")
	}
	if len(out.Entries) != 1 || out.Entries[0].Score != 2 {
		t.Errorf("entries = %+v, want score 2", out.Entries)
	}
}

func TestTablePredictor_ValidateSubmission(t *testing.T) {
	inst := instance(models.TablePredictor, 1, 38)
	inst.Status = models.InstanceOpen
	inst.StartsAt = testNow.Add(time.Hour)
	teams := []string{"Arsenal FC", "Liverpool FC", "Chelsea FC"}
	entry := activeEntries(1)[0]

	tests := []struct {
		name      string
		positions []string
		now       time.Time
		wantErr   error
	}{
		{"valid", []string{"Chelsea", "Arsenal", "Liverpool"}, testNow, nil},
		{"too short", []string{"Chelsea", "Arsenal"}, testNow, ErrInvalidPick},
		{"duplicate", []string{"Chelsea", "Chelsea FC", "Arsenal"}, testNow, ErrInvalidPick},
		{"unknown", []string{"Chelsea", "Arsenal", "Wrexham"}, testNow, ErrInvalidPick},
		{"after start", []string{"Chelsea", "Arsenal", "Liverpool"}, testNow.Add(2 * time.Hour), ErrLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TablePredictorRules{}.ValidateSubmission(SubmissionInput{
				Instance: inst, Entry: entry, Teams: teams, Now: tt.now,
				Submission: Submission{Positions: tt.positions},
			})
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
