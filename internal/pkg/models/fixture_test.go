package models

import "testing"

func intPtr(v int) *int { return &v }

func TestFixtureResultFor(t *testing.T) {
	finished := Fixture{HomeTeam: "Arsenal FC", AwayTeam: "Chelsea FC", Status: FixtureFinished, HomeGoals: intPtr(2), AwayGoals: intPtr(1)}
	draw := Fixture{HomeTeam: "Arsenal FC", AwayTeam: "Chelsea FC", Status: FixtureFinished, HomeGoals: intPtr(1), AwayGoals: intPtr(1)}
	postponed := Fixture{HomeTeam: "Arsenal FC", AwayTeam: "Chelsea FC", Status: FixturePostponed}
	live := Fixture{HomeTeam: "Arsenal FC", AwayTeam: "Chelsea FC", Status: FixtureLive, HomeGoals: intPtr(0), AwayGoals: intPtr(0)}

	tests := []struct {
		name    string
		fixture Fixture
		team    string
		want    PickResult
	}{
		{"home win backed", finished, "arsenal", PickWon},
		{"away loss backed", finished, "Chelsea", PickLost},
		{"draw loses", draw, "Arsenal", PickLost},
		{"postponed is void", postponed, "Chelsea", PickVoid},
		{"live is pending", live, "Arsenal", PickPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fixture.ResultFor(tt.team); got != tt.want {
				t.Errorf("ResultFor(%q) = %q, want %q", tt.team, got, tt.want)
			}
		})
	}
}

func TestRoundComplete(t *testing.T) {
	done := Fixture{Status: FixtureFinished, HomeGoals: intPtr(0), AwayGoals: intPtr(3)}
	void := Fixture{Status: FixtureCancelled}
	pending := Fixture{Status: FixtureScheduled}

	if RoundComplete(nil) {
		t.Error("empty round must not be complete")
	}
	if !RoundComplete([]Fixture{done, void}) {
		t.Error("finished and void fixtures complete a round")
	}
	if RoundComplete([]Fixture{done, pending}) {
		t.Error("scheduled fixture keeps round open")
	}
}

func TestInstanceStatusTransitions(t *testing.T) {
	if !InstanceOpen.CanTransition(InstanceActive) {
		t.Error("open -> active must be allowed")
	}
	if InstanceCompleted.CanTransition(InstanceActive) {
		t.Error("terminal statuses never transition")
	}
	if InstanceOpen.CanTransition(InstanceCompleted) {
		t.Error("open -> completed must go through active")
	}
}
