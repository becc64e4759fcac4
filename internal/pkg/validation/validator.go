package validation

import (
	"fmt"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

// ValidateFixture reports fixtures the games cannot use
func ValidateFixture(f models.Fixture) error {
	if f.ID <= 0 {
		return fmt.Errorf("fixture ID must be positive")
	}
	if f.Round <= 0 {
		return fmt.Errorf("fixture %d has no matchday", f.ID)
	}
	if f.HomeTeam == "" || f.AwayTeam == "" {
		return fmt.Errorf("fixture %d is missing a team", f.ID)
	}
	if models.SameTeam(f.HomeTeam, f.AwayTeam) {
		return fmt.Errorf("fixture %d has %s playing itself", f.ID, f.HomeTeam)
	}
	switch f.Status {
	case models.FixtureScheduled, models.FixtureLive, models.FixtureFinished,
		models.FixturePostponed, models.FixtureCancelled:
	default:
		return fmt.Errorf("fixture %d has unknown status %q", f.ID, f.Status)
	}
	if f.KickOff.IsZero() && f.Status != models.FixturePostponed && f.Status != models.FixtureCancelled {
		return fmt.Errorf("fixture %d has no kick-off time", f.ID)
	}
	return nil
}

// CleanFixtures sanitizes fixtures and drops the invalid ones.
// The returned errors describe every dropped fixture.
func CleanFixtures(fixtures []models.Fixture) ([]models.Fixture, []error) {
	kept := make([]models.Fixture, 0, len(fixtures))
	var dropped []error
	for _, f := range fixtures {
		SanitizeFixture(&f)
		if err := ValidateFixture(f); err != nil {
			dropped = append(dropped, err)
			continue
		}
		kept = append(kept, f)
	}
	return kept, dropped
}
