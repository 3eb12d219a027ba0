package review

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestApplyStrike_FirstWarning(t *testing.T) {
	res := ApplyStrike(0, 0, DefaultStrikePolicy())

	require.Equal(t, 1, res.Warnings)
	require.Equal(t, 0, res.Violations)
	require.Equal(t, IncidentWarning, res.Kind)
	require.False(t, res.Suspended)
}

func TestApplyStrike_SecondWarning(t *testing.T) {
	res := ApplyStrike(1, 0, DefaultStrikePolicy())

	require.Equal(t, 2, res.Warnings)
	require.Equal(t, 0, res.Violations)
	require.Equal(t, IncidentWarning, res.Kind)
}

func TestApplyStrike_ThirdLapsePromotes(t *testing.T) {
	// Two warnings on the books; the third lapse compounds into a violation
	// and resets the warning counter.
	res := ApplyStrike(2, 1, DefaultStrikePolicy())

	require.Equal(t, 0, res.Warnings, "warnings should reset on promotion")
	require.Equal(t, 2, res.Violations)
	require.Equal(t, IncidentViolation, res.Kind)
	require.False(t, res.Suspended, "two violations do not suspend")
}

func TestApplyStrike_ThirdViolationSuspends(t *testing.T) {
	res := ApplyStrike(2, 2, DefaultStrikePolicy())

	require.Equal(t, 0, res.Warnings)
	require.Equal(t, 3, res.Violations)
	require.Equal(t, IncidentSuspension, res.Kind)
	require.True(t, res.Suspended)
}

func TestApplyStrike_ZeroPolicyFallsBackToDefaults(t *testing.T) {
	res := ApplyStrike(2, 2, StrikePolicy{})

	require.True(t, res.Suspended, "zero-value policy should behave like the default thresholds")
}

// TestApplyStrike_Properties is a property-based test using rapid. It checks
// counter bounds, reset-on-promotion, and the suspension condition for
// arbitrary thresholds and in-bounds starting counters.
func TestApplyStrike_Properties(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		policy := StrikePolicy{
			WarningsBeforeViolation:    rapid.IntRange(1, 6).Draw(r, "warnCap"),
			ViolationsBeforeSuspension: rapid.IntRange(1, 6).Draw(r, "violCap"),
		}
		warnings := rapid.IntRange(0, policy.WarningsBeforeViolation-1).Draw(r, "warnings")
		violations := rapid.IntRange(0, policy.ViolationsBeforeSuspension-1).Draw(r, "violations")

		res := ApplyStrike(warnings, violations, policy)

		if res.Warnings < 0 || res.Warnings >= policy.WarningsBeforeViolation {
			r.Fatalf("warnings out of bounds: %d with cap %d", res.Warnings, policy.WarningsBeforeViolation)
		}
		if res.Violations < violations || res.Violations > policy.ViolationsBeforeSuspension {
			r.Fatalf("violations moved illegally: %d → %d", violations, res.Violations)
		}

		// Warnings only reset on a promotion, and a promotion always resets.
		switch res.Kind {
		case IncidentWarning:
			if res.Warnings != warnings+1 || res.Violations != violations {
				r.Fatalf("warning must increment warnings only: %+v", res)
			}
		case IncidentViolation, IncidentSuspension:
			if res.Warnings != 0 || res.Violations != violations+1 {
				r.Fatalf("promotion must reset warnings and bump violations: %+v", res)
			}
		default:
			r.Fatalf("unknown incident kind %q", res.Kind)
		}

		// Suspension exactly when the violation cap is reached.
		wantSuspended := res.Violations >= policy.ViolationsBeforeSuspension
		if res.Suspended != wantSuspended {
			r.Fatalf("suspended=%v, want %v at violations=%d cap=%d",
				res.Suspended, wantSuspended, res.Violations, policy.ViolationsBeforeSuspension)
		}
		if res.Suspended && res.Kind != IncidentSuspension {
			r.Fatalf("suspension must carry the suspension kind, got %q", res.Kind)
		}
	})
}

func TestApplyStrike_SuspensionPathFromClean(t *testing.T) {
	// Walk a clean reviewer through every lapse until suspension. With the
	// default thresholds that is 9 missed deadlines.
	policy := DefaultStrikePolicy()
	warnings, violations := 0, 0
	lapses := 0
	for {
		res := ApplyStrike(warnings, violations, policy)
		warnings, violations = res.Warnings, res.Violations
		lapses++
		if res.Suspended {
			break
		}
		require.Less(t, lapses, 100, "strike machine must terminate")
	}

	require.Equal(t, 9, lapses)
	require.Equal(t, 3, violations)
	require.Equal(t, 0, warnings)
}
