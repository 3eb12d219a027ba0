package review

// StrikePolicy holds the configurable thresholds of the strike machine. The
// machine itself (warnings reset when they promote to a violation) is fixed.
type StrikePolicy struct {
	// WarningsBeforeViolation is the number of lapses that compound into one
	// violation. The default 3 means two recorded warnings, then the third
	// lapse promotes.
	WarningsBeforeViolation int

	// ViolationsBeforeSuspension is the number of violations that suspend
	// the account.
	ViolationsBeforeSuspension int
}

// DefaultStrikePolicy returns the stock 3-lapse / 3-violation thresholds.
func DefaultStrikePolicy() StrikePolicy {
	return StrikePolicy{
		WarningsBeforeViolation:    3,
		ViolationsBeforeSuspension: 3,
	}
}

// StrikeResult is the outcome of applying one missed deadline to a
// reviewer's counters.
type StrikeResult struct {
	Warnings   int
	Violations int
	Kind       IncidentKind
	Suspended  bool
}

// ApplyStrike runs the strike machine over the current counters for a single
// missed deadline. Pure function; callers persist the result and the
// suspension side effects (active=false, presence=offline) in the same
// transaction as the requeue.
func ApplyStrike(warnings, violations int, p StrikePolicy) StrikeResult {
	if p.WarningsBeforeViolation <= 0 || p.ViolationsBeforeSuspension <= 0 {
		p = DefaultStrikePolicy()
	}

	res := StrikeResult{Warnings: warnings, Violations: violations}
	if warnings+1 < p.WarningsBeforeViolation {
		res.Warnings = warnings + 1
		res.Kind = IncidentWarning
		return res
	}

	res.Warnings = 0
	res.Violations = violations + 1
	res.Kind = IncidentViolation
	if res.Violations >= p.ViolationsBeforeSuspension {
		res.Kind = IncidentSuspension
		res.Suspended = true
	}
	return res
}
