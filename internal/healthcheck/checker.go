package healthcheck

import (
	"context"
	"sort"
)

const (
	// StatusOK indicates check passed.
	StatusOK = "ok"
	// StatusWarn indicates check completed with warning.
	StatusWarn = "warn"
	// StatusError indicates check failed.
	StatusError = "error"
	// StatusUnknown indicates check result is not yet known.
	StatusUnknown = "unknown"
)

// CheckResult is one runtime check item produced by a checker.
type CheckResult struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Subtitle string         `json:"subtitle,omitempty"`
	Status   string         `json:"status"`
	Summary  string         `json:"summary"`
	Detail   string         `json:"detail,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Checker evaluates one or more runtime checks.
type Checker interface {
	ListChecks(ctx context.Context) []CheckResult
}

// Report is the combined result of several checkers.
type Report struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// Run evaluates every checker and folds the results into a Report. Checks
// are sorted by ID.
func Run(ctx context.Context, checkers ...Checker) Report {
	checks := make([]CheckResult, 0, len(checkers))
	for _, c := range checkers {
		if c == nil {
			continue
		}
		checks = append(checks, c.ListChecks(ctx)...)
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].ID < checks[j].ID })
	return Report{Status: Overall(checks), Checks: checks}
}

// Overall returns the worst status in checks. No checks is unknown.
func Overall(checks []CheckResult) string {
	if len(checks) == 0 {
		return StatusUnknown
	}
	worst := StatusOK
	for _, c := range checks {
		if rank(c.Status) > rank(worst) {
			worst = c.Status
		}
	}
	return worst
}

func rank(status string) int {
	switch status {
	case StatusOK:
		return 0
	case StatusWarn:
		return 1
	case StatusUnknown:
		return 2
	case StatusError:
		return 3
	default:
		return 2
	}
}
