package healthcheck

import (
	"context"
	"testing"
)

type testChecker struct {
	items []CheckResult
}

func (c *testChecker) ListChecks(ctx context.Context) []CheckResult {
	return c.items
}

func TestRunCombinesCheckers(t *testing.T) {
	t.Parallel()

	report := Run(context.Background(),
		&testChecker{items: []CheckResult{{ID: "routing.table", Status: StatusOK}}},
		nil,
		&testChecker{items: []CheckResult{{ID: "discord.gateway", Status: StatusWarn}}},
	)
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
	if report.Checks[0].ID != "discord.gateway" {
		t.Fatalf("expected sorted checks, got %s first", report.Checks[0].ID)
	}
	if report.Status != StatusWarn {
		t.Fatalf("unexpected overall status: %s", report.Status)
	}
}

func TestOverall(t *testing.T) {
	t.Parallel()

	cases := []struct {
		statuses []string
		want     string
	}{
		{statuses: nil, want: StatusUnknown},
		{statuses: []string{StatusOK, StatusOK}, want: StatusOK},
		{statuses: []string{StatusOK, StatusUnknown, StatusWarn}, want: StatusUnknown},
		{statuses: []string{StatusWarn, StatusError}, want: StatusError},
	}
	for _, tc := range cases {
		checks := make([]CheckResult, 0, len(tc.statuses))
		for _, s := range tc.statuses {
			checks = append(checks, CheckResult{Status: s})
		}
		if got := Overall(checks); got != tc.want {
			t.Fatalf("statuses=%v want=%s got=%s", tc.statuses, tc.want, got)
		}
	}
}
