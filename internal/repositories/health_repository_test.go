package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/dashmart/promotions/internal/domain"
)

func TestDependencyHealthRepositoryValidation(t *testing.T) {
	if _, err := NewDependencyHealthRepository(nil); err == nil {
		t.Fatal("expected error for empty check list")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Name: " ", Check: func(context.Context) error { return nil }}}); err == nil {
		t.Fatal("expected error for blank check name")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Name: "firestore"}}); err == nil {
		t.Fatal("expected error for nil check function")
	}
}

func TestDependencyHealthRepositoryAllHealthy(t *testing.T) {
	checks := []DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				select {
				case <-time.After(5 * time.Millisecond):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
		{
			Name:  "secretManager",
			Check: func(context.Context) error { return nil },
		},
	}

	now := time.Date(2025, time.June, 10, 9, 30, 0, 0, time.UTC)
	repo, err := NewDependencyHealthRepository(checks,
		WithDependencyClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected status ok, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
	for name, check := range report.Checks {
		if check.Status != domain.HealthStatusOK {
			t.Fatalf("check %s: expected ok, got %s", name, check.Status)
		}
		if check.CheckedAt != now {
			t.Fatalf("check %s: expected checkedAt %s, got %s", name, now, check.CheckedAt)
		}
	}
	if report.GeneratedAt != now {
		t.Fatalf("expected generatedAt %s, got %s", now, report.GeneratedAt)
	}
}

func TestDependencyHealthRepositoryDegradedDependency(t *testing.T) {
	probeErr := errors.New("firestore: connection refused")
	checks := []DependencyCheck{
		{
			Name:  "firestore",
			Check: func(context.Context) error { return probeErr },
		},
		{
			Name:  "secretManager",
			Check: func(context.Context) error { return nil },
		},
	}

	repo, err := NewDependencyHealthRepository(checks)
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected status degraded, got %s", report.Status)
	}
	check := report.Checks["firestore"]
	if check.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected firestore degraded, got %s", check.Status)
	}
	if check.Error != probeErr.Error() {
		t.Fatalf("expected error %q, got %q", probeErr.Error(), check.Error)
	}
	if secret := report.Checks["secretManager"]; secret.Status != domain.HealthStatusOK {
		t.Fatalf("expected secretManager ok, got %s", secret.Status)
	}
}

func TestDependencyHealthRepositorySlowDependencyTimesOut(t *testing.T) {
	checks := []DependencyCheck{
		{
			Name:    "secretManager",
			Timeout: 5 * time.Millisecond,
			Check: func(ctx context.Context) error {
				select {
				case <-time.After(50 * time.Millisecond):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
	}

	repo, err := NewDependencyHealthRepository(checks)
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected status error, got %s", report.Status)
	}
	check := report.Checks["secretManager"]
	if check.Status != domain.HealthStatusError {
		t.Fatalf("expected secretManager error, got %s", check.Status)
	}
	if check.Detail != "timeout" {
		t.Fatalf("expected detail timeout, got %s", check.Detail)
	}
}
