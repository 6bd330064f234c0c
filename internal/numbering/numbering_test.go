package numbering

import (
	"testing"
	"time"
)

func TestNextStateYearlyResetsAcrossYearBoundary(t *testing.T) {
	in2025 := time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC)
	year, month, next := NextState(ResetYearly, 2025, 11, 3, in2025)
	if year != 2025 || next != 4 {
		t.Fatalf("expected seq 4 in 2025, got year=%d month=%d next=%d", year, month, next)
	}

	in2026 := time.Date(2026, time.January, 2, 9, 0, 0, 0, time.UTC)
	year, _, next = NextState(ResetYearly, 2025, 11, 3, in2026)
	if year != 2026 {
		t.Fatalf("expected stored year to advance to 2026, got %d", year)
	}
	if next != 1 {
		t.Fatalf("expected sequence to restart at 1 after year boundary, got %d", next)
	}
}

func TestNextStateMonthlyResetsOnMonthAndYear(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	if _, _, next := NextState(ResetMonthly, 2025, 5, 42, now); next != 1 {
		t.Fatalf("expected monthly reset on new month, got %d", next)
	}
	if _, _, next := NextState(ResetMonthly, 2024, 6, 42, now); next != 1 {
		t.Fatalf("expected monthly reset on new year, got %d", next)
	}
	if _, _, next := NextState(ResetMonthly, 2025, 6, 42, now); next != 43 {
		t.Fatalf("expected increment within period, got %d", next)
	}
}

func TestNextStateNeverIgnoresPeriod(t *testing.T) {
	now := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	if _, _, next := NextState(ResetNever, 1999, 12, 900, now); next != 901 {
		t.Fatalf("expected 901, got %d", next)
	}
}

func TestRenderPadsBareSequence(t *testing.T) {
	now := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	if got := Render("", 4, 3, "SK", now); got != "004" {
		t.Fatalf("expected 004, got %q", got)
	}
	if got := Render("", 4, 0, "SK", now); got != "004" {
		t.Fatalf("expected default padding of 3, got %q", got)
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	now := time.Date(2025, time.August, 14, 0, 0, 0, 0, time.UTC)
	got := Render("{seq}/{code}/{roman_month}/{year}", 17, 3, "SK", now)
	if got != "017/SK/VIII/2025" {
		t.Fatalf("unexpected rendered number: %q", got)
	}
	got = Render("{code}-{year}{month}-{seq}", 5, 4, "UM", now)
	if got != "UM-202508-0005" {
		t.Fatalf("unexpected rendered number: %q", got)
	}
}

func TestParsePolicyRejectsUnknownValues(t *testing.T) {
	for _, raw := range []string{"never", "Yearly", " monthly "} {
		if _, err := ParsePolicy(raw); err != nil {
			t.Fatalf("ParsePolicy(%q) error = %v", raw, err)
		}
	}
	if _, err := ParsePolicy("weekly"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
