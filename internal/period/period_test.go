package period

import (
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	got := Key(time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC))
	if got != "2026-01" {
		t.Errorf("key = %q, want %q", got, "2026-01")
	}
}

func TestKeyUsesLocation(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	// 22:30 UTC on Jan 31 is already February in Moscow.
	instant := time.Date(2026, 1, 31, 22, 30, 0, 0, time.UTC)
	if got := Key(instant.In(moscow)); got != "2026-02" {
		t.Errorf("key = %q, want %q", got, "2026-02")
	}
}

func TestLabel(t *testing.T) {
	d := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		locale string
		want   string
	}{
		{"en", "October 2026"},
		{"", "October 2026"},
		{"ru", "Октябрь 2026"},
		{"RU", "Октябрь 2026"},
	}
	for _, tt := range tests {
		if got := Label(d, tt.locale); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.locale, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	got, err := Parse("2026-03", time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parsed = %v, want %v", got, want)
	}

	if _, err := Parse("March 2026", time.UTC); err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestPrevious(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), "2026-02"},
		{time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), "2025-12"},
	}
	for _, tt := range tests {
		if got := Previous(tt.in); got != tt.want {
			t.Errorf("Previous(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContains(t *testing.T) {
	d := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	if !Contains("2026-10", d) {
		t.Error("expected October to contain Oct 1")
	}
	if Contains("2026-09", d) {
		t.Error("expected September not to contain Oct 1")
	}
}
