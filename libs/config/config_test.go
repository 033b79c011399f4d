package config

import (
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("PORT", "8086")
	if p, err := Port("PORT", "8080"); err != nil || p != "8086" {
		t.Fatalf("Port = %q, %v", p, err)
	}
	t.Setenv("PORT", "70000")
	if _, err := Port("PORT", "8080"); err == nil {
		t.Fatal("expected out of range port to fail")
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := RequiredString("DATABASE_URL"); err == nil {
		t.Fatal("expected error for missing value")
	}
}

func TestIntAndMinutes(t *testing.T) {
	t.Setenv("EXPIRY_IN_HOURS_GRACE_MINUTES", "")
	if d, err := Minutes("EXPIRY_IN_HOURS_GRACE_MINUTES", 20*time.Minute); err != nil || d != 20*time.Minute {
		t.Fatalf("default Minutes = %v, %v", d, err)
	}
	t.Setenv("EXPIRY_IN_HOURS_GRACE_MINUTES", "45")
	if d, err := Minutes("EXPIRY_IN_HOURS_GRACE_MINUTES", 20*time.Minute); err != nil || d != 45*time.Minute {
		t.Fatalf("Minutes = %v, %v", d, err)
	}
	t.Setenv("EXPIRY_IN_HOURS_GRACE_MINUTES", "-1")
	if _, err := Minutes("EXPIRY_IN_HOURS_GRACE_MINUTES", 20*time.Minute); err == nil {
		t.Fatal("expected negative minutes to fail")
	}
	t.Setenv("RATE_LIMIT_PER_MINUTE", "abc")
	if _, err := Int("RATE_LIMIT_PER_MINUTE", 60, 1); err == nil {
		t.Fatal("expected non-numeric value to fail")
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "off")
	if Bool("OTEL_ENABLED", true) {
		t.Fatal("expected off to be false")
	}
	t.Setenv("OTEL_ENABLED", "maybe")
	if !Bool("OTEL_ENABLED", true) {
		t.Fatal("expected unknown value to use the fallback")
	}
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	got := List("CORS_ALLOWED_ORIGINS", "")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("List = %q", got)
	}
}
