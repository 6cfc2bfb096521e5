package logger

import "testing"

func TestSanitizeKVsRedactsCredentials(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"api_token", "abc123",
		"Email", "agent@example.com",
		"course_id", "c-1",
		"tenant_id", "tenant-7",
		"config", map[string]interface{}{"subdomain": "acme", "api_token": "xyz"},
	})
	if len(out) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_token not redacted: %v", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("email not redacted: %v", out[3])
	}
	if out[5] != "c-1" {
		t.Fatalf("course_id should pass through, got %v", out[5])
	}
	if s, ok := out[7].(string); !ok || len(s) != len("hash:")+12 {
		t.Fatalf("tenant_id should be hashed, got %v", out[7])
	}
	cfg, ok := out[9].(map[string]interface{})
	if !ok {
		t.Fatalf("config should stay a map, got %T", out[9])
	}
	if cfg["subdomain"] != "acme" || cfg["api_token"] != "[REDACTED]" {
		t.Fatalf("nested config not sanitized: %v", cfg)
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"stage", "persist", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %v", out)
	}
}
