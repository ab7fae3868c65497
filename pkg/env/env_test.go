package env

import "testing"

func TestKeyAddsPrefix(t *testing.T) {
	if got := Key("log_format"); got != "PROMOREDEEM_LOG_FORMAT" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestGetFallsBackOnBlank(t *testing.T) {
	t.Setenv("PROMOREDEEM_LOG_FORMAT", "  ")
	if got := Get(Key("log_format"), "json"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("PROMOREDEEM_LOG_FORMAT", "console")
	if got := Get(Key("log_format"), "json"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
}
