package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte("\"request_id\"")) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})
	quiet.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("did not expect stack when warn stack disabled")
	}
}

func TestWithRedemptionFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "redeem", Output: buf})

	ctx := log.WithRedemption(context.Background(), "voucher.redeem", "V1", 42)
	log.Info(ctx, "redeemed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry["operation"] != "voucher.redeem" || entry["code"] != "V1" {
		t.Fatalf("missing redemption fields: %v", entry)
	}
	if entry["actor_id"] != float64(42) {
		t.Fatalf("unexpected actor id %v", entry["actor_id"])
	}
	if entry["service"] != "redeem" {
		t.Fatalf("unexpected service %v", entry["service"])
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" DEBUG "); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %v", lvl)
	}
}

func TestChildFieldsDoNotLeakIntoParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	parent := log.WithUserID(context.Background(), 7)
	child := log.WithField(parent, "job", "ledger-audit")

	log.Info(parent, "parent")
	log.Info(child, "child")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected two entries, got %d", len(lines))
	}
	var first, second map[string]any
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("decode parent entry: %v", err)
	}
	if err := json.Unmarshal(lines[1], &second); err != nil {
		t.Fatalf("decode child entry: %v", err)
	}
	if _, leaked := first["job"]; leaked {
		t.Fatalf("child field leaked into parent: %v", first)
	}
	if second["job"] != "ledger-audit" || second["user_id"] != float64(7) {
		t.Fatalf("child entry missing fields: %v", second)
	}
}

func TestInfoWithoutContextFieldsUsesBaseLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "bare", Output: buf})
	log.Info(context.TODO(), "hello")
	if !bytes.Contains(buf.Bytes(), []byte(`"service":"bare"`)) {
		t.Fatalf("expected service field, got %s", buf.String())
	}
}
