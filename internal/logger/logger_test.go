package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRedactsSecrets(t *testing.T) {
	got := sanitizeKVs([]any{"api_key", "sk-123", "source", "arxiv", "Webhook_Secret", "s", "dangling"})
	want := []any{"api_key", redacted, "source", "arxiv", "Webhook_Secret", redacted, "dangling"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kv[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("stage", "ingest").Info("done", "created", 3, "token", "abc")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["stage"] != "ingest" {
		t.Fatalf("stage = %v", fields["stage"])
	}
	if fields["token"] != redacted {
		t.Fatalf("token not redacted: %v", fields["token"])
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("dev", "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
