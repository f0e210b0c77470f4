package navigate

import (
	"context"
	"testing"
	"time"
)

func TestBackoffStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if backoff(ctx, 3) {
		t.Error("backoff must report false once the context is cancelled")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("backoff slept %v against a cancelled context", elapsed)
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"simple", `<html><head><title>Robot Check</title></head></html>`, "Robot Check"},
		{"whitespace trimmed", "<title>\n  Acme Widget  \n</title>", "Acme Widget"},
		{"no title", `<html><body><p>hi</p></body></html>`, ""},
		{"empty title", `<title></title>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTitle([]byte(tt.body)); got != tt.want {
				t.Errorf("extractTitle(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}
