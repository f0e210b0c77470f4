package fetcher

import (
	"errors"
	"testing"

	"github.com/sellerscope/pdpfetch/models"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    string
		wantErr bool
	}{
		{"bare item id", "B0TESTASI1", "https://www.amazon.com/dp/B0TESTASI1", false},
		{"lowercase item id", "b0testasi1", "https://www.amazon.com/dp/B0TESTASI1", false},
		{"full url", "https://www.amazon.com/dp/B0TESTASI1?th=1", "https://www.amazon.com/dp/B0TESTASI1?th=1", false},
		{"schemeless url", "www.amazon.com/dp/B0TESTASI1", "https://www.amazon.com/dp/B0TESTASI1", false},
		{"whitespace trimmed", "  B0TESTASI1  ", "https://www.amazon.com/dp/B0TESTASI1", false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"bad scheme", "ftp://example.com/file", "", true},
		{"not a url or id", "://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalURL(tt.locator)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CanonicalURL(%q) succeeded with %q, want error", tt.locator, got)
				}
				var fetchErr *models.FetchError
				if !errors.As(err, &fetchErr) || fetchErr.Code != models.ErrCodeInvalidInput {
					t.Errorf("error = %v, want an INVALID_INPUT code", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CanonicalURL(%q): %v", tt.locator, err)
			}
			if got != tt.want {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.locator, got, tt.want)
			}
		})
	}
}
