package session

import "testing"

func TestPickActive(t *testing.T) {
	tests := []struct {
		name string
		urls []string
		want int
	}{
		{"empty session", nil, -1},
		{"single live page", []string{"https://example.com/dp/B000000001"}, 0},
		{"popup wins over original", []string{"https://example.com/dp/B000000001", "https://example.com/ap/signin"}, 1},
		{"blank popup skipped", []string{"https://example.com/dp/B000000001", "about:blank"}, 0},
		{"all blank falls back to last", []string{"about:blank", ""}, 1},
		{"blank between live pages", []string{"https://a.example", "about:blank", "https://b.example"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickActive(tt.urls); got != tt.want {
				t.Errorf("pickActive(%v) = %d, want %d", tt.urls, got, tt.want)
			}
		})
	}
}
