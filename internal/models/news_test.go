package models

import (
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "https://Example.COM/News", "https://example.com/News"},
		{"strips fragment", "https://example.com/a#section", "https://example.com/a"},
		{"strips trailing slash", "https://example.com/a/", "https://example.com/a"},
		{"strips tracking params", "https://example.com/a?utm_source=x&id=7", "https://example.com/a?id=7"},
		{"strips fbclid", "https://example.com/a?fbclid=abc", "https://example.com/a"},
		{"trims whitespace", "  https://example.com/a  ", "https://example.com/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	// Same article through different tracking links maps to one identity key.
	a := NormalizeURL("https://example.com/story?utm_campaign=a")
	b := NormalizeURL("https://example.com/story/")
	if a != b {
		t.Errorf("expected equal identity keys, got %q and %q", a, b)
	}
}
