package storage

import (
	"strings"
	"testing"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("items", "abc-123", ".jpg")

	if !strings.HasPrefix(key, "items/abc-123/") {
		t.Errorf("key = %q, want items/abc-123/ prefix", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("key = %q, want .jpg suffix", key)
	}

	// Repeated uploads for the same entity must not collide.
	if key == ObjectKey("items", "abc-123", ".jpg") {
		t.Error("two keys for the same entity should differ")
	}
}

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		url     string
		want    string
	}{
		{
			name:    "object under base",
			baseURL: "http://localhost:9000/wardrobe-images",
			url:     "http://localhost:9000/wardrobe-images/items/abc/1.jpg",
			want:    "items/abc/1.jpg",
		},
		{
			name:    "trailing slash on base",
			baseURL: "http://localhost:9000/wardrobe-images/",
			url:     "http://localhost:9000/wardrobe-images/items/abc/1.jpg",
			want:    "items/abc/1.jpg",
		},
		{
			name:    "foreign url",
			baseURL: "http://localhost:9000/wardrobe-images",
			url:     "https://elsewhere.example.com/items/abc/1.jpg",
			want:    "",
		},
		{
			name:    "empty base",
			baseURL: "",
			url:     "http://localhost:9000/wardrobe-images/items/abc/1.jpg",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeyFromURL(tt.baseURL, tt.url); got != tt.want {
				t.Errorf("KeyFromURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
