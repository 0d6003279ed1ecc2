package directory

import (
	"testing"
	"time"
)

func TestMemoryTokenCache(t *testing.T) {
	cache := NewMemoryTokenCache()

	if tok := cache.Get(); tok != "" {
		t.Errorf("Expected empty cache, got %q", tok)
	}

	cache.Set("tok-1", time.Hour)
	if tok := cache.Get(); tok != "tok-1" {
		t.Errorf("Expected tok-1, got %q", tok)
	}

	// A token inside the expiry margin reads as absent so callers
	// re-exchange before it actually lapses.
	cache.Set("tok-2", 30*time.Second)
	if tok := cache.Get(); tok != "" {
		t.Errorf("Expected near-expiry token treated as absent, got %q", tok)
	}

	cache.Set("tok-3", -time.Minute)
	if tok := cache.Get(); tok != "" {
		t.Errorf("Expected expired token treated as absent, got %q", tok)
	}
}
