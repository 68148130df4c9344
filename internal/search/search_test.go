package search

import (
	"encoding/json"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
)

func rawHit(t *testing.T, payload map[string]any) meili.Hit {
	t.Helper()
	hit := meili.Hit{}
	for key, value := range payload {
		raw, err := json.Marshal(value)
		if err != nil {
			t.Fatalf("marshal %s: %v", key, err)
		}
		hit[key] = raw
	}
	return hit
}

func TestHitToResult(t *testing.T) {
	hit := rawHit(t, map[string]any{
		"id":          "song_1",
		"title":       "Cornerstone",
		"author":      "Hillsong",
		"key":         "C",
		"language":    "en",
		"workspaceId": "ws_1",
		"_formatted":  map[string]string{"lyrics": "My hope is built on <mark>nothing</mark> less"},
	})

	result := hitToResult(hit)
	if result.ID != "song_1" || result.Title != "Cornerstone" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Snippet != "My hope is built on <mark>nothing</mark> less" {
		t.Fatalf("unexpected snippet: %q", result.Snippet)
	}
}

func TestHitToResultFallsBackWhenNotFormatted(t *testing.T) {
	hit := rawHit(t, map[string]any{
		"id":     "song_2",
		"title":  "Doxology",
		"author": "Ken",
	})
	result := hitToResult(hit)
	if result.Snippet != "Ken" {
		t.Fatalf("expected author fallback snippet, got %q", result.Snippet)
	}
}

func TestDecodeStringIgnoresNonStrings(t *testing.T) {
	hit := rawHit(t, map[string]any{"position": 3})
	if got := decodeString(hit, "position"); got != "" {
		t.Fatalf("expected empty string for non-string field, got %q", got)
	}
	if got := decodeString(hit, "missing"); got != "" {
		t.Fatalf("expected empty string for missing field, got %q", got)
	}
}

func TestFirstNonBlank(t *testing.T) {
	if got := firstNonBlank("", "  ", "x", "y"); got != "x" {
		t.Fatalf("expected x, got %q", got)
	}
	if got := firstNonBlank("", "  "); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestNonNil(t *testing.T) {
	if got := nonNil(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
	in := []Result{{ID: "a"}}
	if got := nonNil(in); len(got) != 1 {
		t.Fatalf("expected passthrough, got %v", got)
	}
}
