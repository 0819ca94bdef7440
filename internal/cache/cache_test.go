package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/lemma/internal/model"
)

func TestQueryKey(t *testing.T) {
	a := QueryKey("digest1", "search", []byte(`{"scheme":{}}`))
	b := QueryKey("digest1", "search", []byte(`{"scheme":{}}`))
	if a != b {
		t.Errorf("expected stable key, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "lemma:v1:") {
		t.Errorf("expected prefix, got %s", a)
	}

	for _, other := range []string{
		QueryKey("digest2", "search", []byte(`{"scheme":{}}`)),
		QueryKey("digest1", "explore", []byte(`{"scheme":{}}`)),
		QueryKey("digest1", "search", []byte(`{"morphism":{}}`)),
	} {
		if other == a {
			t.Errorf("expected distinct key for changed input, got %s", other)
		}
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss")
	}
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Errorf("expected hit with v, got %q %v", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}

	_ = c.Set("a", []byte("1"), 0)
	_ = c.Set("b", []byte("2"), 0)
	_ = c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after clear, got %d", c.Len())
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("k", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key := QueryKey("d", "search", []byte("q"))
	if err := c.Set(key, []byte("value"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := c.Get(key)
	if !ok || string(got) != "value" {
		t.Errorf("expected hit, got %q %v", got, ok)
	}

	// A fresh instance over the same directory sees the entry
	again := NewDiskCache(dir, time.Hour)
	if _, ok := again.Get(key); !ok {
		t.Error("expected entry to persist")
	}

	if err := c.Delete(key); err != nil {
		t.Errorf("delete: %v", err)
	}
	if err := c.Delete(key); err != nil {
		t.Errorf("expected deleting a missing entry to succeed, got %v", err)
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	_ = c.Set("k", []byte("v"), -time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestDiskCache_ClearKeepsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	_ = c.Set("a", []byte("1"), 0)
	_ = c.Set("b", []byte("2"), 0)

	keep := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(keep, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected cleared entry to miss")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("expected unrelated file to survive: %v", err)
	}
}

func TestLayeredCache_PromotesFromDisk(t *testing.T) {
	dir := t.TempDir()
	_ = NewDiskCache(dir, time.Hour).Set("k", []byte("v"), 0)

	c := NewLayeredCache(time.Minute, dir, time.Hour)
	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("expected disk hit, got %q %v", got, ok)
	}
	if _, ok := c.memory.Get("k"); !ok {
		t.Error("expected entry promoted to memory")
	}

	if err := c.Delete("k"); err != nil {
		t.Errorf("delete: %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestNew(t *testing.T) {
	if c := New(model.CacheConfig{}); c != nil {
		t.Errorf("expected nil cache when disabled, got %T", c)
	}
	if _, ok := New(model.CacheConfig{Enabled: true, MemoryTTL: time.Minute}).(*MemoryCache); !ok {
		t.Error("expected memory cache without a directory")
	}
	if _, ok := New(model.CacheConfig{Enabled: true, Dir: t.TempDir()}).(*LayeredCache); !ok {
		t.Error("expected layered cache with a directory")
	}
}

func TestJSONHelpers(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	want := []map[string]map[string]string{{"scheme": {"X": "Spec_ZZ"}}}
	if err := SetJSON(c, "k", want, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := GetJSON[[]map[string]map[string]string](c, "k")
	if !ok {
		t.Fatal("expected hit")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}

	_ = c.Set("bad", []byte("{"), 0)
	if _, ok := GetJSON[int](c, "bad"); ok {
		t.Error("expected undecodable value to miss")
	}
}
