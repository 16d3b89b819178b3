package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router"
)

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get(missing) = %v, %v; want miss", ok, err)
	}
	if err := c.Set(ctx, "k", []byte("hello"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get(k) = %v, %v; want hit", ok, err)
	}
	if string(got) != "hello" {
		t.Errorf("Get(k) = %q, want %q", got, "hello")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("entry survived Delete")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "short", []byte("x"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, err := c.Get(ctx, "short"); ok || err != nil {
		t.Errorf("expired entry: ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(c.path("short")); !os.IsNotExist(err) {
		t.Errorf("expired entry file still present: %v", err)
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path := c.path("bad")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(ctx, "bad"); ok || err != nil {
		t.Errorf("corrupt entry: ok=%v err=%v", ok, err)
	}
}

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Errorf("NullCache hit: ok=%v err=%v", ok, err)
	}
}

func TestRouteKey(t *testing.T) {
	board := []byte("(kicad_pcb (version 20240108))")
	base := RouteKey(board, "fp", "2layer")

	tests := []struct {
		name  string
		key   string
		equal bool
	}{
		{"same inputs", RouteKey([]byte("(kicad_pcb (version 20240108))"), "fp", "2layer"), true},
		{"board changed", RouteKey([]byte("(kicad_pcb (version 20240109))"), "fp", "2layer"), false},
		{"config changed", RouteKey(board, "fp2", "2layer"), false},
		{"stack changed", RouteKey(board, "fp", "adaptive"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key == base; got != tt.equal {
				t.Errorf("key equality = %v, want %v", got, tt.equal)
			}
		})
	}
	if !strings.HasPrefix(base, "route:") {
		t.Errorf("RouteKey = %q, want route: prefix", base)
	}
}

func TestEntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	want := &Entry{
		Stack:    "2layer",
		Fragment: "(segment (start 1.0000 2.0000))\n",
		Result: &router.Result{
			Stack:         "2layer",
			NetsRequested: 2,
			NetsRouted:    1,
			UnroutedNets:  []string{"GND"},
			Iterations:    1,
		},
		CreatedAt: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
	}
	if err := Store(ctx, c, "route:x", want, time.Hour); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, ok, err := Lookup(ctx, c, "route:x")
	if err != nil || !ok {
		t.Fatalf("Lookup = %v, %v; want hit", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupDropsUndecodableEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "route:y", []byte("not json"), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := Lookup(ctx, c, "route:y"); ok || err != nil {
		t.Errorf("Lookup = %v, %v; want miss", ok, err)
	}
	if _, ok, _ := c.Get(ctx, "route:y"); ok {
		t.Error("undecodable entry was not removed")
	}
}

func TestRedisCacheErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	tests := []struct {
		name string
		url  string
		code errors.Code
	}{
		{"bad scheme", "http://localhost:6379", errors.ErrCodeInvalidConfig},
		{"unreachable", "redis://127.0.0.1:1/0", errors.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedisCache(ctx, tt.url, "")
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("error code = %s, want %s", errors.GetCode(err), tt.code)
			}
		})
	}
}
