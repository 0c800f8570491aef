package viability

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestDocCacheLazySingleLoad(t *testing.T) {
	var mu sync.Mutex
	loads := 0
	cache := NewDocCache(func(context.Context) (string, error) {
		mu.Lock()
		loads++
		mu.Unlock()
		return "objectives", nil
	})
	if cache.Cached() {
		t.Fatal("cache should start cold")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := cache.Load(context.Background())
			if err != nil || doc != "objectives" {
				t.Errorf("Load: doc=%q err=%v", doc, err)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if loads != 1 {
		t.Fatalf("expected one loader call under concurrency, got %d", loads)
	}
}

func TestDocCacheInvalidateForcesReload(t *testing.T) {
	loads := 0
	cache := NewDocCache(func(context.Context) (string, error) {
		loads++
		return "v" + string(rune('0'+loads)), nil
	})
	first, _ := cache.Load(context.Background())
	cache.Invalidate()
	if cache.Cached() {
		t.Fatal("invalidate should drop the document")
	}
	second, _ := cache.Load(context.Background())
	if first == second {
		t.Fatalf("expected fresh document after invalidate, got %q twice", first)
	}
	if loads != 2 {
		t.Fatalf("expected two loads, got %d", loads)
	}
}

func TestDocCacheLoadFailureStaysCold(t *testing.T) {
	calls := 0
	cache := NewDocCache(func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("offline")
		}
		return "recovered", nil
	})
	if _, err := cache.Load(context.Background()); err == nil {
		t.Fatal("expected first load to fail")
	}
	doc, err := cache.Load(context.Background())
	if err != nil || doc != "recovered" {
		t.Fatalf("expected retry to succeed, doc=%q err=%v", doc, err)
	}
}

func TestFileDocLoader(t *testing.T) {
	loader := FileDocLoader("/nonexistent/okr.md")
	if _, err := loader(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}
