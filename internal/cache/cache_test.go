package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/synapse/internal/models"
)

func view(id string) *models.CompositeRuleView {
	return &models.CompositeRuleView{
		Rules:            []models.RuleDefinition{{ID: id, Name: id, Pattern: "x", Message: "m"}},
		InheritanceChain: []string{},
		Suppressed:       []string{},
	}
}

func TestGetMissThenHit(t *testing.T) {
	c := New(time.Minute, 10)
	p := filepath.Join(t.TempDir(), "main.rs")

	if _, ok := c.Get(p); ok {
		t.Fatal("first get should miss")
	}
	c.Insert(p, view("a"))
	got, ok := c.Get(p)
	if !ok || got.Rules[0].ID != "a" {
		t.Fatalf("expected hit, got %v %v", got, ok)
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Size != 1 || s.MaxSize != 10 {
		t.Errorf("stats = %+v", s)
	}
	if s.HitRate != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", s.HitRate)
	}
}

func TestEquivalentPathsShareEntry(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	c := New(time.Minute, 10)
	c.Insert(filepath.Join(dir, "src", "lib.rs"), view("a"))
	if _, ok := c.Get(filepath.Join(dir, "src", "..", "src", "lib.rs")); !ok {
		t.Error("logically identical path should hit")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(50*time.Millisecond, 10)
	p := filepath.Join(t.TempDir(), "f.go")
	c.Insert(p, view("a"))
	if _, ok := c.Get(p); !ok {
		t.Fatal("expected hit before ttl")
	}
	time.Sleep(150 * time.Millisecond)
	if _, ok := c.Get(p); ok {
		t.Error("expected miss after ttl")
	}
}

func TestCapacityBound(t *testing.T) {
	c := New(time.Minute, 3)
	dir := t.TempDir()
	for i := 0; i < 10; i++ {
		c.Insert(filepath.Join(dir, fmt.Sprintf("f%d.go", i)), view("a"))
	}
	if s := c.Stats(); s.Size != 3 {
		t.Errorf("size = %d, want 3", s.Size)
	}
}

func TestClearKeepsCounters(t *testing.T) {
	c := New(time.Minute, 10, WithMetrics(false))
	p := filepath.Join(t.TempDir(), "f.go")
	c.Insert(p, view("a"))
	c.Get(p)
	c.Clear()
	if _, ok := c.Get(p); ok {
		t.Fatal("expected miss after clear")
	}
	s := c.Stats()
	if s.Size != 0 || s.Hits != 1 || s.Misses != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute, 100)
	dir := t.TempDir()
	const workers, iters = 8, 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iters; i++ {
				p := filepath.Join(dir, fmt.Sprintf("f%d.go", i%20))
				if _, ok := c.Get(p); !ok {
					c.Insert(p, view("a"))
				}
			}
		}(w)
	}
	wg.Wait()

	s := c.Stats()
	if s.Hits+s.Misses != workers*iters {
		t.Errorf("hits+misses = %d, want %d", s.Hits+s.Misses, workers*iters)
	}
}
