package watchlist

import (
	"context"
	"fmt"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	platformtesting "wpguard/internal/platform/testing"
)

// storeFactories builds one fresh store per driver.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		DriverMemory: func() Store { return NewMemory() },
		DriverSQLite: func() Store { return NewSQLite(platformtesting.SetupTestDB(t), "") },
		DriverRedis: func() Store {
			mr := miniredis.RunT(t)
			s, err := NewRedis(Config{Redis: &RedisConfig{Addr: mr.Addr()}})
			if err != nil {
				t.Fatalf("NewRedis error: %v", err)
			}
			t.Cleanup(func() { _ = s.Close(context.Background()) })
			return s
		},
	}
}

func TestStoreToggleLifecycle(t *testing.T) {
	ctx := context.Background()
	for driver, build := range storeFactories(t) {
		t.Run(driver, func(t *testing.T) {
			s := build()

			list, err := s.List(ctx)
			if err != nil {
				t.Fatalf("List error: %v", err)
			}
			if len(list) != 0 {
				t.Fatalf("expected empty list, got %v", list)
			}

			for _, id := range []string{"akismet/akismet.php", "hello-dolly/hello.php", "jetpack/jetpack.php"} {
				watching, err := s.Toggle(ctx, id)
				if err != nil {
					t.Fatalf("Toggle(%s) error: %v", id, err)
				}
				if !watching {
					t.Fatalf("Toggle(%s) should start watching", id)
				}
			}

			watching, err := s.Toggle(ctx, "hello-dolly/hello.php")
			if err != nil || watching {
				t.Fatalf("second toggle should unwatch: watching=%v err=%v", watching, err)
			}

			list, err = s.List(ctx)
			if err != nil {
				t.Fatalf("List error: %v", err)
			}
			want := []string{"akismet/akismet.php", "jetpack/jetpack.php"}
			if fmt.Sprint(list) != fmt.Sprint(want) {
				t.Fatalf("List = %v, want %v", list, want)
			}

			ok, err := s.Contains(ctx, "jetpack/jetpack.php")
			if err != nil || !ok {
				t.Fatalf("Contains(jetpack) = %v, %v", ok, err)
			}
			ok, err = s.Contains(ctx, "jetpack")
			if err != nil || ok {
				t.Fatalf("Contains must use exact matching, got %v, %v", ok, err)
			}
		})
	}
}

func TestStoreToggleIsInvolution(t *testing.T) {
	ctx := context.Background()
	for driver, build := range storeFactories(t) {
		t.Run(driver, func(t *testing.T) {
			s := build()
			if _, err := s.Toggle(ctx, "akismet"); err != nil {
				t.Fatalf("Toggle error: %v", err)
			}

			for _, id := range []string{"akismet", "jetpack"} {
				before, _ := s.Contains(ctx, id)
				if _, err := s.Toggle(ctx, id); err != nil {
					t.Fatalf("Toggle error: %v", err)
				}
				if _, err := s.Toggle(ctx, id); err != nil {
					t.Fatalf("Toggle error: %v", err)
				}
				after, _ := s.Contains(ctx, id)
				if before != after {
					t.Fatalf("toggle twice changed membership of %s: %v -> %v", id, before, after)
				}
			}
		})
	}
}

func TestStoreConcurrentTogglesNoDuplicates(t *testing.T) {
	ctx := context.Background()
	const workers = 16
	for driver, build := range storeFactories(t) {
		t.Run(driver, func(t *testing.T) {
			s := build()

			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if _, err := s.Toggle(ctx, fmt.Sprintf("plugin-%d", i)); err != nil {
						errs <- err
					}
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatalf("Toggle error: %v", err)
			}

			list, err := s.List(ctx)
			if err != nil {
				t.Fatalf("List error: %v", err)
			}
			if len(list) != workers {
				t.Fatalf("expected %d entries after concurrent toggles, got %d: %v", workers, len(list), list)
			}
			seen := map[string]bool{}
			for _, id := range list {
				if seen[id] {
					t.Fatalf("duplicate entry %s", id)
				}
				seen[id] = true
			}
		})
	}
}

func TestToggleHelper(t *testing.T) {
	base := []string{"a", "b", "c"}
	next, watching := toggle(base, "b")
	if watching || fmt.Sprint(next) != "[a c]" {
		t.Fatalf("remove: %v %v", next, watching)
	}
	if fmt.Sprint(base) != "[a b c]" {
		t.Fatalf("toggle must not mutate its input, got %v", base)
	}
	next, watching = toggle(base, "d")
	if !watching || fmt.Sprint(next) != "[a b c d]" {
		t.Fatalf("append: %v %v", next, watching)
	}
}

func TestMemoryInitialDeduped(t *testing.T) {
	s := NewMemory("a", "b", "a")
	list, _ := s.List(context.Background())
	if fmt.Sprint(list) != "[a b]" {
		t.Fatalf("unexpected list: %v", list)
	}
}
