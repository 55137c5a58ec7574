package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/loopguard/internal/core/domain"
)

func newLiveStore(t *testing.T) *CooldownStore {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("Skipping live Redis test. Set REDIS_TEST_URL=redis://localhost:6379/15 to run.")
	}

	client, err := NewClient(Config{
		URL:       url,
		KeyPrefix: fmt.Sprintf("loopguard-test-%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewCooldownStore(client, "test")
}

func TestCooldownStore_UpdateRoundTrip(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()
	t.Cleanup(func() { _ = s.Delete(ctx, "k1") })

	rec, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.CredentialID != "k1" || rec.ConsecutiveFailures != 0 {
		t.Fatalf("expected empty record, got %+v", rec)
	}

	until := time.Now().Add(time.Minute).UTC().Truncate(time.Second)
	_, err = s.Update(ctx, "k1", func(rec *domain.CooldownRecord) error {
		rec.ConsecutiveFailures++
		rec.Category = domain.CooldownRateLimit
		rec.CooldownUntil = until
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	rec, err = s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.ConsecutiveFailures != 1 || !rec.CooldownUntil.Equal(until) {
		t.Errorf("unexpected record %+v", rec)
	}

	ttl, err := s.rdb.TTL(ctx, s.key("k1")).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= recordRetention {
		t.Errorf("expected ttl to include the remaining cooldown, got %v", ttl)
	}
}

func TestCooldownStore_FailedUpdateLeavesRecord(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()
	t.Cleanup(func() { _ = s.Delete(ctx, "k1") })

	bump := func(rec *domain.CooldownRecord) error {
		rec.ConsecutiveFailures++
		return nil
	}
	if _, err := s.Update(ctx, "k1", bump); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	errBoom := errors.New("boom")
	_, err := s.Update(ctx, "k1", func(rec *domain.CooldownRecord) error {
		rec.ConsecutiveFailures = 99
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}

	rec, _ := s.Get(ctx, "k1")
	if rec.ConsecutiveFailures != 1 {
		t.Errorf("expected record untouched, got %+v", rec)
	}
}

func TestCooldownStore_ConcurrentUpdates(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()
	t.Cleanup(func() { _ = s.Delete(ctx, "k1") })

	// Fewer writers than maxTxRetries, so every writer wins within its budget.
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "k1", func(rec *domain.CooldownRecord) error {
				rec.ConsecutiveFailures++
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	rec, _ := s.Get(ctx, "k1")
	if rec.ConsecutiveFailures != writers {
		t.Errorf("expected %d failures, got %d", writers, rec.ConsecutiveFailures)
	}

	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	rec, _ = s.Get(ctx, "k1")
	if rec.ConsecutiveFailures != 0 {
		t.Errorf("expected record deleted, got %+v", rec)
	}
}
