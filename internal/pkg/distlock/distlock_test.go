package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb, mr
}

func TestAcquireIsExclusive(t *testing.T) {
	rdb, _ := testClient(t)
	ctx := context.Background()

	a := New(rdb, "worker", time.Minute)
	b := New(rdb, "worker", time.Minute)

	ok, err := a.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = b.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("second instance must not get the lock")
	}
}

func TestReleaseOnlyByOwner(t *testing.T) {
	rdb, _ := testClient(t)
	ctx := context.Background()

	a := New(rdb, "worker", time.Minute)
	b := New(rdb, "worker", time.Minute)

	if ok, _ := a.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	if err := b.Release(ctx); err != nil {
		t.Fatalf("foreign release errored: %v", err)
	}
	// b's release must not have freed a's lock.
	if ok, _ := b.Acquire(ctx); ok {
		t.Fatal("lock was released by a non-owner")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Fatal("lock not acquirable after owner release")
	}
}

func TestLockExpires(t *testing.T) {
	rdb, mr := testClient(t)
	ctx := context.Background()

	a := New(rdb, "worker", time.Second)
	if ok, _ := a.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}

	mr.FastForward(2 * time.Second)

	b := New(rdb, "worker", time.Second)
	if ok, _ := b.Acquire(ctx); !ok {
		t.Fatal("expired lock must be acquirable")
	}
}
