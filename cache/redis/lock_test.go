package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLockKeyPrefix(t *testing.T) {
	client := newTestClient(t)

	lock := client.NewLock("taxonomy:level:delete:7")
	if lock.key != "fit:lock:taxonomy:level:delete:7" {
		t.Fatalf("unexpected lock key: %q", lock.key)
	}
}

func TestLockAcquireRelease(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	lock := client.NewLock("taxonomy:goal:delete:1", LockOption{TTL: 200 * time.Millisecond, RetryTimes: 1, RetryDelay: 10 * time.Millisecond})
	if err := lock.Acquire(ctx); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}

	lock2 := client.NewLock("taxonomy:goal:delete:1", LockOption{TTL: 200 * time.Millisecond, RetryTimes: 1, RetryDelay: 10 * time.Millisecond})
	if err := lock2.Acquire(ctx); !errors.Is(err, ErrLockFailed) {
		t.Fatalf("expected ErrLockFailed, got: %v", err)
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	if err := lock2.Acquire(ctx); err != nil {
		t.Fatalf("acquire lock after release: %v", err)
	}
}

func TestLockReleaseRequiresOwnership(t *testing.T) {
	client, server := newTestClientWithServer(t)
	ctx := context.Background()

	lock := client.NewLock("taxonomy:hashtag:delete:3", LockOption{TTL: 100 * time.Millisecond, RetryTimes: 1, RetryDelay: 10 * time.Millisecond})
	if err := lock.Acquire(ctx); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}

	// 锁过期后被他人取得，旧持有者的释放不得误删新锁
	server.FastForward(150 * time.Millisecond)
	successor := client.NewLock("taxonomy:hashtag:delete:3", LockOption{TTL: 10 * time.Second, RetryTimes: 1, RetryDelay: 10 * time.Millisecond})
	if err := successor.Acquire(ctx); err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}

	if err := lock.Release(ctx); !errors.Is(err, ErrUnlockFailed) {
		t.Fatalf("expected ErrUnlockFailed, got: %v", err)
	}
	exists, err := client.Exists(ctx, successor.key)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists == 0 {
		t.Fatalf("successor lock was deleted by a stale release")
	}
}

func TestLockExtendKeepsHold(t *testing.T) {
	client, server := newTestClientWithServer(t)
	ctx := context.Background()

	lock := client.NewLock("media:transcode:42", LockOption{TTL: 100 * time.Millisecond, RetryTimes: 1, RetryDelay: 10 * time.Millisecond})
	if err := lock.Acquire(ctx); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}

	if err := lock.Extend(ctx, time.Second); err != nil {
		t.Fatalf("extend: %v", err)
	}
	// 原 TTL 已过，但续期让锁仍在
	server.FastForward(150 * time.Millisecond)
	exists, err := client.Exists(ctx, lock.key)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists == 0 {
		t.Fatalf("expected extended lock to survive the original TTL")
	}

	// 锁丢失后续期失败
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release lock: %v", err)
	}
	if err := lock.Extend(ctx, time.Second); !errors.Is(err, ErrLockFailed) {
		t.Fatalf("expected ErrLockFailed after release, got: %v", err)
	}
}
