package redis

import (
	"context"
	"testing"
	"time"
)

func TestClientCacheOps(t *testing.T) {
	client, server := newTestClientWithServer(t)
	ctx := context.Background()

	if err := client.Set(ctx, "fit:taxonomy:goal:1", `{"id":1,"name":"strength"}`, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, err := client.Get(ctx, "fit:taxonomy:goal:1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != `{"id":1,"name":"strength"}` {
		t.Fatalf("unexpected value: %s", val)
	}

	exists, err := client.Exists(ctx, "fit:taxonomy:goal:1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists != 1 {
		t.Fatalf("unexpected exists: %d", exists)
	}

	if err := client.Expire(ctx, "fit:taxonomy:goal:1", 2*time.Second); err != nil {
		t.Fatalf("expire: %v", err)
	}
	server.FastForward(3 * time.Second)

	exists, err = client.Exists(ctx, "fit:taxonomy:goal:1")
	if err != nil {
		t.Fatalf("exists after expire: %v", err)
	}
	if exists != 0 {
		t.Fatalf("expected expired key")
	}
}

func TestClientHashOps(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if err := client.HSet(ctx, "fit:instructor:42:profile", "display_name", "Coach Kim", "tier", "pro"); err != nil {
		t.Fatalf("hset: %v", err)
	}
	val, err := client.HGet(ctx, "fit:instructor:42:profile", "display_name")
	if err != nil {
		t.Fatalf("hget: %v", err)
	}
	if val != "Coach Kim" {
		t.Fatalf("unexpected hget value: %s", val)
	}

	all, err := client.HGetAll(ctx, "fit:instructor:42:profile")
	if err != nil {
		t.Fatalf("hgetall: %v", err)
	}
	if all["tier"] != "pro" {
		t.Fatalf("unexpected hgetall value: %v", all)
	}

	if err := client.HDel(ctx, "fit:instructor:42:profile", "display_name"); err != nil {
		t.Fatalf("hdel: %v", err)
	}
}
