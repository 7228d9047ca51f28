package kv_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/tryon/tryon/internal/kv"
	"github.com/tryon/tryon/internal/kv/memory"
	"github.com/tryon/tryon/internal/metrics"
	"github.com/tryon/tryon/internal/testutil"
)

func TestChain_WritesToPrimaryWhenHealthy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := testutil.NewFlakyStore("redis")
	local := memory.New()
	c := kv.NewChain(local, testutil.DiscardLogger(), nil, primary)

	_ = c.Set(ctx, "clients:c1", "x")

	if _, ok, _ := primary.Store.Get(ctx, "clients:c1"); !ok {
		t.Error("write should land on primary")
	}
	if _, ok, _ := local.Get(ctx, "clients:c1"); ok {
		t.Error("write should not reach fallback when primary is healthy")
	}
}

func TestChain_FallsBackOnFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := testutil.NewFlakyStore("redis")
	primary.SetDown(true)
	rec := metrics.NewInMemory()
	local := memory.New()
	c := kv.NewChain(local, testutil.DiscardLogger(), rec, primary)

	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set returned error %v; backend errors must be swallowed", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || got != "v" {
		t.Errorf("Get = %q, %v, %v; want v from fallback", got, ok, err)
	}

	n, err := c.IncrBy(ctx, "counter", 3)
	if err != nil || n != 3 {
		t.Errorf("IncrBy = %d, %v; want 3", n, err)
	}

	snap := rec.Snapshot()
	if snap.BackendFallbacks["redis:set"] != 1 {
		t.Errorf("fallback count for redis:set = %d, want 1", snap.BackendFallbacks["redis:set"])
	}
}

func TestChain_ThreeTierOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	native := testutil.NewFlakyStore("redis")
	restTier := testutil.NewFlakyStore("rest")
	local := memory.New()
	c := kv.NewChain(local, testutil.DiscardLogger(), nil, native, restTier)

	native.SetDown(true)
	_ = c.LPush(ctx, "usage:all", "a")

	if vals, _ := restTier.Store.LRange(ctx, "usage:all", 0, -1); len(vals) != 1 {
		t.Errorf("second tier should receive the write, got %v", vals)
	}

	restTier.SetDown(true)
	_ = c.LPush(ctx, "usage:e1", "b")
	if vals, _ := local.LRange(ctx, "usage:e1", 0, -1); len(vals) != 1 {
		t.Errorf("fallback should receive the write, got %v", vals)
	}

	if got := c.Name(); got != "chain(redis,rest,memory)" {
		t.Errorf("Name() = %q", got)
	}
}

func TestChain_ReadsFallThroughMisses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := testutil.NewFlakyStore("redis")
	local := memory.New()
	c := kv.NewChain(local, testutil.DiscardLogger(), nil, primary)

	// Written during an outage, primary has since recovered.
	_ = local.Set(ctx, "embeds:e1", "cfg")
	_ = local.SAdd(ctx, "embeds:index", "e1")

	if v, ok, _ := c.Get(ctx, "embeds:e1"); !ok || v != "cfg" {
		t.Errorf("Get should fall through to fallback, got %q, %v", v, ok)
	}
	if m, _ := c.SMembers(ctx, "embeds:index"); len(m) != 1 {
		t.Errorf("SMembers should fall through to fallback, got %v", m)
	}

	// Total miss is the zero value, not an error.
	if _, ok, err := c.Get(ctx, "nothing"); ok || err != nil {
		t.Errorf("Get(nothing) = %v, %v; want miss", ok, err)
	}
	if vals, err := c.LRange(ctx, "nothing", 0, -1); vals != nil || err != nil {
		t.Errorf("LRange(nothing) = %v, %v; want nil", vals, err)
	}
}

func TestChain_DelRemovesEverywhere(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := testutil.NewFlakyStore("redis")
	local := memory.New()
	c := kv.NewChain(local, testutil.DiscardLogger(), nil, primary)

	_ = primary.Store.Set(ctx, "k", "new")
	_ = local.Set(ctx, "k", "stale")

	existed, _ := c.Del(ctx, "k")
	if !existed {
		t.Error("Del should report existing key")
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("stale fallback copy should be removed too")
	}
}

func TestChain_GetDelClaimsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := testutil.NewFlakyStore("redis")
	local := memory.New()
	c := kv.NewChain(local, testutil.DiscardLogger(), nil, primary)

	_ = local.Set(ctx, "login:x", "payload")

	if _, ok, _ := c.GetDel(ctx, "login:x"); !ok {
		t.Fatal("first GetDel should hit")
	}
	if _, ok, _ := c.GetDel(ctx, "login:x"); ok {
		t.Error("second GetDel should miss")
	}
}

func TestChain_RepairSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := testutil.NewFlakyStore("redis")
	local := memory.New()
	c := kv.NewChain(local, testutil.DiscardLogger(), nil, primary)

	_ = local.SAdd(ctx, "embeds:index", "e1")
	_ = local.SAdd(ctx, "embeds:index", "e2")

	n, err := c.RepairSet(ctx, "embeds:index")
	if err != nil || n != 2 {
		t.Fatalf("RepairSet = %d, %v; want 2", n, err)
	}
	members, _ := primary.Store.SMembers(ctx, "embeds:index")
	sort.Strings(members)
	if len(members) != 2 || members[0] != "e1" {
		t.Errorf("primary members = %v, want [e1 e2]", members)
	}

	// Second repair is a no-op because the primary is populated.
	if n, _ := c.RepairSet(ctx, "embeds:index"); n != 0 {
		t.Errorf("second RepairSet copied %d, want 0", n)
	}
}

func TestChain_MemoryOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := kv.NewChain(memory.New(), nil, nil)
	if c.Primary() != nil {
		t.Error("Primary() should be nil when only the fallback is configured")
	}
	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping = %v", err)
	}
	if n, _ := c.RepairSet(ctx, "embeds:index"); n != 0 {
		t.Errorf("RepairSet on memory-only chain = %d", n)
	}
	_ = c.Expire(ctx, "missing", time.Minute)
}

func TestResolveRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		start, stop, n   int64
		wantFrom, wantTo int64
		wantOK           bool
	}{
		{"whole list", 0, -1, 5, 0, 5, true},
		{"head", 0, 0, 5, 0, 1, true},
		{"clamped stop", 2, 99, 5, 2, 5, true},
		{"negative start", -3, -1, 5, 2, 5, true},
		{"start past end", 7, 9, 5, 0, 0, false},
		{"inverted", 3, 1, 5, 0, 0, false},
		{"empty list", 0, -1, 0, 0, 0, false},
		{"very negative", -100, 1, 5, 0, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			from, to, ok := kv.ResolveRange(tt.start, tt.stop, tt.n)
			if ok != tt.wantOK || (ok && (from != tt.wantFrom || to != tt.wantTo)) {
				t.Errorf("ResolveRange(%d, %d, %d) = %d, %d, %v; want %d, %d, %v",
					tt.start, tt.stop, tt.n, from, to, ok, tt.wantFrom, tt.wantTo, tt.wantOK)
			}
		})
	}
}
