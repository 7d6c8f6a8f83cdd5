package trip

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/tripflow/model"
)

func testActionsResult() ActionsResult {
	return ActionsResult{
		Trip: model.Trip{ID: "trip-1", Version: 3},
		Results: []model.ActionResult{
			{Index: 0, Type: model.ActionVoteCast, Status: model.ActionApplied},
		},
	}
}

func TestMemoryIdempotencyStore_CheckNotFound(t *testing.T) {
	s := NewMemoryIdempotencyStore()

	result, found, err := s.Check(context.Background(), "idem:actions:trip-1:k", "hash-abc")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if found || result != nil {
		t.Errorf("found = %v, result = %+v; want miss", found, result)
	}
}

func TestMemoryIdempotencyStore_StoreAndCheck(t *testing.T) {
	s := NewMemoryIdempotencyStore()
	ctx := context.Background()
	key := FormatIdempotencyKey("trip-1", "k")

	if err := s.Store(ctx, key, "hash-abc", testActionsResult(), 5*time.Minute); err != nil {
		t.Fatalf("Store error: %v", err)
	}

	result, found, err := s.Check(ctx, key, "hash-abc")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !found || result == nil {
		t.Fatal("cached result not found")
	}
	if result.Trip.Version != 3 || len(result.Results) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestMemoryIdempotencyStore_ConflictOnHashMismatch(t *testing.T) {
	s := NewMemoryIdempotencyStore()
	ctx := context.Background()
	key := FormatIdempotencyKey("trip-1", "k")

	_ = s.Store(ctx, key, "hash-abc", testActionsResult(), 5*time.Minute)

	_, found, err := s.Check(ctx, key, "hash-xyz")
	if !found {
		t.Error("found = false, want true")
	}
	if !model.HasCode(err, model.ErrIdempotencyReplay) {
		t.Errorf("err = %v, want IDEMPOTENCY_CONFLICT", err)
	}
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	s := NewMemoryIdempotencyStore()
	now := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.Store(ctx, "k", "h", testActionsResult(), time.Minute)
	now = now.Add(2 * time.Minute)

	_, found, err := s.Check(ctx, "k", "h")
	if err != nil || found {
		t.Errorf("found = %v, err = %v; want expired miss", found, err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want expired entry removed", s.Len())
	}
}

func TestRedisIdempotencyStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisIdempotencyStore(client)
	ctx := context.Background()
	key := FormatIdempotencyKey("trip-1", "k")

	if err := s.Store(ctx, key, "hash-abc", testActionsResult(), time.Minute); err != nil {
		t.Fatalf("Store error: %v", err)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}

	result, found, err := s.Check(ctx, key, "hash-abc")
	if err != nil || !found {
		t.Fatalf("Check found = %v, err = %v", found, err)
	}
	if result.Trip.ID != "trip-1" {
		t.Errorf("Trip.ID = %q", result.Trip.ID)
	}

	if _, _, err := s.Check(ctx, key, "other"); !model.HasCode(err, model.ErrIdempotencyReplay) {
		t.Errorf("err = %v, want IDEMPOTENCY_CONFLICT", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, found, _ := s.Check(ctx, key, "hash-abc"); found {
		t.Error("entry survived its TTL")
	}
}

func TestHashActions_stable(t *testing.T) {
	a := []model.Action{{Type: model.ActionCommentAdd, Body: "hi", TargetType: "trip"}}
	h1, err := HashActions(a)
	if err != nil {
		t.Fatalf("HashActions error: %v", err)
	}
	h2, _ := HashActions(a)
	h3, _ := HashActions([]model.Action{{Type: model.ActionCommentAdd, Body: "hello", TargetType: "trip"}})

	if h1 != h2 {
		t.Error("same input hashed differently")
	}
	if h1 == h3 {
		t.Error("different input hashed the same")
	}
}
