package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

func TestCatalog_RoleTypeCaching(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)
	catalog := NewCatalog(store, 16, time.Minute, nil, nil)

	rt := mustCreateRoleType(t, store, "garant")

	first, err := catalog.RoleType(ctx, rt.ID)
	if err != nil {
		t.Fatalf("RoleType failed: %v", err)
	}
	if first.Name != "garant" {
		t.Errorf("Expected garant, got %s", first.Name)
	}

	// Delete the row; the cached copy still answers.
	if err := store.DeleteRoleType(ctx, rt.ID); err != nil {
		t.Fatalf("DeleteRoleType failed: %v", err)
	}
	cached, err := catalog.RoleType(ctx, rt.ID)
	if err != nil {
		t.Fatalf("RoleType from cache failed: %v", err)
	}
	if cached.Name != "garant" {
		t.Errorf("Expected cached garant, got %s", cached.Name)
	}

	// After invalidation the miss surfaces.
	if err := catalog.Invalidate(ctx, rt.ID); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := catalog.RoleType(ctx, rt.ID); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound after invalidation, got %v", err)
	}
}

func TestCatalog_RedisTier(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	store := NewStore(db)
	rt := mustCreateRoleType(t, store, "děkan")

	warm := NewCatalog(store, 16, time.Minute, client, nil)
	if _, err := warm.RoleType(ctx, rt.ID); err != nil {
		t.Fatalf("RoleType failed: %v", err)
	}
	if !mr.Exists(redisKeyPrefix + rt.ID.String()) {
		t.Error("Expected the role type to be written to redis")
	}

	// A second catalog instance with a cold L1 hits the redis tier even
	// after the row is gone.
	if err := store.DeleteRoleType(ctx, rt.ID); err != nil {
		t.Fatalf("DeleteRoleType failed: %v", err)
	}
	cold := NewCatalog(store, 16, time.Minute, client, nil)
	got, err := cold.RoleType(ctx, rt.ID)
	if err != nil {
		t.Fatalf("RoleType from redis failed: %v", err)
	}
	if got.Name != "děkan" {
		t.Errorf("Expected děkan from redis, got %s", got.Name)
	}

	// Invalidation clears redis too.
	if err := warm.Invalidate(ctx, rt.ID); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if mr.Exists(redisKeyPrefix + rt.ID.String()) {
		t.Error("Expected the redis key to be deleted")
	}
}

func TestCatalog_RoleTypesBatch(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)
	catalog := NewCatalog(store, 16, time.Minute, nil, nil)

	a := mustCreateRoleType(t, store, "a")
	b := mustCreateRoleType(t, store, "b")

	// Warm one of the two.
	if _, err := catalog.RoleType(ctx, a.ID); err != nil {
		t.Fatalf("RoleType failed: %v", err)
	}

	types, err := catalog.RoleTypes(ctx, []uuid.UUID{a.ID, b.ID})
	if err != nil {
		t.Fatalf("RoleTypes failed: %v", err)
	}
	if len(types) != 2 {
		t.Errorf("Expected 2 role types, got %d", len(types))
	}
}
