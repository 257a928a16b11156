package storage

import (
	"context"
	"testing"
)

func TestTokenLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	token, err := store.LoadToken(ctx)
	if err != nil {
		t.Fatalf("LoadToken empty: %v", err)
	}
	if token != "" {
		t.Fatalf("expected no token, got %q", token)
	}

	if err := store.SaveToken(ctx, "tok-one"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	token, err = store.LoadToken(ctx)
	if err != nil || token != "tok-one" {
		t.Fatalf("LoadToken: %q, err=%v", token, err)
	}

	// Saving again replaces the single row.
	if err := store.SaveToken(ctx, "tok-two"); err != nil {
		t.Fatalf("SaveToken replace: %v", err)
	}
	token, _ = store.LoadToken(ctx)
	if token != "tok-two" {
		t.Fatalf("expected tok-two, got %q", token)
	}

	if err := store.ClearToken(ctx); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	token, err = store.LoadToken(ctx)
	if err != nil || token != "" {
		t.Fatalf("expected empty token after clear, got %q, err=%v", token, err)
	}
}

func TestCacheVideoListPreservesStars(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := store.CacheVideoList(ctx, []string{"a.webm", "b.webm", "c.webm"}); err != nil {
		t.Fatalf("CacheVideoList: %v", err)
	}
	if err := store.SetStarred(ctx, "b.webm", true); err != nil {
		t.Fatalf("SetStarred: %v", err)
	}

	// b survives the next listing and keeps its star; c is gone from the
	// server and must drop out of the cache.
	if err := store.CacheVideoList(ctx, []string{"a.webm", "b.webm", "d.webm"}); err != nil {
		t.Fatalf("CacheVideoList reconcile: %v", err)
	}

	videos, err := store.ListVideos(ctx)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(videos) != 3 {
		t.Fatalf("expected 3 cached videos, got %d: %+v", len(videos), videos)
	}
	starred, err := store.StarredVideos(ctx)
	if err != nil {
		t.Fatalf("StarredVideos: %v", err)
	}
	if !starred["b.webm"] {
		t.Fatalf("expected b.webm to stay starred: %+v", starred)
	}
	if starred["a.webm"] || starred["d.webm"] {
		t.Fatalf("unexpected stars: %+v", starred)
	}
	if _, exists := starred["c.webm"]; exists {
		t.Fatalf("c.webm should have been dropped: %+v", starred)
	}
}

func TestDeleteVideo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := store.CacheVideoList(ctx, []string{"a.webm", "b.webm"}); err != nil {
		t.Fatalf("CacheVideoList: %v", err)
	}
	if err := store.DeleteVideo(ctx, "a.webm"); err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}
	videos, err := store.ListVideos(ctx)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(videos) != 1 || videos[0].Filename != "b.webm" {
		t.Fatalf("unexpected videos: %+v", videos)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := "sqlite://file:" + t.Name() + "?mode=memory&cache=shared"
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
