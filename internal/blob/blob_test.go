package blob

import (
	"context"
	"io"
	"strings"
	"testing"
)

func testStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "snapshots/a.json", strings.NewReader(`{"a":1}`), PutOptions{
		ContentType: "application/json",
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 {
		t.Fatalf("expected size 7, got %d", info.Size)
	}

	// Create-only: a second write to the same key must fail.
	if _, err := store.Put(ctx, "snapshots/a.json", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatal("expected error overwriting existing blob")
	}

	got, body, err := store.Get(ctx, "snapshots/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	payload, err := io.ReadAll(body)
	_ = body.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(payload) != `{"a":1}` {
		t.Fatalf("unexpected payload %q", payload)
	}
	if got.Key != "snapshots/a.json" {
		t.Fatalf("unexpected key %q", got.Key)
	}

	if _, err := store.Put(ctx, "snapshots/b.json", strings.NewReader(`{}`), PutOptions{}); err != nil {
		t.Fatalf("put b: %v", err)
	}
	if _, err := store.Put(ctx, "other/c.json", strings.NewReader(`{}`), PutOptions{}); err != nil {
		t.Fatalf("put c: %v", err)
	}
	infos, err := store.List(ctx, "snapshots/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "snapshots/a.json" || infos[1].Key != "snapshots/b.json" {
		t.Fatalf("unexpected listing %v", infos)
	}

	head, err := store.Head(ctx, "snapshots/a.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Size != 7 {
		t.Fatalf("unexpected head size %d", head.Size)
	}

	if _, err := store.Head(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing blob")
	}

	existed, err := store.Delete(ctx, "snapshots/a.json")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !existed {
		t.Fatal("expected delete to report existing blob")
	}
	if _, err := store.Head(ctx, "snapshots/a.json"); err == nil {
		t.Fatal("expected blob to be gone")
	}
}

func TestMemoryStoreContract(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestFilesystemStoreContract(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	testStoreContract(t, store)
}

func TestS3StoreContractAgainstMock(t *testing.T) {
	testStoreContract(t, NewMockS3ForTests())
}

func TestFilesystemRejectsTraversal(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Put(context.Background(), "../escape", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	t.Setenv("PUBLISHCORE_BLOB_DRIVER", "memory")
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %s", store.Driver())
	}

	t.Setenv("PUBLISHCORE_BLOB_DRIVER", "tape")
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
