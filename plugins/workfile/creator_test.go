package workfile

import (
	"context"
	"testing"

	"publishcore/internal/hoststore"
	"publishcore/pkg/create"
)

func TestAutoCreateOncePerSession(t *testing.T) {
	adapter := hoststore.NewAdapter(hoststore.NewMemoryStore())
	adapter.SetCurrentContext("/shots/sq01_sh010", "comp")
	creator := New(adapter)
	cc := create.NewCreateContext(adapter)
	if err := cc.RegisterCreator(creator); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := cc.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(cc.Instances()) != 1 {
		t.Fatalf("expected auto-created workfile instance, got %d", len(cc.Instances()))
	}
	instance := cc.Instances()[0]
	if instance.ProductType() != "workfile" {
		t.Fatalf("unexpected product type %q", instance.ProductType())
	}
	if folder, _ := instance.Value("folderPath"); folder != "/shots/sq01_sh010" {
		t.Fatalf("expected current folder, got %v", folder)
	}

	// A second reset collects the stored instance instead of recreating.
	if err := cc.Reset(context.Background()); err != nil {
		t.Fatalf("second reset: %v", err)
	}
	if len(cc.Instances()) != 1 {
		t.Fatalf("expected one instance after second reset, got %d", len(cc.Instances()))
	}
	if cc.Instances()[0].ID() != instance.ID() {
		t.Fatal("workfile instance must keep its identity across resets")
	}
}
