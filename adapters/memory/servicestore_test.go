package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/artpar/svcroute/adapters/memory"
	"github.com/artpar/svcroute/domain/service"
	"github.com/artpar/svcroute/ports"
)

func TestServiceStore_SaveGetList(t *testing.T) {
	ctx := context.Background()
	store := memory.NewServiceStore()

	for _, name := range []string{"zeta", "alpha"} {
		if err := store.Save(ctx, service.Definition{Name: name, BasePath: "/" + name}); err != nil {
			t.Fatalf("Save(%s) failed: %v", name, err)
		}
	}

	got, err := store.Get(ctx, "alpha")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.BasePath != "/alpha" {
		t.Errorf("BasePath = %q, want /alpha", got.BasePath)
	}

	list, _ := store.List(ctx)
	if len(list) != 2 || list[0].Name != "alpha" || list[1].Name != "zeta" {
		t.Errorf("List() = %+v, want alpha, zeta", list)
	}
}

func TestServiceStore_Replace(t *testing.T) {
	ctx := context.Background()
	store := memory.NewServiceStore()

	store.Save(ctx, service.Definition{Name: "svc", BasePath: "/v1"})
	store.Save(ctx, service.Definition{Name: "svc", BasePath: "/v2"})

	got, _ := store.Get(ctx, "svc")
	if got.BasePath != "/v2" {
		t.Errorf("BasePath = %q, want /v2", got.BasePath)
	}
}

func TestServiceStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := memory.NewServiceStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Delete error = %v, want ErrNotFound", err)
	}
}
