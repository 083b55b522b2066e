package editor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegistry(t *testing.T) {
	var created atomic.Int32
	r := NewRegistry(func(ctx context.Context, id string) (*Controller, error) {
		created.Add(1)
		if id == "bad" {
			return nil, errors.New("no such session")
		}
		return New(&fakeUpstream{}), nil
	})
	defer r.Close()

	ctx := context.Background()
	a, err := r.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	again, _ := r.Get(ctx, "a")
	if a != again || created.Load() != 1 {
		t.Fatal("Get should reuse the session's controller")
	}
	if _, err := r.Get(ctx, "bad"); err == nil {
		t.Fatal("factory error not returned")
	}

	// The first Get starts loading in the background.
	deadline := time.Now().Add(2 * time.Second)
	for !a.Snapshot().Loaded {
		if time.Now().After(deadline) {
			t.Fatal("controller never loaded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := r.Get(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if n := r.Sweep(func(id string) bool { return id == "a" }); n != 1 {
		t.Errorf("swept %d, want 1", n)
	}
	if _, ok := r.Lookup("b"); ok {
		t.Error("b survived the sweep")
	}

	r.Drop("a")
	if r.Len() != 0 {
		t.Errorf("len = %d", r.Len())
	}
	if _, err := a.SetValue(context.Background(), headline, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("dropped controller still open: %v", err)
	}
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry(func(context.Context, string) (*Controller, error) {
		return New(&fakeUpstream{}), nil
	})
	c, err := r.Get(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	r.Close()
	if _, err := r.Get(context.Background(), "a"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close err = %v", err)
	}
	if c.Snapshot().Revision != 0 {
		t.Error("closed controller should report the zero snapshot")
	}
}
