package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryBackend_SetGet(t *testing.T) {
	backend := NewMemoryBackend(MemoryConfig{})
	defer backend.Close()
	ctx := context.Background()

	data := []byte(`{"value":1}`)
	if err := backend.Set(ctx, "a", data); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Caller mutations must not leak into the stored record
	data[0] = 'X'

	got, err := backend.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"value":1}` {
		t.Errorf("Get() = %s, want {\"value\":1}", got)
	}

	if _, err := backend.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryBackend_Quota(t *testing.T) {
	backend := NewMemoryBackend(MemoryConfig{MaxEntryBytes: 4})
	defer backend.Close()
	ctx := context.Background()

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{name: "under limit", data: []byte("abc")},
		{name: "at limit", data: []byte("abcd")},
		{name: "over limit", data: []byte("abcde"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := backend.Set(ctx, tt.name, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrQuotaExceeded) {
				t.Errorf("Set() error = %v, want ErrQuotaExceeded", err)
			}
		})
	}
}

func TestMemoryBackend_SessionTTL(t *testing.T) {
	backend := NewMemoryBackend(MemoryConfig{SessionTTL: 50 * time.Millisecond})
	defer backend.Close()
	ctx := context.Background()

	if err := backend.Set(ctx, "session", []byte("x")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := backend.Get(ctx, "session"); err != nil {
		t.Fatalf("Get() before session end error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := backend.Get(ctx, "session"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after session end error = %v, want ErrNotFound", err)
	}
}

func TestMemoryBackend_Remove(t *testing.T) {
	backend := NewMemoryBackend(MemoryConfig{})
	defer backend.Close()
	ctx := context.Background()

	for _, name := range []string{"storefront:cache:a", "storefront:cache:b", "cart:1"} {
		if err := backend.Set(ctx, name, []byte("x")); err != nil {
			t.Fatalf("Set(%s) error = %v", name, err)
		}
	}

	if err := backend.Remove(ctx, "storefront:cache:a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	// Removing an absent record is not an error
	if err := backend.Remove(ctx, "storefront:cache:a"); err != nil {
		t.Errorf("Remove() of absent record error = %v", err)
	}
	if backend.Len() != 2 {
		t.Errorf("Len() = %d, want 2", backend.Len())
	}
}

func TestMemoryBackend_RemoveIf(t *testing.T) {
	tests := []struct {
		name        string
		stored      string
		expected    string
		wantRemoved bool
	}{
		{name: "unchanged record", stored: "v1", expected: "v1", wantRemoved: true},
		{name: "rewritten record", stored: "v2", expected: "v1", wantRemoved: false},
		{name: "absent record", expected: "v1", wantRemoved: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := NewMemoryBackend(MemoryConfig{})
			defer backend.Close()
			ctx := context.Background()

			if tt.stored != "" {
				if err := backend.Set(ctx, "storefront:cache:x", []byte(tt.stored)); err != nil {
					t.Fatalf("Set() error = %v", err)
				}
			}

			removed, err := backend.RemoveIf(ctx, "storefront:cache:x", []byte(tt.expected))
			if err != nil {
				t.Fatalf("RemoveIf() error = %v", err)
			}
			if removed != tt.wantRemoved {
				t.Errorf("RemoveIf() = %v, want %v", removed, tt.wantRemoved)
			}

			_, getErr := backend.Get(ctx, "storefront:cache:x")
			if present := getErr == nil; present != (tt.stored != "" && !tt.wantRemoved) {
				t.Errorf("record present = %v after RemoveIf", present)
			}
		})
	}
}

func TestMemoryBackend_Close(t *testing.T) {
	backend := NewMemoryBackend(MemoryConfig{})
	ctx := context.Background()

	_ = backend.Set(ctx, "a", []byte("x"))
	_ = backend.Set(ctx, "b", []byte("y"))

	if err := backend.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if backend.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", backend.Len())
	}
}

func TestNoopBackend(t *testing.T) {
	store := NewStore(NoopBackend{})
	ctx := context.Background()

	Set(ctx, store, KeyProductsAll, []int{1}, PolicyLong)
	if _, ok := Get[[]int](ctx, store, KeyProductsAll); ok {
		t.Error("NoopBackend should never produce a hit")
	}
	store.Clear(ctx)
}
