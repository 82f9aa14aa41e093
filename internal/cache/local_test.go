package cache

import (
	"context"
	"testing"
	"time"

	"github.com/kazunetakeda25/feedstream/internal/provider"
)

func TestLocal_SetGet(t *testing.T) {
	c := NewLocal()
	defer c.Close()
	ctx := context.Background()

	env := Fresh(provider.Response{Result: 64123.5})
	if err := c.Set(ctx, "BTC/USD", env, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := c.Get(ctx, "BTC/USD")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Get reported a miss for a stored key")
	}
	if got.Response.Result != 64123.5 {
		t.Errorf("Result = %v, want %v", got.Response.Result, 64123.5)
	}
	if got.MaxAge != MaxAgeOverride {
		t.Errorf("MaxAge = %d, want %d", got.MaxAge, MaxAgeOverride)
	}
}

func TestLocal_Miss(t *testing.T) {
	c := NewLocal()
	defer c.Close()

	_, ok, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Get reported a hit for a missing key")
	}
}

func TestLocal_Expiry(t *testing.T) {
	c := NewLocal()
	defer c.Close()
	ctx := context.Background()

	env := Fresh(provider.Response{Result: 1})
	if err := c.Set(ctx, "ETH/USD", env, 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, ok, _ := c.Get(ctx, "ETH/USD"); !ok {
		t.Fatal("entry expired before its TTL")
	}

	time.Sleep(30 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "ETH/USD"); ok {
		t.Error("entry survived past its TTL")
	}
}

func TestLocal_Overwrite(t *testing.T) {
	c := NewLocal()
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "BTC/USD", Fresh(provider.Response{Result: 1}), 0)
	c.Set(ctx, "BTC/USD", Fresh(provider.Response{Result: 2}), 0)

	got, ok, _ := c.Get(ctx, "BTC/USD")
	if !ok || got.Response.Result != 2 {
		t.Errorf("got %+v ok=%v, want latest write with Result=2", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestLocal_Delete(t *testing.T) {
	c := NewLocal()
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "BTC/USD", Fresh(provider.Response{Result: 1}), 0)
	if err := c.Delete(ctx, "BTC/USD"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, ok, _ := c.Get(ctx, "BTC/USD"); ok {
		t.Error("Get reported a hit after Delete")
	}
}

func TestLocal_Closed(t *testing.T) {
	c := NewLocal()
	ctx := context.Background()
	c.Close()

	if err := c.Set(ctx, "k", Envelope{}, 0); err != ErrClosed {
		t.Errorf("Set after Close returned %v, want ErrClosed", err)
	}
	if _, _, err := c.Get(ctx, "k"); err != ErrClosed {
		t.Errorf("Get after Close returned %v, want ErrClosed", err)
	}
}
