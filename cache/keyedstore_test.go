package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedStoreSetGet(t *testing.T) {
	store := NewKeyedStore[string, string]()

	store.Set("a", "value", time.Minute)

	got, ok := store.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestKeyedStoreExpiry(t *testing.T) {
	store := NewKeyedStore[string, int]()

	store.Set("short", 1, -time.Second) // already expired
	store.Set("long", 2, time.Hour)

	_, ok := store.Get("short")
	assert.False(t, ok)

	got, ok := store.Get("long")
	assert.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestKeyedStoreSweep(t *testing.T) {
	store := NewKeyedStore[string, int]()

	store.Set("a", 1, -time.Second)
	store.Set("b", 2, -time.Second)
	store.Set("c", 3, time.Hour)

	removed := store.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, store.Len())
}

func TestKeyedStoreDelete(t *testing.T) {
	store := NewKeyedStore[string, int]()
	store.Set("a", 1, time.Hour)

	store.Delete("a")

	_, ok := store.Get("a")
	assert.False(t, ok)
}
