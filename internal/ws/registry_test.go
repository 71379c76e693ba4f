package ws

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_FirstAndLastConnection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	phone := newFakeConn("alice")
	laptop := newFakeConn("alice")

	// When the same identity connects twice
	req.True(registry.Register(phone))
	req.False(registry.Register(laptop))

	// Then both connections are reachable
	req.Len(registry.ConnectionsFor("alice"), 2)
	req.Equal(2, registry.Len())
	req.True(registry.Online("alice"))

	// When they disconnect one by one
	removed, last := registry.Unregister(phone)
	req.True(removed)
	req.False(last)
	removed, last = registry.Unregister(laptop)
	req.True(removed)
	req.True(last)

	// Then the identity is gone
	req.Empty(registry.ConnectionsFor("alice"))
	req.False(registry.Online("alice"))
	req.Zero(registry.Len())
}

func TestRegistry_RegisterIsIdempotentAndUnregisterToleratesUnknown(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	c := newFakeConn("bob")

	req.True(registry.Register(c))
	req.False(registry.Register(c))
	req.Equal(1, registry.Len())

	removed, last := registry.Unregister(newFakeConn("bob"))
	req.False(removed)
	req.False(last)
	req.Equal(1, registry.Len())
}

func TestRegistry_Clear(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Register(newFakeConn("a"))
	registry.Register(newFakeConn("a"))
	registry.Register(newFakeConn("b"))

	all := registry.Clear()

	req.Len(all, 3)
	req.Zero(registry.Len())
	req.Empty(registry.ConnectionsFor("a"))
}

func TestRegistry_ConcurrentRegisterUnregister(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newFakeConn("shared")
			registry.Register(c)
			registry.ConnectionsFor("shared")
			registry.Unregister(c)
		}()
	}
	wg.Wait()

	req.Zero(registry.Len())
	req.False(registry.Online("shared"))
}
