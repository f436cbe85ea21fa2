package toolexecutor

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LoadsOnce(t *testing.T) {
	var calls int32
	loader := func() ([]*Descriptor, error) {
		atomic.AddInt32(&calls, 1)
		return []*Descriptor{
			echoDescriptor("zeta", "/api/z"),
			echoDescriptor("alpha", "/api/a"),
			{ID: "broken"},
		}, nil
	}
	registry := NewRegistry(loader, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = registry.Get("alpha")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.NoError(t, registry.LoadError())

	list := registry.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].ID)
	assert.Equal(t, "zeta", list[1].ID)

	_, ok := registry.Get("broken")
	assert.False(t, ok, "invalid descriptors are skipped")
}

func TestRegistry_LoadError(t *testing.T) {
	registry := NewRegistry(func() ([]*Descriptor, error) {
		return nil, errors.New("catalog unreadable")
	}, zerolog.Nop())

	_, ok := registry.Get("anything")
	assert.False(t, ok)
	assert.ErrorContains(t, registry.LoadError(), "catalog unreadable")
	assert.Empty(t, registry.List())
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry(nil, zerolog.Nop())

	tests := []struct {
		name    string
		d       *Descriptor
		wantErr string
	}{
		{"nil", nil, "descriptor is nil"},
		{"empty id", &Descriptor{Request: RequestSpec{URL: StaticURL("/api/x")}}, "tool id cannot be empty"},
		{"no url", &Descriptor{ID: "x"}, "tool x has no request url"},
		{"bad type", echoDescriptor("x", "/api/x", Parameter{Name: "a", Type: "date"}), "invalid parameter type date for a"},
		{"bad visibility", echoDescriptor("x", "/api/x", Parameter{Name: "a", Visibility: "public"}), "invalid visibility public for a"},
		{"unnamed parameter", echoDescriptor("x", "/api/x", Parameter{Type: "string"}), "parameter name cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.Register(tt.d)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	require.NoError(t, registry.Register(echoDescriptor("ok", "/api/ok", Parameter{Name: "file", Type: "file"})))
	d, ok := registry.Get("ok")
	require.True(t, ok)
	assert.Equal(t, "ok", d.ID)
	assert.NotNil(t, registry.schema("ok"))
}
