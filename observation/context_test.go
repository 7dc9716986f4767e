package observation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

type tenantID string

type requestMeta struct {
	Method string
	Path   string
}

func Test_Context_PutAndGetAreKeyedByType(t *testing.T) {
	ctx := observation.NewContext()

	observation.Put(ctx, tenantID("acme"))
	observation.Put(ctx, "plain string")
	observation.Put(ctx, &requestMeta{Method: "GET", Path: "/"})

	tenant, ok := observation.Get[tenantID](ctx)
	require.True(t, ok)
	assert.Equal(t, tenantID("acme"), tenant)

	plain, ok := observation.Get[string](ctx)
	require.True(t, ok)
	assert.Equal(t, "plain string", plain, "named and underlying types must not collide")

	meta, ok := observation.Get[*requestMeta](ctx)
	require.True(t, ok)
	assert.Equal(t, "GET", meta.Method)

	_, ok = observation.Get[requestMeta](ctx)
	assert.False(t, ok, "value and pointer types are distinct keys")
}

func Test_Context_PutReplacesValueOfSameType(t *testing.T) {
	ctx := observation.NewContext()

	observation.Put(ctx, tenantID("first"))
	observation.Put(ctx, tenantID("second"))

	assert.Equal(t, tenantID("second"), observation.GetOrDefault(ctx, tenantID("none")))
}

func Test_Context_GetMissing_ReturnsZeroValue(t *testing.T) {
	ctx := observation.NewContext()

	value, ok := observation.Get[tenantID](ctx)

	assert.False(t, ok)
	assert.Equal(t, tenantID(""), value)
	assert.False(t, observation.Has[tenantID](ctx))
}

func Test_Context_InterfaceTypedValues(t *testing.T) {
	ctx := observation.NewContext()
	parent := context.WithValue(context.Background(), tenantID("k"), "v")

	observation.Put[context.Context](ctx, parent)

	stored := observation.GetOrDefault[context.Context](ctx, context.Background())
	assert.Equal(t, "v", stored.Value(tenantID("k")))

	observation.Put[error](ctx, nil)
	storedErr, ok := observation.Get[error](ctx)
	assert.True(t, ok, "a stored nil interface value is still present")
	assert.NoError(t, storedErr)
}

func Test_Context_Remove(t *testing.T) {
	ctx := observation.NewContext()
	observation.Put(ctx, tenantID("acme"))

	removed, ok := observation.Remove[tenantID](ctx)
	require.True(t, ok)
	assert.Equal(t, tenantID("acme"), removed)
	assert.False(t, observation.Has[tenantID](ctx))

	_, ok = observation.Remove[tenantID](ctx)
	assert.False(t, ok)
}

func Test_Context_ComputeIfAbsent_CallsSupplierOnce(t *testing.T) {
	ctx := observation.NewContext()
	calls := 0
	supplier := func() *requestMeta {
		calls++
		return &requestMeta{Method: "POST"}
	}

	first := observation.ComputeIfAbsent(ctx, supplier)
	second := observation.ComputeIfAbsent(ctx, supplier)

	assert.Equal(t, 1, calls)
	assert.Same(t, first, second)
}

func Test_Context_ClearKeepsNameTagsAndError(t *testing.T) {
	ctx := observation.NewContext()
	ctx.SetContextualName("GET /users")
	ctx.AddLowCardinalityTag("method", "GET")
	observation.Put(ctx, tenantID("acme"))

	ctx.Clear()

	assert.False(t, observation.Has[tenantID](ctx))
	assert.Equal(t, "GET /users", ctx.ContextualName())
	assert.Equal(t, map[string]string{"method": "GET"}, ctx.LowCardinalityTags())
}

func Test_Context_DisplayName(t *testing.T) {
	ctx := observation.NewContext()
	assert.Equal(t, "", ctx.DisplayName())

	ctx.SetContextualName("GET /users")
	assert.Equal(t, "GET /users", ctx.DisplayName())
}

func Test_Context_TagsAreCopiesAndHighCardinalityWinsInAllTags(t *testing.T) {
	ctx := observation.NewContext()
	ctx.AddLowCardinalityTag("method", "GET")
	ctx.AddLowCardinalityTag("uri", "/users/{id}")
	ctx.AddHighCardinalityTag("uri", "/users/42")

	low := ctx.LowCardinalityTags()
	low["method"] = "POST"

	assert.Equal(t, "GET", ctx.LowCardinalityTags()["method"], "returned tags must be a copy")
	assert.Equal(t, map[string]string{"uri": "/users/42"}, ctx.HighCardinalityTags())
	assert.Equal(t, map[string]string{"method": "GET", "uri": "/users/42"}, ctx.AllTags())
}

func Test_Context_ErrorIsSetByObservation(t *testing.T) {
	ctx := observation.NewContext()
	assert.NoError(t, ctx.Error())

	failure := errors.New("failure")
	registry := newStubRegistry()
	o := observation.StartWithContext("svc.call", registry, ctx)
	o.Error(failure)

	assert.ErrorIs(t, ctx.Error(), failure)
}
