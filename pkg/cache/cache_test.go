package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "catalog:categories", []string{"tees", "hoodies"}, time.Minute))

	var got []string
	assert.True(t, m.Get(ctx, "catalog:categories", &got))
	assert.Equal(t, []string{"tees", "hoodies"}, got)
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", 1, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var n int
	assert.False(t, m.Get(ctx, "k", &n))
}

func TestMemory_DelPrefix(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "catalog:featured:8", 1, 0)
	_ = m.Set(ctx, "catalog:categories", 1, 0)
	_ = m.Set(ctx, "other", 1, 0)

	require.NoError(t, m.DelPrefix(ctx, "catalog:"))

	var n int
	assert.False(t, m.Get(ctx, "catalog:featured:8", &n))
	assert.False(t, m.Get(ctx, "catalog:categories", &n))
	assert.True(t, m.Get(ctx, "other", &n))
}
