package summary

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisMarkerMarkOnce(t *testing.T) {
	srv := miniredis.RunT(t)
	m := NewRedisMarker(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	ctx := context.Background()

	first, err := m.MarkOnce(ctx, "rec-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := m.MarkOnce(ctx, "rec-1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := m.MarkOnce(ctx, "rec-2")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestRedisMarkerUnmarkReleases(t *testing.T) {
	srv := miniredis.RunT(t)
	m := NewRedisMarker(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	ctx := context.Background()

	_, err := m.MarkOnce(ctx, "rec-1")
	require.NoError(t, err)
	require.NoError(t, m.Unmark(ctx, "rec-1"))

	first, err := m.MarkOnce(ctx, "rec-1")
	require.NoError(t, err)
	assert.True(t, first, "a released id can be claimed again")
}
