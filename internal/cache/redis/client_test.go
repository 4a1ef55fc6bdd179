package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat/backend/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	c, err := NewClient(config.RedisConfig{Host: mr.Host(), Port: port, KeyPrefix: "docchat:search:"})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

type cachedResult struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func TestClient_SetGetQuery(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	var got []cachedResult
	found, err := c.GetQuery(ctx, "abc", &got)
	require.NoError(t, err)
	assert.False(t, found)

	want := []cachedResult{{ID: "d1_0", Score: 4}, {ID: "d1_1", Score: 1}}
	require.NoError(t, c.SetQuery(ctx, "abc", want, time.Minute))
	assert.True(t, mr.Exists("docchat:search:abc"))

	found, err = c.GetQuery(ctx, "abc", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	found, err = c.GetQuery(ctx, "abc", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_InvalidateOnlyOwnPrefix(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	for _, k := range []string{"q1", "q2", "q3"} {
		require.NoError(t, c.SetQuery(ctx, k, []cachedResult{}, time.Minute))
	}
	require.NoError(t, mr.Set("other:key", "keep"))

	require.NoError(t, c.InvalidateDocumentCache(ctx))

	assert.Equal(t, []string{"docchat:search:generation", "other:key"}, mr.Keys())
}

func TestClient_GenerationAdvancesOnInvalidate(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, c.InvalidateDocumentCache(ctx))
	require.NoError(t, c.InvalidateDocumentCache(ctx))

	gen, err = c.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen)
}

func TestClient_CorruptEntry(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, mr.Set("docchat:search:bad", "{not json"))

	var got []cachedResult
	found, err := c.GetQuery(context.Background(), "bad", &got)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	port, _ := strconv.Atoi(mr.Port())
	mr.Close()

	_, err := NewClient(config.RedisConfig{Host: "127.0.0.1", Port: port})
	assert.Error(t, err)
}
