package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/nursesim/internal/vector"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Chest pain and shortness of breath")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "chest PAIN and shortness of breath")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)

	sim, err := vector.Cosine(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-6)
}

func TestMockEmbedder_SharedWordsAreCloser(t *testing.T) {
	e := NewMockEmbedder(128)
	ctx := context.Background()

	q, _ := e.Embed(ctx, "high fever")
	near, _ := e.Embed(ctx, "fever with chills")
	far, _ := e.Embed(ctx, "broken wrist")

	simNear, err := vector.Cosine(q, near)
	require.NoError(t, err)
	simFar, err := vector.Cosine(q, far)
	require.NoError(t, err)
	assert.Greater(t, simNear, simFar)
}

func TestMockEmbedder_EmptyText(t *testing.T) {
	e := NewMockEmbedder(8)
	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

func TestMockEmbedder_CanceledContext(t *testing.T) {
	e := NewMockEmbedder(8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockEmbedder_Batch(t *testing.T) {
	e := NewMockEmbedder(16)
	out, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, 16, e.Dimensions())
	assert.NoError(t, e.Close())
}
