package zkstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// TestIntegration_RoundTrip runs against a real ensemble named by
// BLOOM_ZK_ADDRESS.
func TestIntegration_RoundTrip(t *testing.T) {
	address := os.Getenv("BLOOM_ZK_ADDRESS")
	if testing.Short() || address == "" {
		t.Skip("BLOOM_ZK_ADDRESS not set")
	}
	ctx := context.Background()
	schema := types.NewSchema([]string{"host"}, "role")
	root := "/bloomstate-test/" + uuid.NewString()

	s := New("members", schema, root, address)
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Put(ctx, types.Tuple{"a", "leader"}))
	require.NoError(t, s.Put(ctx, types.Tuple{"b", "follower"}))
	require.NoError(t, s.Put(ctx, types.Tuple{"a", "follower"}))
	require.NoError(t, s.Close())

	s = New("members", schema, root, address)
	require.NoError(t, s.Open(ctx))
	defer s.Close()

	rows, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Tuple{{"a", "follower"}, {"b", "follower"}}, rows)

	require.NoError(t, s.Delete(ctx, []any{"a"}))
	require.NoError(t, s.Delete(ctx, []any{"b"}))
	_, err = s.Get(ctx, []any{"a"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}
