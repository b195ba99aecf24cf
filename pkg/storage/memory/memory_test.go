package memory_test

import (
	"context"
	"mwdb/pkg/listener"
	"mwdb/pkg/storage/memory"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := memory.New()

	cursor, err := m.Load(ctx, "key")
	require.NoError(t, err)
	require.Empty(t, cursor.LastID)

	require.NoError(t, m.Save(ctx, "key", listener.Cursor{LastID: "a"}))
	require.NoError(t, m.Save(ctx, "other", listener.Cursor{LastID: "b"}))

	cursor, err = m.Load(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, "a", cursor.LastID)
}
