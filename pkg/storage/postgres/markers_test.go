package postgres_test

import (
	"context"
	"mwdb/pkg/listener"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPgSQL_Markers(t *testing.T) {
	pg, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	cursor, err := pg.Load(ctx, "https://mwdb.cert.pl/api file")
	require.NoError(t, err)
	require.Empty(t, cursor.LastID)

	require.NoError(t, pg.Save(ctx, "https://mwdb.cert.pl/api file", listener.Cursor{LastID: "a"}))
	require.NoError(t, pg.Save(ctx, "https://mwdb.cert.pl/api config", listener.Cursor{LastID: "b"}))
	require.NoError(t, pg.Save(ctx, "https://mwdb.cert.pl/api file", listener.Cursor{LastID: "c"}))

	cursor, err = pg.Load(ctx, "https://mwdb.cert.pl/api file")
	require.NoError(t, err)
	require.Equal(t, "c", cursor.LastID)

	cursor, err = pg.Load(ctx, "https://mwdb.cert.pl/api config")
	require.NoError(t, err)
	require.Equal(t, "b", cursor.LastID)
}
