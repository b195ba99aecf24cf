package postgres

import (
	"context"
	"fmt"
	"mwdb/pkg/listener"

	"github.com/doug-martin/goqu/v9"
)

const markersTable = "listener_markers"

type pgMarker struct {
	Key    string `db:"key"`
	LastID string `db:"last_id"`
}

// Load returns the marker saved under key.
func (p *PgSQL) Load(ctx context.Context, key string) (listener.Cursor, error) {
	var m pgMarker
	found, err := p.Builder.From(markersTable).
		Select("key", "last_id").
		Where(goqu.I("key").Eq(key)).
		ScanStructContext(ctx, &m)
	if err != nil {
		return listener.Cursor{}, fmt.Errorf("could not load marker from pg: %w", err)
	}
	if !found {
		return listener.Cursor{}, nil
	}

	return listener.Cursor{LastID: m.LastID}, nil
}

// Save upserts the marker saved under key.
func (p *PgSQL) Save(ctx context.Context, key string, cursor listener.Cursor) error {
	_, err := p.Builder.Insert(markersTable).
		Rows(pgMarker{Key: key, LastID: cursor.LastID}).
		OnConflict(goqu.DoUpdate("key", goqu.Record{
			"last_id":    goqu.L("EXCLUDED.last_id"),
			"updated_at": goqu.L("CURRENT_TIMESTAMP"),
		})).
		Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("could not save marker into pg: %w", err)
	}

	return nil
}
