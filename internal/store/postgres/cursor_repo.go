package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
)

type CursorRepo struct {
	db *DB
}

func NewCursorRepo(db *DB) *CursorRepo {
	return &CursorRepo{db: db}
}

func (r *CursorRepo) Get(ctx context.Context, chain model.Chain, network model.Network) (*model.IndexerCursor, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	c := model.IndexerCursor{Chain: chain, Network: network}
	err := r.db.QueryRowContext(ctx, `
		SELECT latest_indexed_block, updated_at
		FROM indexer_cursors
		WHERE chain = $1 AND network = $2
	`, string(chain), string(network)).Scan(&c.LatestIndexedBlock, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cursor: %w", err)
	}
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// Save never moves a stored cursor backwards.
func (r *CursorRepo) Save(ctx context.Context, cursor *model.IndexerCursor) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO indexer_cursors (chain, network, latest_indexed_block, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chain, network) DO UPDATE SET
			latest_indexed_block = EXCLUDED.latest_indexed_block,
			updated_at = EXCLUDED.updated_at
		WHERE indexer_cursors.latest_indexed_block <= EXCLUDED.latest_indexed_block
	`, string(cursor.Chain), string(cursor.Network), cursor.LatestIndexedBlock, cursor.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}
