package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
)

type IndexedBlockRepo struct {
	db *DB
}

func NewIndexedBlockRepo(db *DB) *IndexedBlockRepo {
	return &IndexedBlockRepo{db: db}
}

func (r *IndexedBlockRepo) Save(ctx context.Context, block *model.IndexedBlock) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	const query = `
		INSERT INTO indexed_blocks (chain, network, block_number, block_hash, parent_hash, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chain, network, block_number)
		DO UPDATE SET block_hash = EXCLUDED.block_hash,
		              parent_hash = EXCLUDED.parent_hash,
		              indexed_at = EXCLUDED.indexed_at
	`
	_, err := r.db.ExecContext(ctx, query,
		string(block.Chain), string(block.Network), block.BlockNumber,
		block.BlockHash, block.ParentHash, block.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert indexed block %d: %w", block.BlockNumber, err)
	}
	return nil
}

func (r *IndexedBlockRepo) GetByNumber(ctx context.Context, chain model.Chain, network model.Network, number uint64) (*model.IndexedBlock, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	const query = `
		SELECT chain, network, block_number, block_hash, parent_hash, indexed_at
		FROM indexed_blocks
		WHERE chain = $1 AND network = $2 AND block_number = $3
	`
	var (
		b                model.IndexedBlock
		chainCol, netCol string
	)
	err := r.db.QueryRowContext(ctx, query, string(chain), string(network), number).Scan(
		&chainCol, &netCol, &b.BlockNumber, &b.BlockHash, &b.ParentHash, &b.IndexedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get indexed block %d: %w", number, err)
	}
	b.Chain = model.Chain(chainCol)
	b.Network = model.Network(netCol)
	b.IndexedAt = b.IndexedAt.UTC()
	return &b, nil
}
