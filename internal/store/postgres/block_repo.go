package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/shopspring/decimal"
)

type EVMBlockRepo struct {
	db *DB
}

func NewEVMBlockRepo(db *DB) *EVMBlockRepo {
	return &EVMBlockRepo{db: db}
}

func (r *EVMBlockRepo) Save(ctx context.Context, block *model.EVMBlock) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO evm_blocks (number, hash, parent_hash, miner, gas_used, gas_limit, base_fee, transaction_count, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (number) DO UPDATE SET
			hash = EXCLUDED.hash,
			parent_hash = EXCLUDED.parent_hash,
			miner = EXCLUDED.miner,
			gas_used = EXCLUDED.gas_used,
			gas_limit = EXCLUDED.gas_limit,
			base_fee = EXCLUDED.base_fee,
			transaction_count = EXCLUDED.transaction_count,
			timestamp = EXCLUDED.timestamp
	`, block.Number, block.Hash, block.ParentHash, block.Miner, block.GasUsed, block.GasLimit,
		numeric(block.BaseFee), block.TransactionCount, block.Timestamp)
	if err != nil {
		return fmt.Errorf("upsert evm block %d: %w", block.Number, err)
	}
	return nil
}

const evmBlockColumns = `number, hash, parent_hash, miner, gas_used, gas_limit, base_fee, transaction_count, timestamp`

func (r *EVMBlockRepo) GetByNumber(ctx context.Context, number uint64) (*model.EVMBlock, error) {
	return r.get(ctx, "number = $1", number)
}

func (r *EVMBlockRepo) GetByHash(ctx context.Context, hash string) (*model.EVMBlock, error) {
	return r.get(ctx, "lower(hash) = lower($1)", hash)
}

func (r *EVMBlockRepo) get(ctx context.Context, where string, arg interface{}) (*model.EVMBlock, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var (
		b       model.EVMBlock
		baseFee decimal.NullDecimal
	)
	err := r.db.QueryRowContext(ctx, `SELECT `+evmBlockColumns+` FROM evm_blocks WHERE `+where, arg).Scan(
		&b.Number, &b.Hash, &b.ParentHash, &b.Miner, &b.GasUsed, &b.GasLimit,
		&baseFee, &b.TransactionCount, &b.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get evm block: %w", err)
	}
	b.BaseFee = fromNumeric(baseFee)
	b.Timestamp = b.Timestamp.UTC()
	return &b, nil
}

type SubstrateBlockRepo struct {
	db *DB
}

func NewSubstrateBlockRepo(db *DB) *SubstrateBlockRepo {
	return &SubstrateBlockRepo{db: db}
}

func (r *SubstrateBlockRepo) Save(ctx context.Context, block *model.SubstrateBlock) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO substrate_blocks (number, hash, parent_hash, state_root, extrinsics_root, extrinsic_count, decode_warnings, block_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (number) DO UPDATE SET
			hash = EXCLUDED.hash,
			parent_hash = EXCLUDED.parent_hash,
			state_root = EXCLUDED.state_root,
			extrinsics_root = EXCLUDED.extrinsics_root,
			extrinsic_count = EXCLUDED.extrinsic_count,
			decode_warnings = EXCLUDED.decode_warnings,
			block_timestamp = EXCLUDED.block_timestamp
	`, block.Number, block.Hash, block.ParentHash, block.StateRoot, block.ExtrinsicsRoot,
		block.ExtrinsicCount, block.DecodeWarnings, block.Timestamp)
	if err != nil {
		return fmt.Errorf("upsert substrate block %d: %w", block.Number, err)
	}
	return nil
}

func (r *SubstrateBlockRepo) GetByNumber(ctx context.Context, number uint64) (*model.SubstrateBlock, error) {
	return r.get(ctx, "number = $1", number)
}

func (r *SubstrateBlockRepo) GetByHash(ctx context.Context, hash string) (*model.SubstrateBlock, error) {
	return r.get(ctx, "lower(hash) = lower($1)", hash)
}

func (r *SubstrateBlockRepo) get(ctx context.Context, where string, arg interface{}) (*model.SubstrateBlock, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var (
		b  model.SubstrateBlock
		ts sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT number, hash, parent_hash, state_root, extrinsics_root, extrinsic_count, decode_warnings, block_timestamp
		FROM substrate_blocks WHERE `+where, arg).Scan(
		&b.Number, &b.Hash, &b.ParentHash, &b.StateRoot, &b.ExtrinsicsRoot, &b.ExtrinsicCount, &b.DecodeWarnings, &ts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get substrate block: %w", err)
	}
	if ts.Valid {
		t := ts.Time.UTC()
		b.Timestamp = &t
	}
	return &b, nil
}
