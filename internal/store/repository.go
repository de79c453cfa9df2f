// Package store declares the storage collaborator used by the block handlers
// and the processor. Lookups of absent records return (nil, nil).
package store

import (
	"context"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
)

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks . CursorRepository,ExtrinsicRepository

// EVMBlockRepository stores EVM block headers.
type EVMBlockRepository interface {
	Save(ctx context.Context, block *model.EVMBlock) error
	GetByNumber(ctx context.Context, number uint64) (*model.EVMBlock, error)
	GetByHash(ctx context.Context, hash string) (*model.EVMBlock, error)
}

// TransactionRepository stores EVM transactions.
type TransactionRepository interface {
	Save(ctx context.Context, tx *model.EVMTransaction) error
	GetByHash(ctx context.Context, hash string) (*model.EVMTransaction, error)
	CountByBlockNumber(ctx context.Context, number uint64) (int, error)
}

// AccountRepository keeps the latest known state of each EVM account.
type AccountRepository interface {
	Save(ctx context.Context, account *model.AccountInfo) error
	GetByAddress(ctx context.Context, address string) (*model.AccountInfo, error)
}

// SubstrateBlockRepository stores Substrate block headers.
type SubstrateBlockRepository interface {
	Save(ctx context.Context, block *model.SubstrateBlock) error
	GetByNumber(ctx context.Context, number uint64) (*model.SubstrateBlock, error)
	GetByHash(ctx context.Context, hash string) (*model.SubstrateBlock, error)
}

// ExtrinsicRepository stores decoded extrinsics keyed by (block, index).
type ExtrinsicRepository interface {
	Save(ctx context.Context, ext *model.ExtrinsicDetails) error
	GetByHash(ctx context.Context, hash string) (*model.ExtrinsicDetails, error)
	GetByBlockNumber(ctx context.Context, number uint64) ([]model.ExtrinsicDetails, error)
	CountByBlockNumber(ctx context.Context, number uint64) (int, error)
}

// IndexedBlockRepository records which blocks a handler finished.
type IndexedBlockRepository interface {
	Save(ctx context.Context, block *model.IndexedBlock) error
	GetByNumber(ctx context.Context, chain model.Chain, network model.Network, number uint64) (*model.IndexedBlock, error)
}

// CursorRepository persists latest_indexed_block per chain.
type CursorRepository interface {
	Get(ctx context.Context, chain model.Chain, network model.Network) (*model.IndexerCursor, error)
	Save(ctx context.Context, cursor *model.IndexerCursor) error
}

// Store groups one backend's repositories.
type Store struct {
	EVMBlocks       EVMBlockRepository
	Transactions    TransactionRepository
	Accounts        AccountRepository
	SubstrateBlocks SubstrateBlockRepository
	Extrinsics      ExtrinsicRepository
	IndexedBlocks   IndexedBlockRepository
	Cursors         CursorRepository
}
