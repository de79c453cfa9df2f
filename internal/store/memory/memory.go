// Package memory is a map-backed store used by tests and STORE_BACKEND=memory.
package memory

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/store"
)

// New returns a Store whose repositories share nothing but live for the
// lifetime of the process.
func New() *store.Store {
	return &store.Store{
		EVMBlocks:       NewEVMBlockRepo(),
		Transactions:    NewTransactionRepo(),
		Accounts:        NewAccountRepo(),
		SubstrateBlocks: NewSubstrateBlockRepo(),
		Extrinsics:      NewExtrinsicRepo(),
		IndexedBlocks:   NewIndexedBlockRepo(),
		Cursors:         NewCursorRepo(),
	}
}

func normalizeHash(h string) string {
	return strings.ToLower(h)
}

type EVMBlockRepo struct {
	mu       sync.RWMutex
	byNumber map[uint64]model.EVMBlock
}

func NewEVMBlockRepo() *EVMBlockRepo {
	return &EVMBlockRepo{byNumber: make(map[uint64]model.EVMBlock)}
}

func (r *EVMBlockRepo) Save(_ context.Context, block *model.EVMBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := *block
	b.BaseFee = cloneBig(block.BaseFee)
	r.byNumber[block.Number] = b
	return nil
}

func (r *EVMBlockRepo) GetByNumber(_ context.Context, number uint64) (*model.EVMBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byNumber[number]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *EVMBlockRepo) GetByHash(_ context.Context, hash string) (*model.EVMBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.byNumber {
		if normalizeHash(b.Hash) == normalizeHash(hash) {
			b := b
			return &b, nil
		}
	}
	return nil, nil
}

type TransactionRepo struct {
	mu     sync.RWMutex
	byHash map[string]model.EVMTransaction
}

func NewTransactionRepo() *TransactionRepo {
	return &TransactionRepo{byHash: make(map[string]model.EVMTransaction)}
}

func (r *TransactionRepo) Save(_ context.Context, tx *model.EVMTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHash[normalizeHash(tx.Hash)] = *tx
	return nil
}

func (r *TransactionRepo) GetByHash(_ context.Context, hash string) (*model.EVMTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.byHash[normalizeHash(hash)]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (r *TransactionRepo) CountByBlockNumber(_ context.Context, number uint64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, tx := range r.byHash {
		if tx.BlockNumber == number {
			n++
		}
	}
	return n, nil
}

type AccountRepo struct {
	mu        sync.RWMutex
	byAddress map[string]model.AccountInfo
}

func NewAccountRepo() *AccountRepo {
	return &AccountRepo{byAddress: make(map[string]model.AccountInfo)}
}

// Save keeps the state seen at the highest block.
func (r *AccountRepo) Save(_ context.Context, account *model.AccountInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalizeHash(account.Address)
	if prev, ok := r.byAddress[key]; ok && prev.BlockNumber > account.BlockNumber {
		return nil
	}
	a := *account
	a.Balance = cloneBig(account.Balance)
	r.byAddress[key] = a
	return nil
}

func (r *AccountRepo) GetByAddress(_ context.Context, address string) (*model.AccountInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byAddress[normalizeHash(address)]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

type SubstrateBlockRepo struct {
	mu       sync.RWMutex
	byNumber map[uint64]model.SubstrateBlock
}

func NewSubstrateBlockRepo() *SubstrateBlockRepo {
	return &SubstrateBlockRepo{byNumber: make(map[uint64]model.SubstrateBlock)}
}

func (r *SubstrateBlockRepo) Save(_ context.Context, block *model.SubstrateBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byNumber[block.Number] = *block
	return nil
}

func (r *SubstrateBlockRepo) GetByNumber(_ context.Context, number uint64) (*model.SubstrateBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byNumber[number]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *SubstrateBlockRepo) GetByHash(_ context.Context, hash string) (*model.SubstrateBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.byNumber {
		if normalizeHash(b.Hash) == normalizeHash(hash) {
			b := b
			return &b, nil
		}
	}
	return nil, nil
}

type extrinsicKey struct {
	block uint64
	index int
}

type ExtrinsicRepo struct {
	mu    sync.RWMutex
	byKey map[extrinsicKey]model.ExtrinsicDetails
}

func NewExtrinsicRepo() *ExtrinsicRepo {
	return &ExtrinsicRepo{byKey: make(map[extrinsicKey]model.ExtrinsicDetails)}
}

func (r *ExtrinsicRepo) Save(_ context.Context, ext *model.ExtrinsicDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[extrinsicKey{block: ext.BlockNumber, index: ext.Index}] = *ext
	return nil
}

func (r *ExtrinsicRepo) GetByHash(_ context.Context, hash string) (*model.ExtrinsicDetails, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.byKey {
		if e.Hash != "" && normalizeHash(e.Hash) == normalizeHash(hash) {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (r *ExtrinsicRepo) GetByBlockNumber(_ context.Context, number uint64) ([]model.ExtrinsicDetails, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ExtrinsicDetails, 0)
	for k, e := range r.byKey {
		if k.block == number {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (r *ExtrinsicRepo) CountByBlockNumber(ctx context.Context, number uint64) (int, error) {
	exts, err := r.GetByBlockNumber(ctx, number)
	return len(exts), err
}

type indexedKey struct {
	chain   model.Chain
	network model.Network
	number  uint64
}

type IndexedBlockRepo struct {
	mu     sync.RWMutex
	blocks map[indexedKey]model.IndexedBlock
}

func NewIndexedBlockRepo() *IndexedBlockRepo {
	return &IndexedBlockRepo{blocks: make(map[indexedKey]model.IndexedBlock)}
}

func (r *IndexedBlockRepo) Save(_ context.Context, block *model.IndexedBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[indexedKey{block.Chain, block.Network, block.BlockNumber}] = *block
	return nil
}

func (r *IndexedBlockRepo) GetByNumber(_ context.Context, chain model.Chain, network model.Network, number uint64) (*model.IndexedBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blocks[indexedKey{chain, network, number}]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

type cursorKey struct {
	chain   model.Chain
	network model.Network
}

type CursorRepo struct {
	mu      sync.RWMutex
	cursors map[cursorKey]model.IndexerCursor
}

func NewCursorRepo() *CursorRepo {
	return &CursorRepo{cursors: make(map[cursorKey]model.IndexerCursor)}
}

func (r *CursorRepo) Get(_ context.Context, chain model.Chain, network model.Network) (*model.IndexerCursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cursors[cursorKey{chain, network}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Save never moves a stored cursor backwards.
func (r *CursorRepo) Save(_ context.Context, cursor *model.IndexerCursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := cursorKey{cursor.Chain, cursor.Network}
	if prev, ok := r.cursors[key]; ok && prev.LatestIndexedBlock > cursor.LatestIndexedBlock {
		return nil
	}
	r.cursors[key] = *cursor
	return nil
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
