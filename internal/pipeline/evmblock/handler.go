// Package evmblock indexes one EVM block: its header, transactions with
// receipts, and the state of every account the block touched.
package evmblock

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/metrics"
	"github.com/selendra/selendra-explorer-sub000/internal/store"
	"golang.org/x/sync/errgroup"
)

const accountLookupConcurrency = 4

// ChainClient is the EVM RPC surface the handler reads blocks through.
type ChainClient interface {
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// AccountReader resolves an address to its state and contract type.
type AccountReader interface {
	AccountInfo(ctx context.Context, addr common.Address, block *big.Int) (*model.AccountInfo, error)
}

type Handler struct {
	client   ChainClient
	accounts AccountReader
	store    *store.Store
	network  model.Network
	logger   *slog.Logger
	nowFn    func() time.Time

	signerMu sync.Mutex
	signer   types.Signer
}

func New(client ChainClient, accounts AccountReader, st *store.Store, network model.Network, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		client:   client,
		accounts: accounts,
		store:    st,
		network:  network,
		logger:   logger.With("component", "evm_block_handler"),
		nowFn:    time.Now,
	}
}

func (h *Handler) Chain() model.Chain {
	return model.ChainEVM
}

// Concurrent is true: the RPC client and the repositories are safe to share.
func (h *Handler) Concurrent() bool {
	return true
}

func (h *Handler) HeadBlock(ctx context.Context) (uint64, error) {
	return h.client.BlockNumber(ctx)
}

// ProcessBlock indexes block number. RPC failures fail the attempt; save
// failures are logged and counted.
func (h *Handler) ProcessBlock(ctx context.Context, number uint64) error {
	blockNumber := new(big.Int).SetUint64(number)
	block, err := h.client.BlockByNumber(ctx, blockNumber)
	if err != nil {
		return fmt.Errorf("fetch block %d: %w", number, err)
	}
	if block == nil {
		return fmt.Errorf("fetch block %d: %w", number, model.ErrNotFound)
	}

	signer, err := h.txSigner(ctx)
	if err != nil {
		return err
	}

	touched := newAddressSet()
	for i, tx := range block.Transactions() {
		record, err := h.transaction(ctx, signer, block, uint(i), tx)
		if err != nil {
			return err
		}
		h.save(ctx, "transaction", record.Hash, func(ctx context.Context) error {
			return h.store.Transactions.Save(ctx, record)
		})

		if record.From != "" {
			touched.add(common.HexToAddress(record.From))
		}
		if record.To != nil {
			touched.add(common.HexToAddress(*record.To))
		}
		if record.ContractAddress != nil {
			touched.add(common.HexToAddress(*record.ContractAddress))
		}
	}

	if err := h.indexAccounts(ctx, touched.list(), blockNumber); err != nil {
		return err
	}

	header := &model.EVMBlock{
		Number:           number,
		Hash:             block.Hash().Hex(),
		ParentHash:       block.ParentHash().Hex(),
		Miner:            block.Coinbase().Hex(),
		GasUsed:          block.GasUsed(),
		GasLimit:         block.GasLimit(),
		BaseFee:          block.BaseFee(),
		TransactionCount: len(block.Transactions()),
		Timestamp:        time.Unix(int64(block.Time()), 0).UTC(),
	}
	h.save(ctx, "block", header.Hash, func(ctx context.Context) error {
		return h.store.EVMBlocks.Save(ctx, header)
	})
	h.save(ctx, "indexed_block", header.Hash, func(ctx context.Context) error {
		return h.store.IndexedBlocks.Save(ctx, &model.IndexedBlock{
			Chain:       model.ChainEVM,
			Network:     h.network,
			BlockNumber: number,
			BlockHash:   header.Hash,
			ParentHash:  header.ParentHash,
			IndexedAt:   h.nowFn().UTC(),
		})
	})

	h.logger.Debug("block indexed",
		"block", number,
		"transactions", header.TransactionCount,
		"accounts", touched.len(),
	)
	return nil
}

func (h *Handler) transaction(ctx context.Context, signer types.Signer, block *types.Block, index uint, tx *types.Transaction) (*model.EVMTransaction, error) {
	receipt, err := h.client.TransactionReceipt(ctx, tx.Hash())
	if err != nil {
		return nil, fmt.Errorf("fetch receipt %s: %w", tx.Hash().Hex(), err)
	}

	record := &model.EVMTransaction{
		Hash:        tx.Hash().Hex(),
		BlockNumber: block.NumberU64(),
		BlockHash:   block.Hash().Hex(),
		Index:       index,
		Value:       tx.Value(),
		Gas:         tx.Gas(),
		GasPrice:    tx.GasPrice(),
		GasUsed:     receipt.GasUsed,
		Nonce:       tx.Nonce(),
		Input:       hexutil.Encode(tx.Data()),
		Status:      model.TxStatusFailed,
	}
	if receipt.EffectiveGasPrice != nil {
		record.GasPrice = receipt.EffectiveGasPrice
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		record.Status = model.TxStatusSuccess
	}

	from, err := types.Sender(signer, tx)
	if err != nil {
		h.logger.Warn("sender recovery failed", "tx", record.Hash, "error", err)
	} else {
		record.From = from.Hex()
	}
	if to := tx.To(); to != nil {
		s := to.Hex()
		record.To = &s
	}
	if receipt.ContractAddress != (common.Address{}) {
		s := receipt.ContractAddress.Hex()
		record.ContractAddress = &s
	}
	return record, nil
}

// indexAccounts reads and saves the state of each address at block.
func (h *Handler) indexAccounts(ctx context.Context, addrs []common.Address, block *big.Int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(accountLookupConcurrency)
	for _, addr := range addrs {
		addr := addr
		g.Go(func() error {
			info, err := h.accounts.AccountInfo(gctx, addr, block)
			if err != nil {
				return fmt.Errorf("account %s: %w", addr.Hex(), err)
			}
			info.BlockNumber = block.Uint64()
			if info.IsContract && info.ContractType != nil {
				if supply, ok := info.ContractType.FormattedTotalSupply(); ok {
					h.logger.Debug("token seen",
						"address", info.Address,
						"type", info.ContractType.Type.String(),
						"total_supply", supply,
					)
				}
			} else {
				h.logger.Debug("account seen",
					"address", info.Address,
					"balance", model.FormatUnits(info.Balance, model.NativeDecimals),
				)
			}
			h.save(gctx, "account", info.Address, func(ctx context.Context) error {
				return h.store.Accounts.Save(ctx, info)
			})
			return nil
		})
	}
	return g.Wait()
}

func (h *Handler) txSigner(ctx context.Context) (types.Signer, error) {
	h.signerMu.Lock()
	defer h.signerMu.Unlock()
	if h.signer != nil {
		return h.signer, nil
	}
	chainID, err := h.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	h.signer = types.LatestSignerForChainID(chainID)
	return h.signer, nil
}

func (h *Handler) save(ctx context.Context, record, key string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		metrics.StoreSaveErrors.WithLabelValues(model.ChainEVM.String(), record).Inc()
		h.logger.Warn("save failed", "record", record, "key", key, "error", err)
	}
}

// addressSet keeps first-seen order so lookups are deterministic.
type addressSet struct {
	seen  map[common.Address]struct{}
	order []common.Address
}

func newAddressSet() *addressSet {
	return &addressSet{seen: make(map[common.Address]struct{})}
}

func (s *addressSet) add(a common.Address) {
	if _, ok := s.seen[a]; ok {
		return
	}
	s.seen[a] = struct{}{}
	s.order = append(s.order, a)
}

func (s *addressSet) list() []common.Address {
	return s.order
}

func (s *addressSet) len() int {
	return len(s.order)
}
