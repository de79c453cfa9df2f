// Package substrateblock indexes one Substrate block and its extrinsics.
package substrateblock

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/selendra/selendra-explorer-sub000/internal/chain/substrate/rpc"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/metrics"
	"github.com/selendra/selendra-explorer-sub000/internal/store"
	"github.com/selendra/selendra-explorer-sub000/internal/substrate/extrinsic"
	"golang.org/x/crypto/blake2b"
)

// ChainClient is the Substrate RPC surface the handler reads blocks through.
type ChainClient interface {
	GetBlockHash(ctx context.Context, number uint64) (string, error)
	GetBlock(ctx context.Context, hash string) (*rpc.SignedBlock, error)
	FinalizedNumber(ctx context.Context) (uint64, error)
	GetStorage(ctx context.Context, pallet, item string, key []byte, at string) ([]byte, error)
}

// ExtrinsicDecoder decodes the raw extrinsics of one block.
type ExtrinsicDecoder interface {
	DecodeExtrinsics(raws [][]byte) ([]*model.ExtrinsicDetails, error)
}

type Handler struct {
	client  ChainClient
	decoder ExtrinsicDecoder
	store   *store.Store
	network model.Network
	logger  *slog.Logger
	nowFn   func() time.Time
}

func New(client ChainClient, decoder ExtrinsicDecoder, st *store.Store, network model.Network, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		client:  client,
		decoder: decoder,
		store:   st,
		network: network,
		logger:  logger.With("component", "substrate_block_handler"),
		nowFn:   time.Now,
	}
}

func (h *Handler) Chain() model.Chain {
	return model.ChainSubstrate
}

func (h *Handler) Concurrent() bool {
	return true
}

// HeadBlock is the finalized head, so indexed blocks are never reorged out.
func (h *Handler) HeadBlock(ctx context.Context) (uint64, error) {
	return h.client.FinalizedNumber(ctx)
}

// ProcessBlock indexes block number. A block with extrinsics of which none
// decode fails the attempt; partial decode failures are logged.
func (h *Handler) ProcessBlock(ctx context.Context, number uint64) error {
	hash, err := h.client.GetBlockHash(ctx, number)
	if err != nil {
		return fmt.Errorf("fetch block hash %d: %w", number, err)
	}
	signed, err := h.client.GetBlock(ctx, hash)
	if err != nil {
		return fmt.Errorf("fetch block %d: %w", number, err)
	}
	if signed == nil {
		return fmt.Errorf("fetch block %d: %w", number, model.ErrNotFound)
	}
	block := signed.Block

	raws := make([][]byte, len(block.Extrinsics))
	for i, s := range block.Extrinsics {
		raw, err := hexutil.Decode(s)
		if err != nil {
			// Left empty; the decoder reports it at index i.
			h.logger.Warn("extrinsic hex decode failed", "block", number, "index", i, "error", err)
			continue
		}
		raws[i] = raw
	}

	decoded, err := h.decoder.DecodeExtrinsics(raws)
	warnings := 0
	if err != nil {
		var batchErr *extrinsic.BatchError
		if !errors.As(err, &batchErr) || !batchErr.IsPartial() {
			return fmt.Errorf("decode extrinsics of block %d: %w", number, err)
		}
		warnings = len(batchErr.Failures)
		h.logger.Warn("partial extrinsic decode",
			"block", number,
			"decoded", batchErr.Decoded,
			"total", batchErr.Total,
			"error", batchErr.Error(),
		)
	}

	for _, ext := range decoded {
		ext.BlockNumber = number
		ext.BlockHash = hash
		if ext.Index >= 0 && ext.Index < len(raws) {
			ext.Hash = extrinsicHash(raws[ext.Index])
		}
		ext := ext
		h.save(ctx, "extrinsic", ext.ID(), func(ctx context.Context) error {
			return h.store.Extrinsics.Save(ctx, ext)
		})
	}

	header := &model.SubstrateBlock{
		Number:         number,
		Hash:           hash,
		ParentHash:     block.Header.ParentHash,
		StateRoot:      block.Header.StateRoot,
		ExtrinsicsRoot: block.Header.ExtrinsicsRoot,
		ExtrinsicCount: len(block.Extrinsics),
		DecodeWarnings: warnings,
		Timestamp:      h.blockTimestamp(ctx, number, hash),
	}
	h.save(ctx, "block", hash, func(ctx context.Context) error {
		return h.store.SubstrateBlocks.Save(ctx, header)
	})
	h.save(ctx, "indexed_block", hash, func(ctx context.Context) error {
		return h.store.IndexedBlocks.Save(ctx, &model.IndexedBlock{
			Chain:       model.ChainSubstrate,
			Network:     h.network,
			BlockNumber: number,
			BlockHash:   hash,
			ParentHash:  header.ParentHash,
			IndexedAt:   h.nowFn().UTC(),
		})
	})

	h.logger.Debug("block indexed",
		"block", number,
		"extrinsics", len(block.Extrinsics),
		"decoded", len(decoded),
	)
	return nil
}

// blockTimestamp reads Timestamp.Now, a little-endian u64 of milliseconds.
// Read failures leave the timestamp unset.
func (h *Handler) blockTimestamp(ctx context.Context, number uint64, hash string) *time.Time {
	raw, err := h.client.GetStorage(ctx, "Timestamp", "Now", nil, hash)
	if err != nil {
		h.logger.Warn("timestamp read failed", "block", number, "error", err)
		return nil
	}
	if len(raw) != 8 {
		return nil
	}
	ts := time.UnixMilli(int64(binary.LittleEndian.Uint64(raw))).UTC()
	return &ts
}

func (h *Handler) save(ctx context.Context, record, key string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		metrics.StoreSaveErrors.WithLabelValues(model.ChainSubstrate.String(), record).Inc()
		h.logger.Warn("save failed", "record", record, "key", key, "error", err)
	}
}

// extrinsicHash is blake2b-256 over the length-prefixed encoding.
func extrinsicHash(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hexutil.Encode(sum[:])
}
