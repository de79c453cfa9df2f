package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
)

// GetBlockHash returns the canonical hash at number.
func (c *Client) GetBlockHash(ctx context.Context, number uint64) (string, error) {
	result, err := c.call(ctx, "chain_getBlockHash", []interface{}{number})
	if err != nil {
		return "", fmt.Errorf("chain_getBlockHash(%d): %w", number, err)
	}
	if isNull(result) {
		return "", fmt.Errorf("block %d: %w", number, model.ErrNotFound)
	}
	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return "", fmt.Errorf("unmarshal block hash: %w", err)
	}
	return hash, nil
}

// GetBlockHashes resolves several block numbers in one batch. A number
// without a canonical block yields ErrNotFound.
func (c *Client) GetBlockHashes(ctx context.Context, numbers []uint64) ([]string, error) {
	requests := make([]Request, len(numbers))
	for i, n := range numbers {
		requests[i] = c.newRequest("chain_getBlockHash", []interface{}{n})
	}
	responses, err := c.callBatch(ctx, requests)
	if err != nil {
		return nil, fmt.Errorf("chain_getBlockHash batch: %w", err)
	}

	hashes := make([]string, len(numbers))
	for i, resp := range responses {
		if resp.Error != nil {
			return nil, fmt.Errorf("chain_getBlockHash(%d): %w", numbers[i], model.NewProviderError("chain_getBlockHash", resp.Error))
		}
		if isNull(resp.Result) {
			return nil, fmt.Errorf("block %d: %w", numbers[i], model.ErrNotFound)
		}
		if err := json.Unmarshal(resp.Result, &hashes[i]); err != nil {
			return nil, fmt.Errorf("unmarshal block hash %d: %w", numbers[i], err)
		}
	}
	return hashes, nil
}

func (c *Client) GetBlock(ctx context.Context, hash string) (*SignedBlock, error) {
	result, err := c.call(ctx, "chain_getBlock", []interface{}{hash})
	if err != nil {
		return nil, fmt.Errorf("chain_getBlock(%s): %w", hash, err)
	}
	if isNull(result) {
		return nil, fmt.Errorf("block %s: %w", hash, model.ErrNotFound)
	}
	var block SignedBlock
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}
	return &block, nil
}

// GetHeader returns the header at hash, or the best header for an empty hash.
func (c *Client) GetHeader(ctx context.Context, hash string) (*Header, error) {
	params := []interface{}{}
	if hash != "" {
		params = append(params, hash)
	}
	result, err := c.call(ctx, "chain_getHeader", params)
	if err != nil {
		return nil, fmt.Errorf("chain_getHeader(%s): %w", hash, err)
	}
	if isNull(result) {
		return nil, fmt.Errorf("header %s: %w", hash, model.ErrNotFound)
	}
	var header Header
	if err := json.Unmarshal(result, &header); err != nil {
		return nil, fmt.Errorf("unmarshal header: %w", err)
	}
	return &header, nil
}

func (c *Client) GetFinalizedHead(ctx context.Context) (string, error) {
	result, err := c.call(ctx, "chain_getFinalizedHead", nil)
	if err != nil {
		return "", fmt.Errorf("chain_getFinalizedHead: %w", err)
	}
	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return "", fmt.Errorf("unmarshal finalized head: %w", err)
	}
	return hash, nil
}

// FinalizedNumber is the block number of the finalized head.
func (c *Client) FinalizedNumber(ctx context.Context) (uint64, error) {
	hash, err := c.GetFinalizedHead(ctx)
	if err != nil {
		return 0, err
	}
	header, err := c.GetHeader(ctx, hash)
	if err != nil {
		return 0, err
	}
	return header.BlockNumber()
}

// GetStorage reads the raw value stored under pallet/item (and key, already
// hashed by the caller) at block hash; an empty hash reads the best block.
// A missing entry returns nil without error.
func (c *Client) GetStorage(ctx context.Context, pallet, item string, key []byte, at string) ([]byte, error) {
	storageKey := hexutil.Encode(StorageKey(pallet, item, key))
	params := []interface{}{storageKey}
	if at != "" {
		params = append(params, at)
	}
	result, err := c.call(ctx, "state_getStorage", params)
	if err != nil {
		return nil, fmt.Errorf("state_getStorage(%s.%s): %w", pallet, item, err)
	}
	if isNull(result) {
		return nil, nil
	}
	var value string
	if err := json.Unmarshal(result, &value); err != nil {
		return nil, fmt.Errorf("unmarshal storage value: %w", err)
	}
	b, err := hexutil.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("decode storage value: %w", err)
	}
	return b, nil
}

// BlockNumber parses the header's hex block number.
func (h *Header) BlockNumber() (uint64, error) {
	return ParseHexUint64(h.Number)
}

// ParseHexUint64 accepts 0x-prefixed hex with or without leading zeros.
func ParseHexUint64(value string) (uint64, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	raw = strings.TrimPrefix(strings.ToLower(raw), "0x")
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex %q: %w", value, err)
	}
	return parsed, nil
}
