// Package evm is the EVM-side chain RPC client: go-ethereum's ethclient
// behind a rate limiter, with call metrics and errors mapped onto the
// indexer's error kinds.
package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/selendra/selendra-explorer-sub000/internal/chain/ratelimit"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
)

const chainLabel = "evm"

// Backend is the subset of *ethclient.Client used here.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

type Client struct {
	backend Backend
	limiter *ratelimit.Limiter
	closeFn func()
	logger  *slog.Logger
}

// Dial connects to an EVM JSON-RPC endpoint. rps <= 0 disables throttling.
func Dial(ctx context.Context, url string, rps float64, logger *slog.Logger) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	c := NewClient(ec, ratelimit.NewLimiter(rps, burstFor(rps), chainLabel), logger)
	c.closeFn = ec.Close
	return c, nil
}

func NewClient(backend Backend, limiter *ratelimit.Limiter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter(0, 1, chainLabel)
	}
	return &Client{
		backend: backend,
		limiter: limiter,
		logger:  logger.With("component", "evm_rpc"),
	}
}

func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	var out *big.Int
	err := c.do(ctx, "eth_getBalance", func() (err error) {
		out, err = c.backend.BalanceAt(ctx, account, blockNumber)
		return err
	})
	return out, err
}

func (c *Client) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	var out uint64
	err := c.do(ctx, "eth_getTransactionCount", func() (err error) {
		out, err = c.backend.NonceAt(ctx, account, blockNumber)
		return err
	})
	return out, err
}

func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.do(ctx, "eth_getCode", func() (err error) {
		out, err = c.backend.CodeAt(ctx, account, blockNumber)
		return err
	})
	return out, err
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.do(ctx, "eth_call", func() (err error) {
		out, err = c.backend.CallContract(ctx, msg, blockNumber)
		return err
	})
	return out, err
}

func (c *Client) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	var out *types.Block
	err := c.do(ctx, "eth_getBlockByNumber", func() (err error) {
		out, err = c.backend.BlockByNumber(ctx, number)
		return err
	})
	return out, err
}

func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error) {
	var out *types.Transaction
	err := c.do(ctx, "eth_getTransactionByHash", func() (err error) {
		out, _, err = c.backend.TransactionByHash(ctx, hash)
		return err
	})
	return out, err
}

func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var out *types.Receipt
	err := c.do(ctx, "eth_getTransactionReceipt", func() (err error) {
		out, err = c.backend.TransactionReceipt(ctx, hash)
		return err
	})
	return out, err
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var out uint64
	err := c.do(ctx, "eth_blockNumber", func() (err error) {
		out, err = c.backend.BlockNumber(ctx)
		return err
	})
	return out, err
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := c.do(ctx, "eth_chainId", func() (err error) {
		out, err = c.backend.ChainID(ctx)
		return err
	})
	return out, err
}

// do throttles, runs and instruments one call. ethereum.NotFound becomes
// model.ErrNotFound; every other failure is a *model.ProviderError.
func (c *Client) do(ctx context.Context, method string, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.NewProviderError(method, err)
	}
	start := time.Now()
	err := fn()
	err = mapError(method, err)
	ratelimit.ObserveRPCCall(chainLabel, method, start, err)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		c.logger.Debug("rpc call failed", "method", method, "error", err)
	}
	return err
}

func mapError(method string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ethereum.NotFound) {
		return fmt.Errorf("%s: %w", method, model.ErrNotFound)
	}
	return model.NewProviderError(method, err)
}

func burstFor(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}
