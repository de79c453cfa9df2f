// Package classifier decides whether an EVM account is a contract and which
// token standard it implements.
package classifier

//go:generate mockgen -destination=mocks/mock_caller.go -package=mocks . Caller

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/selendra/selendra-explorer-sub000/internal/cache"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/evm/selector"
	"github.com/selendra/selendra-explorer-sub000/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCallTimeout = 10 * time.Second
	DefaultCacheSize   = 10_000
	DefaultCacheTTL    = 10 * time.Minute

	// Heuristic thresholds: selector matches needed before a verification
	// call is attempted.
	minERC1155Matches = 4
	minERC721Matches  = 6
	minERC20Matches   = 5

	methodERC165    = "erc165"
	methodSelectors = "selectors"
	methodNone      = "none"
)

var (
	interfaceIDERC721  = [4]byte{0x80, 0xac, 0x58, 0xcd}
	interfaceIDERC1155 = [4]byte{0xd9, 0xb6, 0x7a, 0x26}
)

// Caller is the slice of the EVM RPC client the classifier needs.
// *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

type cacheKey struct {
	addr     common.Address
	codeHash common.Hash
}

type Classifier struct {
	caller      Caller
	selectors   *selector.Cache
	cache       *cache.LRU[cacheKey, model.ContractTypeInfo]
	callTimeout time.Duration
	logger      *slog.Logger
}

type Option func(*Classifier)

func WithCallTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithCache sizes the result cache. A size of zero disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Classifier) {
		if size <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.NewLRU[cacheKey, model.ContractTypeInfo](size, ttl)
	}
}

func New(caller Caller, logger *slog.Logger, opts ...Option) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Classifier{
		caller:      caller,
		selectors:   selector.Default(),
		cache:       cache.NewLRU[cacheKey, model.ContractTypeInfo](DefaultCacheSize, DefaultCacheTTL),
		callTimeout: DefaultCallTimeout,
		logger:      logger.With("component", "contract_classifier"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Classify never fails: anything it cannot establish resolves to Unknown or
// to absent metadata fields.
func (c *Classifier) Classify(ctx context.Context, addr common.Address, code []byte) model.ContractTypeInfo {
	if len(code) == 0 {
		return model.ContractTypeInfo{Type: model.ContractTypeUnknown}
	}

	key := cacheKey{addr: addr, codeHash: crypto.Keccak256Hash(code)}
	if c.cache != nil {
		if info, ok := c.cache.Get(key); ok {
			metrics.ClassifierCacheHits.Inc()
			return info
		}
		metrics.ClassifierCacheMisses.Inc()
	}

	run := &classifyRun{Classifier: c}
	std, method := run.detect(ctx, addr, code)
	info := model.ContractTypeInfo{Type: std}
	run.enrich(ctx, addr, &info)
	info.Normalize()

	metrics.ClassifierResultsTotal.WithLabelValues(std.String(), method).Inc()
	c.logger.Debug("contract classified",
		"address", addr.Hex(),
		"type", std.String(),
		"method", method,
	)

	// A provider failure is not an answer; the next block retries it.
	if c.cache != nil && !run.unsettled.Load() {
		c.cache.Put(key, info)
	}
	return info
}

// classifyRun is the state of one classification. unsettled is set when any
// call failed for a reason other than the contract's own revert.
type classifyRun struct {
	*Classifier
	unsettled atomic.Bool
}

// revertTokens mark eth_call failures that are the contract's answer.
var revertTokens = []string{"revert", "vm exception", "invalid opcode"}

func isContractFailure(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, token := range revertTokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

func (c *classifyRun) detect(ctx context.Context, addr common.Address, code []byte) (model.ContractType, string) {
	if c.supportsInterface(ctx, addr, interfaceIDERC721) {
		return model.ContractTypeERC721, methodERC165
	}
	if c.supportsInterface(ctx, addr, interfaceIDERC1155) {
		return model.ContractTypeERC1155, methodERC165
	}

	if selector.CountMatches(code, c.selectors.Set(model.ContractTypeERC1155)) >= minERC1155Matches &&
		c.verify(ctx, addr, "verify_erc1155", c.calldata(selector.SigBalanceOf1155, 2)) {
		return model.ContractTypeERC1155, methodSelectors
	}
	if selector.CountMatches(code, c.selectors.Set(model.ContractTypeERC721)) >= minERC721Matches &&
		c.verify(ctx, addr, "verify_erc721", c.calldata(selector.SigBalanceOf, 1)) {
		return model.ContractTypeERC721, methodSelectors
	}
	if selector.CountMatches(code, c.selectors.Set(model.ContractTypeERC20)) >= minERC20Matches &&
		c.verify(ctx, addr, "verify_erc20", c.calldata(selector.SigTotalSupply, 0)) {
		return model.ContractTypeERC20, methodSelectors
	}
	return model.ContractTypeUnknown, methodNone
}

// supportsInterface is true iff the call returns a 32-byte word ending in 1.
func (c *classifyRun) supportsInterface(ctx context.Context, addr common.Address, id [4]byte) bool {
	sel := c.selectors.Selector(selector.SigSupportsInterface)
	data := make([]byte, 4+wordLen)
	copy(data, sel[:])
	copy(data[4:], id[:])

	ret, err := c.call(ctx, addr, data, "supports_interface")
	if err != nil {
		return false
	}
	return len(ret) == wordLen && ret[wordLen-1] == 1
}

func (c *classifyRun) verify(ctx context.Context, addr common.Address, probe string, data []byte) bool {
	ret, err := c.call(ctx, addr, data, probe)
	return err == nil && len(ret) == wordLen
}

// enrich fills token metadata concurrently. Each call fails on its own; the
// already decided type is never changed.
func (c *classifyRun) enrich(ctx context.Context, addr common.Address, info *model.ContractTypeInfo) {
	if info.Type != model.ContractTypeERC20 && info.Type != model.ContractTypeERC721 {
		return
	}

	var (
		g           errgroup.Group
		name        *string
		symbol      *string
		decimals    *uint8
		totalSupply *big.Int
	)
	g.Go(func() error {
		name = c.stringCall(ctx, addr, selector.SigName, "name")
		return nil
	})
	g.Go(func() error {
		symbol = c.stringCall(ctx, addr, selector.SigSymbol, "symbol")
		return nil
	})
	if info.Type == model.ContractTypeERC20 {
		g.Go(func() error {
			ret, err := c.call(ctx, addr, c.calldata(selector.SigDecimals, 0), "decimals")
			if err != nil {
				return nil
			}
			if d, err := decodeUint8(ret); err == nil {
				decimals = &d
			}
			return nil
		})
		g.Go(func() error {
			ret, err := c.call(ctx, addr, c.calldata(selector.SigTotalSupply, 0), "total_supply")
			if err != nil {
				return nil
			}
			if v, err := decodeWord(ret); err == nil {
				totalSupply = v
			}
			return nil
		})
	}
	_ = g.Wait()

	info.Name = name
	info.Symbol = symbol
	info.Decimals = decimals
	info.TotalSupply = totalSupply
}

func (c *classifyRun) stringCall(ctx context.Context, addr common.Address, sig, probe string) *string {
	ret, err := c.call(ctx, addr, c.calldata(sig, 0), probe)
	if err != nil {
		return nil
	}
	s, err := decodeStringOrBytes32(ret)
	if err != nil {
		metrics.ClassifierProbeErrors.WithLabelValues(probe).Inc()
		return nil
	}
	return &s
}

// call runs eth_call against the latest block under the per-call timeout.
func (c *classifyRun) call(ctx context.Context, addr common.Address, data []byte, probe string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	ret, err := c.caller.CallContract(callCtx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		metrics.ClassifierProbeErrors.WithLabelValues(probe).Inc()
		c.logger.Debug("contract probe failed", "address", addr.Hex(), "probe", probe, "error", err)
		if !isContractFailure(err) {
			c.unsettled.Store(true)
		}
		return nil, err
	}
	return ret, nil
}

// calldata is the selector of sig followed by zeroWords zero-valued
// arguments, i.e. the zero address and token id 0.
func (c *Classifier) calldata(sig string, zeroWords int) []byte {
	sel := c.selectors.Selector(sig)
	data := make([]byte, 4+zeroWords*wordLen)
	copy(data, sel[:])
	return data
}
