package classifier

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

// AccountInfo reads balance, nonce and code of addr at block (nil for
// latest) and classifies the code when there is any. RPC failures are
// returned as *model.ProviderError.
func (c *Classifier) AccountInfo(ctx context.Context, addr common.Address, block *big.Int) (*model.AccountInfo, error) {
	var (
		balance *big.Int
		nonce   uint64
		code    []byte
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = c.caller.BalanceAt(gctx, addr, block)
		return model.NewProviderError("eth_getBalance", err)
	})
	g.Go(func() error {
		var err error
		nonce, err = c.caller.NonceAt(gctx, addr, block)
		return model.NewProviderError("eth_getTransactionCount", err)
	})
	g.Go(func() error {
		var err error
		code, err = c.caller.CodeAt(gctx, addr, block)
		return model.NewProviderError("eth_getCode", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	info := &model.AccountInfo{
		Address:    addr.Hex(),
		Balance:    balance,
		Nonce:      nonce,
		IsContract: len(code) > 0,
	}
	if block != nil && block.IsUint64() {
		info.BlockNumber = block.Uint64()
	}
	if info.IsContract {
		ct := c.Classify(ctx, addr, code)
		info.ContractType = &ct
	}
	return info, nil
}
