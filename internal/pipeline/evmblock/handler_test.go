package evmblock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/metrics"
	"github.com/selendra/selendra-explorer-sub000/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testChainID   = big.NewInt(1961)
	testRecipient = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testCreated   = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type fakeChain struct {
	mu           sync.Mutex
	blocks       map[uint64]*types.Block
	receipts     map[common.Hash]*types.Receipt
	receiptErr   error
	chainIDCalls int
	head         uint64
}

func (f *fakeChain) BlockByNumber(_ context.Context, number *big.Int) (*types.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[number.Uint64()]
	if !ok {
		return nil, fmt.Errorf("eth_getBlockByNumber: %w", model.ErrNotFound)
	}
	return b, nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	r, ok := f.receipts[hash]
	if !ok {
		return nil, fmt.Errorf("eth_getTransactionReceipt: %w", model.ErrNotFound)
	}
	return r, nil
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainIDCalls++
	return testChainID, nil
}

type fakeAccounts struct {
	mu    sync.Mutex
	seen  []common.Address
	fail  error
	block *big.Int
}

func (f *fakeAccounts) AccountInfo(_ context.Context, addr common.Address, block *big.Int) (*model.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.seen = append(f.seen, addr)
	f.block = block
	info := &model.AccountInfo{Address: addr.Hex(), Balance: big.NewInt(int64(len(f.seen)))}
	if addr == testCreated {
		info.IsContract = true
		info.ContractType = &model.ContractTypeInfo{Type: model.ContractTypeUnknown}
	}
	return info, nil
}

type failingTxRepo struct{}

func (failingTxRepo) Save(context.Context, *model.EVMTransaction) error {
	return errors.New("pq: connection refused")
}

func (failingTxRepo) GetByHash(context.Context, string) (*model.EVMTransaction, error) {
	return nil, nil
}

func (failingTxRepo) CountByBlockNumber(context.Context, uint64) (int, error) {
	return 0, nil
}

// fixture returns a chain with block 100 holding a successful transfer and a
// failed contract creation from the same sender.
func fixture(t *testing.T) (*fakeChain, common.Address, *types.Block) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	signer := types.LatestSignerForChainID(testChainID)

	transfer := types.MustSignNewTx(key, signer, &types.LegacyTx{
		Nonce:    0,
		To:       &testRecipient,
		Value:    big.NewInt(1_000_000_000_000_000_000),
		Gas:      21000,
		GasPrice: big.NewInt(1_000_000_000),
	})
	create := types.MustSignNewTx(key, signer, &types.DynamicFeeTx{
		ChainID:   testChainID,
		Nonce:     1,
		Gas:       100_000,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2_000_000_000),
		Data:      []byte{0x60, 0x80, 0x60, 0x40},
	})

	header := &types.Header{
		Number:     big.NewInt(100),
		ParentHash: common.HexToHash("0x01"),
		Coinbase:   common.HexToAddress("0x4444444444444444444444444444444444444444"),
		GasLimit:   30_000_000,
		GasUsed:    121_000,
		Time:       1_700_000_000,
		BaseFee:    big.NewInt(1_000_000_000),
	}
	block := types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: types.Transactions{transfer, create}})

	chain := &fakeChain{
		blocks: map[uint64]*types.Block{100: block},
		receipts: map[common.Hash]*types.Receipt{
			transfer.Hash(): {Status: types.ReceiptStatusSuccessful, GasUsed: 21000},
			create.Hash(): {
				Status:            types.ReceiptStatusFailed,
				GasUsed:           100_000,
				ContractAddress:   testCreated,
				EffectiveGasPrice: big.NewInt(1_000_000_001),
			},
		},
		head: 100,
	}
	return chain, sender, block
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessBlock_IndexesTransactionsAndAccounts(t *testing.T) {
	chain, sender, block := fixture(t)
	accounts := &fakeAccounts{}
	st := memory.New()
	h := New(chain, accounts, st, model.NetworkTestnet, testLogger())

	require.NoError(t, h.ProcessBlock(context.Background(), 100))

	txs := block.Transactions()
	transfer, err := st.Transactions.GetByHash(context.Background(), txs[0].Hash().Hex())
	require.NoError(t, err)
	require.NotNil(t, transfer)
	assert.Equal(t, sender.Hex(), transfer.From)
	require.NotNil(t, transfer.To)
	assert.Equal(t, testRecipient.Hex(), *transfer.To)
	assert.Equal(t, model.TxStatusSuccess, transfer.Status)
	assert.Nil(t, transfer.ContractAddress)
	assert.Equal(t, "0x", transfer.Input)
	assert.Equal(t, uint(0), transfer.Index)

	create, err := st.Transactions.GetByHash(context.Background(), txs[1].Hash().Hex())
	require.NoError(t, err)
	require.NotNil(t, create)
	assert.Equal(t, model.TxStatusFailed, create.Status)
	assert.Nil(t, create.To)
	require.NotNil(t, create.ContractAddress)
	assert.Equal(t, testCreated.Hex(), *create.ContractAddress)
	assert.Equal(t, int64(1_000_000_001), create.GasPrice.Int64())
	assert.Equal(t, "0x60806040", create.Input)

	count, err := st.Transactions.CountByBlockNumber(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Equal(t, []common.Address{sender, testRecipient, testCreated}, sortedLike(accounts.seen, sender, testRecipient, testCreated))
	assert.Equal(t, uint64(100), accounts.block.Uint64())

	contract, err := st.Accounts.GetByAddress(context.Background(), testCreated.Hex())
	require.NoError(t, err)
	require.NotNil(t, contract)
	assert.True(t, contract.IsContract)
	assert.Equal(t, uint64(100), contract.BlockNumber)

	header, err := st.EVMBlocks.GetByNumber(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, header)
	assert.Equal(t, block.Hash().Hex(), header.Hash)
	assert.Equal(t, 2, header.TransactionCount)
	assert.Equal(t, int64(1_700_000_000), header.Timestamp.Unix())

	indexed, err := st.IndexedBlocks.GetByNumber(context.Background(), model.ChainEVM, model.NetworkTestnet, 100)
	require.NoError(t, err)
	require.NotNil(t, indexed)
	assert.Equal(t, header.Hash, indexed.BlockHash)
}

// sortedLike returns the members of got in the order of want when got holds
// exactly the same addresses.
func sortedLike(got []common.Address, want ...common.Address) []common.Address {
	set := make(map[common.Address]bool, len(got))
	for _, a := range got {
		set[a] = true
	}
	if len(set) != len(got) || len(got) != len(want) {
		return got
	}
	for _, a := range want {
		if !set[a] {
			return got
		}
	}
	return want
}

func TestProcessBlock_MissingBlock(t *testing.T) {
	chain, _, _ := fixture(t)
	h := New(chain, &fakeAccounts{}, memory.New(), model.NetworkTestnet, testLogger())

	err := h.ProcessBlock(context.Background(), 101)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestProcessBlock_RPCFailuresFailTheAttempt(t *testing.T) {
	chain, _, _ := fixture(t)
	chain.receiptErr = model.NewProviderError("eth_getTransactionReceipt", errors.New("timeout"))
	st := memory.New()
	h := New(chain, &fakeAccounts{}, st, model.NetworkTestnet, testLogger())

	err := h.ProcessBlock(context.Background(), 100)
	assert.ErrorIs(t, err, model.ErrProvider)

	header, err := st.EVMBlocks.GetByNumber(context.Background(), 100)
	require.NoError(t, err)
	assert.Nil(t, header, "nothing is marked indexed after a failed attempt")

	chain.receiptErr = nil
	h = New(chain, &fakeAccounts{fail: model.NewProviderError("eth_getCode", errors.New("eof"))}, st, model.NetworkTestnet, testLogger())
	err = h.ProcessBlock(context.Background(), 100)
	assert.ErrorIs(t, err, model.ErrProvider)
}

func TestProcessBlock_SaveFailuresAreTolerated(t *testing.T) {
	chain, _, _ := fixture(t)
	st := memory.New()
	st.Transactions = failingTxRepo{}
	h := New(chain, &fakeAccounts{}, st, model.NetworkTestnet, testLogger())

	before := testutil.ToFloat64(metrics.StoreSaveErrors.WithLabelValues("evm", "transaction"))
	require.NoError(t, h.ProcessBlock(context.Background(), 100))
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.StoreSaveErrors.WithLabelValues("evm", "transaction")))

	header, err := st.EVMBlocks.GetByNumber(context.Background(), 100)
	require.NoError(t, err)
	assert.NotNil(t, header)
}

func TestHandler_ChainIDFetchedOnce(t *testing.T) {
	chain, _, _ := fixture(t)
	h := New(chain, &fakeAccounts{}, memory.New(), model.NetworkTestnet, testLogger())

	require.NoError(t, h.ProcessBlock(context.Background(), 100))
	require.NoError(t, h.ProcessBlock(context.Background(), 100))
	assert.Equal(t, 1, chain.chainIDCalls)

	head, err := h.HeadBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), head)
	assert.Equal(t, model.ChainEVM, h.Chain())
	assert.True(t, h.Concurrent())
}
