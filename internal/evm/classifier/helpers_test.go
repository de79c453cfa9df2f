package classifier

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/selendra/selendra-explorer-sub000/internal/evm/selector"
)

var errReverted = errors.New("execution reverted")

func word(v *big.Int) []byte {
	out := make([]byte, 32)
	v.FillBytes(out)
	return out
}

func abiString(s string) []byte {
	out := word(big.NewInt(32))
	out = append(out, word(big.NewInt(int64(len(s))))...)
	padded := make([]byte, (len(s)+31)/32*32)
	copy(padded, s)
	return append(out, padded...)
}

func calldata(sig string, args ...[]byte) []byte {
	sel := selector.Compute(sig)
	out := append([]byte{}, sel[:]...)
	for _, a := range args {
		out = append(out, a...)
	}
	return out
}

func supportsInterfaceData(id [4]byte) []byte {
	arg := make([]byte, 32)
	copy(arg, id[:])
	return calldata(selector.SigSupportsInterface, arg)
}

func zeroWords(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = make([]byte, 32)
	}
	return out
}

// bytecode embeds each selector behind a PUSH4 opcode.
func bytecode(sigs ...string) []byte {
	code := []byte{0x60, 0x80, 0x60, 0x40, 0x52}
	for _, sig := range sigs {
		sel := selector.Compute(sig)
		code = append(code, 0x63)
		code = append(code, sel[:]...)
		code = append(code, 0x14, 0x61, 0x00, 0x10, 0x57)
	}
	return code
}

type stubResponse struct {
	ret []byte
	err error
}

// contractStub answers eth_call by exact calldata and reverts everything
// else. It is safe for the concurrent metadata calls.
type contractStub struct {
	mu        sync.Mutex
	responses map[string]stubResponse
	calls     map[string]int
}

func newContractStub() *contractStub {
	return &contractStub{
		responses: make(map[string]stubResponse),
		calls:     make(map[string]int),
	}
}

func (s *contractStub) on(data []byte, ret []byte) *contractStub {
	s.responses[hex.EncodeToString(data)] = stubResponse{ret: ret}
	return s
}

func (s *contractStub) fail(data []byte, err error) *contractStub {
	s.responses[hex.EncodeToString(data)] = stubResponse{err: err}
	return s
}

func (s *contractStub) call(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	key := hex.EncodeToString(msg.Data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[key]++
	r, ok := s.responses[key]
	if !ok {
		return nil, errReverted
	}
	return r.ret, r.err
}

func (s *contractStub) count(data []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[hex.EncodeToString(data)]
}

func (s *contractStub) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}
