package selector

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_KnownSelectors(t *testing.T) {
	testCases := []struct{ sig, want string }{
		{"totalSupply()", "0x18160ddd"},
		{"balanceOf(address)", "0x70a08231"},
		{"transfer(address,uint256)", "0xa9059cbb"},
		{"transferFrom(address,address,uint256)", "0x23b872dd"},
		{"approve(address,uint256)", "0x095ea7b3"},
		{"allowance(address,address)", "0xdd62ed3e"},
		{"name()", "0x06fdde03"},
		{"symbol()", "0x95d89b41"},
		{"decimals()", "0x313ce567"},
		{"supportsInterface(bytes4)", "0x01ffc9a7"},
		{"ownerOf(uint256)", "0x6352211e"},
		{"getApproved(uint256)", "0x081812fc"},
		{"setApprovalForAll(address,bool)", "0xa22cb465"},
		{"isApprovedForAll(address,address)", "0xe985e9c5"},
		{"balanceOf(address,uint256)", "0x00fdd58e"},
		{"balanceOfBatch(address[],uint256[])", "0x4e1273f4"},
		{"safeTransferFrom(address,address,uint256)", "0x42842e0e"},
		{"safeTransferFrom(address,address,uint256,bytes)", "0xb88d4fde"},
		{"safeTransferFrom(address,address,uint256,uint256,bytes)", "0xf242432a"},
		{"safeBatchTransferFrom(address,address,uint256[],uint256[],bytes)", "0x2eb2c2d6"},
	}
	for _, tc := range testCases {
		sel := Compute(tc.sig)
		assert.Equal(t, tc.want, hexutil.Encode(sel[:]), tc.sig)
	}
}

func TestDefault_SetSizes(t *testing.T) {
	c := Default()
	assert.Len(t, c.Set(model.ContractTypeERC20), 6)
	assert.Len(t, c.Set(model.ContractTypeERC721), 8)
	assert.Len(t, c.Set(model.ContractTypeERC1155), 6)
	assert.Nil(t, c.Set(model.ContractTypeDEX))
	assert.Nil(t, c.Set(model.ContractTypeUnknown))
}

func TestDefault_IsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestCache_Selector(t *testing.T) {
	c := Default()
	sel := c.Selector(SigSupportsInterface)
	assert.Equal(t, [4]byte{0x01, 0xff, 0xc9, 0xa7}, sel)

	// signatures outside the catalogue are computed on demand
	sel = c.Selector("owner()")
	assert.Equal(t, Compute("owner()"), sel)
}

func TestCountMatches(t *testing.T) {
	c := Default()
	erc20 := c.Set(model.ContractTypeERC20)

	assert.Equal(t, 0, CountMatches(nil, erc20))
	assert.Equal(t, 0, CountMatches([]byte{0x60, 0x80, 0x60, 0x40}, erc20))

	var code []byte
	code = append(code, 0x60, 0x80)
	for _, sel := range erc20[:5] {
		code = append(code, 0x63)
		code = append(code, sel[:]...)
		code = append(code, 0x14)
	}
	assert.Equal(t, 5, CountMatches(code, erc20))

	// a selector split across non-adjacent bytes does not count
	split := []byte{0x18, 0x16, 0x00, 0x0d, 0xdd}
	assert.Equal(t, 0, CountMatches(split, erc20))
}

func TestCountMatches_SharedSelectors(t *testing.T) {
	c := Default()
	balanceOf := c.Selector(SigBalanceOf)
	code := append([]byte{0x63}, balanceOf[:]...)

	require.Equal(t, 1, CountMatches(code, c.Set(model.ContractTypeERC20)))
	require.Equal(t, 1, CountMatches(code, c.Set(model.ContractTypeERC721)))
	assert.Equal(t, 0, CountMatches(code, c.Set(model.ContractTypeERC1155)))
}
