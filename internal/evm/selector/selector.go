// Package selector holds the 4-byte function selectors used to recognise
// token standards in EVM bytecode.
package selector

import (
	"bytes"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
)

// Well-known signatures used for verification and metadata calls.
const (
	SigName              = "name()"
	SigSymbol            = "symbol()"
	SigDecimals          = "decimals()"
	SigTotalSupply       = "totalSupply()"
	SigBalanceOf         = "balanceOf(address)"
	SigBalanceOf1155     = "balanceOf(address,uint256)"
	SigSupportsInterface = "supportsInterface(bytes4)"
)

var signatureSets = map[model.ContractType][]string{
	model.ContractTypeERC20: {
		SigTotalSupply,
		SigBalanceOf,
		"transfer(address,uint256)",
		"transferFrom(address,address,uint256)",
		"approve(address,uint256)",
		"allowance(address,address)",
	},
	model.ContractTypeERC721: {
		SigBalanceOf,
		"ownerOf(uint256)",
		"safeTransferFrom(address,address,uint256)",
		"safeTransferFrom(address,address,uint256,bytes)",
		"transferFrom(address,address,uint256)",
		"approve(address,uint256)",
		"setApprovalForAll(address,bool)",
		"getApproved(uint256)",
	},
	model.ContractTypeERC1155: {
		SigBalanceOf1155,
		"balanceOfBatch(address[],uint256[])",
		"setApprovalForAll(address,bool)",
		"isApprovedForAll(address,address)",
		"safeTransferFrom(address,address,uint256,uint256,bytes)",
		"safeBatchTransferFrom(address,address,uint256[],uint256[],bytes)",
	},
}

var extraSignatures = []string{SigName, SigSymbol, SigDecimals, SigSupportsInterface}

// Cache maps signatures to selectors. It is read-only once built.
type Cache struct {
	bySig map[string][4]byte
	sets  map[model.ContractType][][4]byte
}

var (
	defaultOnce  sync.Once
	defaultCache *Cache
)

// Default returns the process-wide cache, built on first use.
func Default() *Cache {
	defaultOnce.Do(func() {
		defaultCache = build()
	})
	return defaultCache
}

func build() *Cache {
	c := &Cache{
		bySig: make(map[string][4]byte),
		sets:  make(map[model.ContractType][][4]byte, len(signatureSets)),
	}
	for std, sigs := range signatureSets {
		set := make([][4]byte, 0, len(sigs))
		for _, sig := range sigs {
			set = append(set, c.add(sig))
		}
		c.sets[std] = set
	}
	for _, sig := range extraSignatures {
		c.add(sig)
	}
	return c
}

func (c *Cache) add(sig string) [4]byte {
	if sel, ok := c.bySig[sig]; ok {
		return sel
	}
	sel := Compute(sig)
	c.bySig[sig] = sel
	return sel
}

// Set returns the selectors of a token standard, or nil for standards
// without a signature set.
func (c *Cache) Set(std model.ContractType) [][4]byte {
	return c.sets[std]
}

// Selector returns the selector of a catalogued signature, computing it for
// signatures outside the catalogue.
func (c *Cache) Selector(sig string) [4]byte {
	if sel, ok := c.bySig[sig]; ok {
		return sel
	}
	return Compute(sig)
}

// Compute returns keccak256(sig)[:4].
func Compute(sig string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(sig)))
	return sel
}

// CountMatches counts how many selectors of set occur anywhere in code as a
// contiguous 4-byte window.
func CountMatches(code []byte, set [][4]byte) int {
	n := 0
	for _, sel := range set {
		if bytes.Contains(code, sel[:]) {
			n++
		}
	}
	return n
}
