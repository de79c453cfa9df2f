package model

import (
	"fmt"
	"math/big"
	"strings"
)

// ContractType is a closed set; every switch over it should be exhaustive.
type ContractType int

const (
	ContractTypeUnknown ContractType = iota
	ContractTypeERC20
	ContractTypeERC721
	ContractTypeERC1155
	ContractTypeDEX
	ContractTypeLendingProtocol
	ContractTypeProxy
	ContractTypeOracle
)

func (t ContractType) String() string {
	switch t {
	case ContractTypeERC20:
		return "ERC20"
	case ContractTypeERC721:
		return "ERC721"
	case ContractTypeERC1155:
		return "ERC1155"
	case ContractTypeDEX:
		return "DEX"
	case ContractTypeLendingProtocol:
		return "LendingProtocol"
	case ContractTypeProxy:
		return "Proxy"
	case ContractTypeOracle:
		return "Oracle"
	case ContractTypeUnknown:
		return "Unknown"
	}
	return "Unknown"
}

func ParseContractType(s string) (ContractType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "erc20":
		return ContractTypeERC20, nil
	case "erc721":
		return ContractTypeERC721, nil
	case "erc1155":
		return ContractTypeERC1155, nil
	case "dex":
		return ContractTypeDEX, nil
	case "lendingprotocol":
		return ContractTypeLendingProtocol, nil
	case "proxy":
		return ContractTypeProxy, nil
	case "oracle":
		return ContractTypeOracle, nil
	case "unknown", "":
		return ContractTypeUnknown, nil
	}
	return ContractTypeUnknown, fmt.Errorf("unknown contract type %q", s)
}

func (t ContractType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ContractType) UnmarshalText(b []byte) error {
	parsed, err := ParseContractType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ContractTypeInfo carries the classification of a contract account.
// Token metadata is only meaningful for ERC20 (all four fields) and
// ERC721 (name and symbol).
type ContractTypeInfo struct {
	Type        ContractType `json:"contract_type"`
	Name        *string      `json:"name,omitempty"`
	Symbol      *string      `json:"symbol,omitempty"`
	Decimals    *uint8       `json:"decimals,omitempty"`
	TotalSupply *big.Int     `json:"total_supply,omitempty"`
}

// Normalize clears metadata fields the contract type does not carry.
func (c *ContractTypeInfo) Normalize() {
	switch c.Type {
	case ContractTypeERC20:
	case ContractTypeERC721:
		c.Decimals = nil
		c.TotalSupply = nil
	case ContractTypeERC1155, ContractTypeDEX, ContractTypeLendingProtocol,
		ContractTypeProxy, ContractTypeOracle, ContractTypeUnknown:
		c.Name = nil
		c.Symbol = nil
		c.Decimals = nil
		c.TotalSupply = nil
	}
}

// AccountInfo describes an EVM account at a given block.
// ContractType is nil iff IsContract is false.
type AccountInfo struct {
	Address      string            `json:"address"`
	Balance      *big.Int          `json:"balance"`
	Nonce        uint64            `json:"nonce"`
	IsContract   bool              `json:"is_contract"`
	ContractType *ContractTypeInfo `json:"contract_type,omitempty"`
	BlockNumber  uint64            `json:"block_number"`
}
