package model

import (
	"fmt"
	"strings"
)

// Chain identifies which side of the dual-chain node a record belongs to.
// Both sides share one block producer but keep separate block numbering.
type Chain string

const (
	ChainEVM       Chain = "evm"
	ChainSubstrate Chain = "substrate"
)

// Chains lists every indexable chain in processing order.
var Chains = []Chain{ChainEVM, ChainSubstrate}

func (c Chain) String() string {
	return string(c)
}

// ParseChain accepts a chain name in any case, ignoring surrounding space.
func ParseChain(s string) (Chain, error) {
	c := Chain(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ChainEVM, ChainSubstrate:
		return c, nil
	default:
		return "", fmt.Errorf("unknown chain %q", s)
	}
}

// Network is the Selendra deployment being indexed.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkDevnet  Network = "devnet"
)

func (n Network) String() string {
	return string(n)
}

func ParseNetwork(s string) (Network, error) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	switch n {
	case NetworkMainnet, NetworkTestnet, NetworkDevnet:
		return n, nil
	default:
		return "", fmt.Errorf("unknown network %q", s)
	}
}

// TxStatus is the receipt outcome of an EVM transaction.
type TxStatus string

const (
	TxStatusSuccess TxStatus = "SUCCESS"
	TxStatusFailed  TxStatus = "FAILED"
)
