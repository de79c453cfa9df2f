// Package calltable maps (pallet index, call index) pairs of the Selendra
// runtime to names, minimum argument sizes and argument extractors.
//
// The table is static and deliberately small: it only covers the pallets the
// extrinsic decoder can cross-validate against. Pairs outside it still decode
// to synthetic Pallet_<n>/Call_<n> names.
package calltable

import "strconv"

type Pallet uint8

const (
	PalletSystem    Pallet = 0
	PalletTimestamp Pallet = 3
	PalletBalances  Pallet = 4
	PalletStaking   Pallet = 11
	PalletEthereum  Pallet = 80
	PalletEVM       Pallet = 81
)

// Call indexes within their pallet.
const (
	CallTimestampSet uint8 = 0

	CallBalancesTransfer          uint8 = 0
	CallBalancesSetBalance        uint8 = 1
	CallBalancesForceTransfer     uint8 = 2
	CallBalancesTransferKeepAlive uint8 = 3
	CallBalancesTransferAll       uint8 = 4
	CallBalancesForceUnreserve    uint8 = 5

	CallEthereumTransact uint8 = 0

	CallEVMWithdraw uint8 = 0
	CallEVMCall     uint8 = 1
	CallEVMCreate   uint8 = 2
	CallEVMCreate2  uint8 = 3
)

type palletSpec struct {
	name string
	// calls holds names for every valid call index; an empty name is a valid
	// call whose name is not known here and renders as Call_<n>.
	calls []string
}

var pallets = map[Pallet]palletSpec{
	PalletSystem: {name: "System", calls: []string{
		"remark", "set_heap_pages", "set_code", "set_code_without_checks",
		"set_storage", "kill_storage", "kill_prefix", "remark_with_event",
	}},
	PalletTimestamp: {name: "Timestamp", calls: []string{"set"}},
	PalletBalances: {name: "Balances", calls: []string{
		"transfer", "set_balance", "force_transfer", "transfer_keep_alive",
		"transfer_all", "force_unreserve",
	}},
	PalletStaking: {name: "Staking", calls: []string{
		"bond", "bond_extra", "unbond", "withdraw_unbonded", "validate", "nominate",
	}},
	PalletEthereum: {name: "Ethereum", calls: []string{"transact", ""}},
	PalletEVM: {name: "EVM", calls: []string{
		"withdraw", "call", "create", "create2", "", "", "",
	}},
}

type callKey struct {
	pallet Pallet
	call   uint8
}

var minArgSizes = map[callKey]int{
	{PalletTimestamp, CallTimestampSet}:             4,
	{PalletBalances, CallBalancesTransfer}:          33,
	{PalletBalances, CallBalancesForceTransfer}:     33,
	{PalletBalances, CallBalancesTransferKeepAlive}: 33,
	{PalletEthereum, CallEthereumTransact}:          100,
	{PalletEVM, CallEVMWithdraw}:                    20,
	{PalletEVM, CallEVMCall}:                        85,
	{PalletEVM, CallEVMCreate}:                      65,
	{PalletEVM, CallEVMCreate2}:                     85,
}

// IsValid reports whether the pair is a known call of a known pallet.
func IsValid(pallet, call uint8) bool {
	spec, ok := pallets[Pallet(pallet)]
	if !ok {
		return false
	}
	return int(call) < len(spec.calls)
}

// IsTimestampSet reports the system-injected Timestamp.set pair, which is
// never the dispatched call of a signed extrinsic.
func IsTimestampSet(pallet, call uint8) bool {
	return Pallet(pallet) == PalletTimestamp && call == CallTimestampSet
}

// Lookup returns the pallet and call names of a pair.
func Lookup(pallet, call uint8) (string, string) {
	spec, ok := pallets[Pallet(pallet)]
	if !ok {
		return "Pallet_" + strconv.Itoa(int(pallet)), "Call_" + strconv.Itoa(int(call))
	}
	if int(call) < len(spec.calls) && spec.calls[call] != "" {
		return spec.name, spec.calls[call]
	}
	return spec.name, "Call_" + strconv.Itoa(int(call))
}

// MinArgSize is the smallest argument payload the call can have. Unlisted
// pairs report 0.
func MinArgSize(pallet, call uint8) int {
	return minArgSizes[callKey{Pallet(pallet), call}]
}
