package extrinsic

import "github.com/selendra/selendra-explorer-sub000/internal/substrate/calltable"

const (
	// optimizedScanSkip is where the Balances scan starts, relative to the
	// version byte's offset.
	optimizedScanSkip = 50
	// signedHeaderLen is version(1) + signer(32) + signature(64).
	signedHeaderLen = 1 + signerLen + signatureLen

	balancesMaxCall  = 5
	plausibleAccount = 33
)

// Layout is what the signed-field decoding learned about the buffer.
type Layout struct {
	// LengthOffset is the width of the compact length prefix, i.e. the offset
	// of the version byte.
	LengthOffset int
	// CalculatedOffset is where the call starts if the signed extension
	// fields are exactly era, nonce and tip.
	CalculatedOffset int
}

// BoundaryFinder is one strategy for locating the call inside a signed
// extrinsic. Finders are tried in order; the first hit wins.
type BoundaryFinder interface {
	Name() string
	Find(raw []byte, layout Layout) (int, bool)
}

// DefaultFinders returns the optimized, calculated and comprehensive
// strategies in that order.
func DefaultFinders() []BoundaryFinder {
	return []BoundaryFinder{optimizedScan{}, calculatedOffset{}, comprehensiveScan{}}
}

// optimizedScan looks for a Balances call followed by a plausible account id.
// Most signed extrinsics on the chain are transfers, so this usually hits.
type optimizedScan struct{}

func (optimizedScan) Name() string { return "optimized_scan" }

func (optimizedScan) Find(raw []byte, layout Layout) (int, bool) {
	for i := layout.LengthOffset + optimizedScanSkip; i+2+plausibleAccount <= len(raw); i++ {
		if calltable.Pallet(raw[i]) != calltable.PalletBalances || raw[i+1] > balancesMaxCall {
			continue
		}
		if looksLikeAccount(raw[i+2 : i+2+plausibleAccount]) {
			return i, true
		}
	}
	return 0, false
}

// calculatedOffset trusts the era/nonce/tip widths and accepts the offset if
// the pair there is a known, user-dispatchable call.
type calculatedOffset struct{}

func (calculatedOffset) Name() string { return "calculated_offset" }

func (calculatedOffset) Find(raw []byte, layout Layout) (int, bool) {
	off := layout.CalculatedOffset
	if off < 0 || off+1 >= len(raw) {
		return 0, false
	}
	if !calltable.IsValid(raw[off], raw[off+1]) || calltable.IsTimestampSet(raw[off], raw[off+1]) {
		return 0, false
	}
	return off, true
}

// comprehensiveScan walks every offset past signer and signature and accepts
// the first known call whose minimum argument size fits in the remainder.
type comprehensiveScan struct{}

func (comprehensiveScan) Name() string { return "comprehensive_scan" }

func (comprehensiveScan) Find(raw []byte, layout Layout) (int, bool) {
	for i := layout.LengthOffset + signedHeaderLen; i+1 < len(raw); i++ {
		pallet, call := raw[i], raw[i+1]
		if calltable.IsTimestampSet(pallet, call) || !calltable.IsValid(pallet, call) {
			continue
		}
		if len(raw)-(i+2) >= calltable.MinArgSize(pallet, call) {
			return i, true
		}
	}
	return 0, false
}

func looksLikeAccount(b []byte) bool {
	allZero, allSame := true, true
	for _, c := range b {
		if c != 0 {
			allZero = false
		}
		if c != b[0] {
			allSame = false
		}
	}
	return !allZero && !allSame
}
