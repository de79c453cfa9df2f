package model

import (
	"math/big"
	"strconv"
)

const (
	EraImmortal = "Immortal"

	// Sentinel pallet/call names used when the call cannot be located.
	CallInvalid    = "Invalid"
	CallIncomplete = "Incomplete"
)

// SignatureInfo is present only on signed extrinsics.
type SignatureInfo struct {
	Signer    string   `json:"signer"`
	Signature string   `json:"signature"`
	Era       string   `json:"era"`
	Nonce     uint64   `json:"nonce"`
	Tip       *big.Int `json:"tip"`
}

// CallArg is one decoded call argument, rendered as a string.
type CallArg struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type CallInfo struct {
	Pallet string    `json:"pallet"`
	Call   string    `json:"call"`
	Args   []CallArg `json:"args"`
}

// Arg returns the value of the named argument.
func (c CallInfo) Arg(name string) (string, bool) {
	for _, a := range c.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// InvalidCall is returned when the call start lies outside the buffer.
func InvalidCall() CallInfo {
	return CallInfo{Pallet: CallInvalid, Call: CallInvalid, Args: []CallArg{}}
}

// ExtrinsicDetails is the decoded form of one raw extrinsic.
// IsSigned is true iff Signature is non-nil.
type ExtrinsicDetails struct {
	Index     int            `json:"index"`
	IsSigned  bool           `json:"is_signed"`
	Signature *SignatureInfo `json:"signature_info,omitempty"`
	Call      CallInfo       `json:"call_info"`
	RawLength int            `json:"raw_length"`

	// Filled by the block handler, not by the decoder.
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash,omitempty"`
	Hash        string `json:"hash,omitempty"`
}

// ID is the explorer-facing "<block>-<index>" identifier.
func (e *ExtrinsicDetails) ID() string {
	return strconv.FormatUint(e.BlockNumber, 10) + "-" + strconv.Itoa(e.Index)
}
