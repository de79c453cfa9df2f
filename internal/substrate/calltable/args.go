package calltable

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/substrate/scale"
)

const (
	accountIDLen = 32
	h160Len      = 20
	u256Len      = 32
	u64Len       = 8
)

// ExtractArgs decodes the arguments of a call from the bytes following the
// pallet and call index. It never fails: when a field runs past the end of
// data the arguments decoded so far are returned.
func ExtractArgs(pallet, call uint8, data []byte) []model.CallArg {
	r := &argReader{data: data, args: make([]model.CallArg, 0, 4)}

	switch Pallet(pallet) {
	case PalletTimestamp:
		if call == CallTimestampSet {
			r.compact("now")
			return r.args
		}
	case PalletBalances:
		switch call {
		case CallBalancesTransfer, CallBalancesForceTransfer, CallBalancesTransferKeepAlive:
			_ = r.fixedHex("dest", accountIDLen) && r.compact("value")
			return r.args
		}
	case PalletEVM:
		switch call {
		case CallEVMWithdraw:
			_ = r.fixedHex("address", h160Len) && r.compact("value")
			return r.args
		case CallEVMCall:
			_ = r.fixedHex("source", h160Len) &&
				r.fixedHex("target", h160Len) &&
				r.blob("input") &&
				r.leUint("value", u256Len) &&
				r.leUint("gas_limit", u64Len)
			return r.args
		case CallEVMCreate:
			_ = r.fixedHex("source", h160Len) &&
				r.blob("init") &&
				r.leUint("value", u256Len) &&
				r.leUint("gas_limit", u64Len)
			return r.args
		case CallEVMCreate2:
			_ = r.fixedHex("source", h160Len) &&
				r.blob("init") &&
				r.fixedHex("salt", u256Len) &&
				r.leUint("value", u256Len) &&
				r.leUint("gas_limit", u64Len)
			return r.args
		}
	case PalletEthereum:
		if call == CallEthereumTransact {
			if r.leUint("transaction_type", 1) && r.remaining() > 0 {
				r.push("transaction_data", hexString(r.data[r.off:]))
			}
			return r.args
		}
	case PalletSystem, PalletStaking:
	}

	if IsValid(pallet, call) && len(data) > 0 {
		r.push("raw_args", hexString(data))
	}
	return r.args
}

type argReader struct {
	data []byte
	off  int
	args []model.CallArg
}

func (r *argReader) remaining() int {
	return len(r.data) - r.off
}

func (r *argReader) push(name, value string) {
	r.args = append(r.args, model.CallArg{Name: name, Value: value})
}

func (r *argReader) take(n int) ([]byte, bool) {
	if n < 0 || r.remaining() < n {
		return nil, false
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, true
}

func (r *argReader) fixedHex(name string, n int) bool {
	b, ok := r.take(n)
	if !ok {
		return false
	}
	r.push(name, hexString(b))
	return true
}

// leUint reads an n-byte little-endian unsigned integer.
func (r *argReader) leUint(name string, n int) bool {
	b, ok := r.take(n)
	if !ok {
		return false
	}
	if n == u64Len {
		r.push(name, strconv.FormatUint(binary.LittleEndian.Uint64(b), 10))
		return true
	}
	be := make([]byte, n)
	for i := range b {
		be[n-1-i] = b[i]
	}
	r.push(name, new(big.Int).SetBytes(be).String())
	return true
}

func (r *argReader) compact(name string) bool {
	if r.remaining() == 0 {
		return false
	}
	v, n, err := scale.DecodeCompactBig(r.data[r.off:])
	if err != nil {
		return false
	}
	r.off += n
	r.push(name, v.String())
	return true
}

// blob reads a compact-length-prefixed byte string.
func (r *argReader) blob(name string) bool {
	if r.remaining() == 0 {
		return false
	}
	length, n, err := scale.DecodeCompact(r.data[r.off:])
	if err != nil {
		return false
	}
	if length > uint64(r.remaining()-n) {
		return false
	}
	r.off += n
	b, _ := r.take(int(length))
	r.push(name, hexString(b))
	return true
}

func hexString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
