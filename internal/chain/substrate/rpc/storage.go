package rpc

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// StorageKey builds twox128(pallet) ++ twox128(item) ++ key.
func StorageKey(pallet, item string, key []byte) []byte {
	out := make([]byte, 0, 32+len(key))
	out = append(out, Twox128([]byte(pallet))...)
	out = append(out, Twox128([]byte(item))...)
	return append(out, key...)
}

// Twox128 is two xxhash64 digests with seeds 0 and 1, each little-endian.
func Twox128(data []byte) []byte {
	out := make([]byte, 16)
	for seed := uint64(0); seed < 2; seed++ {
		d := xxhash.NewWithSeed(seed)
		_, _ = d.Write(data)
		binary.LittleEndian.PutUint64(out[seed*8:], d.Sum64())
	}
	return out
}

// Blake2128Concat is the map hasher blake2b-128(key) ++ key.
func Blake2128Concat(key []byte) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write(key)
	return append(h.Sum(nil), key...)
}
