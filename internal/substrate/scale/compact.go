// Package scale implements the subset of the SCALE codec needed to walk raw
// extrinsics: the compact (variable-width) unsigned integer.
package scale

import (
	"fmt"
	"math/big"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
)

const (
	modeSingle = 0b00
	modeTwo    = 0b01
	modeFour   = 0b10
	modeBig    = 0b11
)

// DecodeCompact decodes a compact integer from the start of b and returns the
// value and the number of bytes consumed.
//
// In big-integer mode the returned value is the byte length of the payload,
// not the integer itself; use DecodeCompactBig to materialize it.
func DecodeCompact(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("%w: empty input", model.ErrMalformedInteger)
	}
	b0 := b[0]
	switch b0 & 0b11 {
	case modeSingle:
		return uint64(b0 >> 2), 1, nil
	case modeTwo:
		if len(b) < 2 {
			return 0, 0, shortErr(2, len(b))
		}
		return uint64(b0&0xFC)>>2 | uint64(b[1])<<6, 2, nil
	case modeFour:
		if len(b) < 4 {
			return 0, 0, shortErr(4, len(b))
		}
		v := uint64(b0&0xFC)>>2 |
			uint64(b[1])<<6 |
			uint64(b[2])<<14 |
			uint64(b[3])<<22
		return v, 4, nil
	default:
		length := int(b0>>2) + 4
		if len(b) < length+1 {
			return 0, 0, shortErr(length+1, len(b))
		}
		return uint64(length), length + 1, nil
	}
}

// DecodeCompactBig is DecodeCompact with big-integer mode materialized as a
// little-endian unsigned integer.
func DecodeCompactBig(b []byte) (*big.Int, int, error) {
	v, n, err := DecodeCompact(b)
	if err != nil {
		return nil, 0, err
	}
	if b[0]&0b11 != modeBig {
		return new(big.Int).SetUint64(v), n, nil
	}
	le := b[1:n]
	be := make([]byte, len(le))
	for i := range le {
		be[len(le)-1-i] = le[i]
	}
	return new(big.Int).SetBytes(be), n, nil
}

// EncodeCompact is the inverse of DecodeCompactBig for values that fit in a
// uint64.
func EncodeCompact(v uint64) []byte {
	switch {
	case v < 1<<6:
		return []byte{byte(v) << 2}
	case v < 1<<14:
		x := uint16(v)<<2 | modeTwo
		return []byte{byte(x), byte(x >> 8)}
	case v < 1<<30:
		x := uint32(v)<<2 | modeFour
		return []byte{byte(x), byte(x >> 8), byte(x >> 16), byte(x >> 24)}
	}
	var le []byte
	for x := v; x > 0; x >>= 8 {
		le = append(le, byte(x))
	}
	out := make([]byte, 0, len(le)+1)
	out = append(out, byte(len(le)-4)<<2|modeBig)
	return append(out, le...)
}

func shortErr(need, have int) error {
	return fmt.Errorf("%w: need %d bytes, have %d", model.ErrMalformedInteger, need, have)
}
