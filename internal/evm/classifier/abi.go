package classifier

import (
	"bytes"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
)

const wordLen = 32

// DecodeABIString decodes an ABI-encoded dynamic string: a 32-byte offset
// word, a 32-byte big-endian length word, then the bytes.
func DecodeABIString(b []byte) (string, error) {
	if len(b) < 2*wordLen {
		return "", fmt.Errorf("%w: string needs %d header bytes, have %d", model.ErrInvalidResponseShape, 2*wordLen, len(b))
	}
	length := new(big.Int).SetBytes(b[wordLen : 2*wordLen])
	if !length.IsInt64() || length.Int64() > int64(len(b)-2*wordLen) {
		return "", fmt.Errorf("%w: string declares %s bytes, have %d", model.ErrInvalidResponseShape, length, len(b)-2*wordLen)
	}
	s := b[2*wordLen : 2*wordLen+int(length.Int64())]
	if !utf8.Valid(s) {
		return "", fmt.Errorf("%w: string is not valid UTF-8", model.ErrInvalidResponseShape)
	}
	return string(s), nil
}

// decodeStringOrBytes32 also accepts a bare bytes32 word, which some older
// tokens return from name() and symbol().
func decodeStringOrBytes32(b []byte) (string, error) {
	if len(b) == wordLen {
		s := bytes.TrimRight(b, "\x00")
		if len(s) == 0 || !utf8.Valid(s) {
			return "", fmt.Errorf("%w: empty or invalid bytes32 string", model.ErrInvalidResponseShape)
		}
		return string(s), nil
	}
	return DecodeABIString(b)
}

func decodeWord(b []byte) (*big.Int, error) {
	if len(b) != wordLen {
		return nil, fmt.Errorf("%w: want %d bytes, have %d", model.ErrInvalidResponseShape, wordLen, len(b))
	}
	return new(big.Int).SetBytes(b), nil
}

func decodeUint8(b []byte) (uint8, error) {
	v, err := decodeWord(b)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() || v.Uint64() > 255 {
		return 0, fmt.Errorf("%w: %s does not fit uint8", model.ErrInvalidResponseShape, v)
	}
	return uint8(v.Uint64()), nil
}
