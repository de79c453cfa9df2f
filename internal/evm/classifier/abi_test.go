package classifier

import (
	"math/big"
	"testing"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeABIString(t *testing.T) {
	s, err := DecodeABIString(abiString("Selendra"))
	require.NoError(t, err)
	assert.Equal(t, "Selendra", s)

	s, err = DecodeABIString(abiString(""))
	require.NoError(t, err)
	assert.Equal(t, "", s)

	// padding past the declared length is ignored
	s, err = DecodeABIString(append(abiString("SEL"), make([]byte, 64)...))
	require.NoError(t, err)
	assert.Equal(t, "SEL", s)
}

func TestDecodeABIString_InvalidShape(t *testing.T) {
	_, err := DecodeABIString(make([]byte, 40))
	assert.ErrorIs(t, err, model.ErrInvalidResponseShape)

	declared := abiString("Selendra")
	_, err = DecodeABIString(declared[:64+4])
	assert.ErrorIs(t, err, model.ErrInvalidResponseShape)

	huge := make([]byte, 64)
	for i := 32; i < 64; i++ {
		huge[i] = 0xff
	}
	_, err = DecodeABIString(huge)
	assert.ErrorIs(t, err, model.ErrInvalidResponseShape)

	_, err = DecodeABIString(abiString("\xff\xfe"))
	assert.ErrorIs(t, err, model.ErrInvalidResponseShape)
}

func TestDecodeStringOrBytes32(t *testing.T) {
	raw := make([]byte, 32)
	copy(raw, "MKR")
	s, err := decodeStringOrBytes32(raw)
	require.NoError(t, err)
	assert.Equal(t, "MKR", s)

	_, err = decodeStringOrBytes32(make([]byte, 32))
	assert.ErrorIs(t, err, model.ErrInvalidResponseShape)

	s, err = decodeStringOrBytes32(abiString("Maker"))
	require.NoError(t, err)
	assert.Equal(t, "Maker", s)
}

func TestDecodeWords(t *testing.T) {
	v, err := decodeWord(word(big.NewInt(1_000_000)))
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), v.Int64())

	_, err = decodeWord(make([]byte, 31))
	assert.ErrorIs(t, err, model.ErrInvalidResponseShape)

	d, err := decodeUint8(word(big.NewInt(18)))
	require.NoError(t, err)
	assert.Equal(t, uint8(18), d)

	_, err = decodeUint8(word(big.NewInt(256)))
	assert.ErrorIs(t, err, model.ErrInvalidResponseShape)
}
