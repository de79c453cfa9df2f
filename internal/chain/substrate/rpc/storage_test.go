package rpc

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwox128(t *testing.T) {
	assert.Equal(t, "0x26aa394eea5630e07c48ae0c9558cef7", hexutil.Encode(Twox128([]byte("System"))))
	assert.Equal(t, "0xb99d880ec681799c0cf30e8886371da9", hexutil.Encode(Twox128([]byte("Account"))))
	assert.Equal(t, "0xf0c365c3cf59d671eb72da0e7a4113c4", hexutil.Encode(Twox128([]byte("Timestamp"))))
}

func TestStorageKey(t *testing.T) {
	key := StorageKey("System", "Number", nil)
	assert.Equal(t, "0x26aa394eea5630e07c48ae0c9558cef702a5c1b19ab7a04f536c519aca4983ac", hexutil.Encode(key))

	withKey := StorageKey("System", "Account", []byte{0x01, 0x02})
	require.Len(t, withKey, 34)
	assert.Equal(t, []byte{0x01, 0x02}, withKey[32:])
}

func TestBlake2128Concat(t *testing.T) {
	out := Blake2128Concat([]byte{0xaa, 0xbb})
	require.Len(t, out, 18)
	assert.Equal(t, []byte{0xaa, 0xbb}, out[16:])
	assert.Equal(t, out, Blake2128Concat([]byte{0xaa, 0xbb}))
	assert.NotEqual(t, out[:16], Blake2128Concat([]byte{0xaa, 0xbc})[:16])
}
