package extrinsic

import (
	"bytes"
	"encoding/binary"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/substrate/scale"
)

// signedFixture builds signed extrinsics field by field. Signature bytes are
// 0x77 so the Balances scan never matches inside them.
type signedFixture struct {
	era   []byte
	nonce uint64
	tip   uint64
	extra []byte // unknown signed-extension bytes between tip and call
	call  []byte
}

func (f signedFixture) body() []byte {
	var b []byte
	b = append(b, 0x84)
	b = append(b, testSigner()...)
	b = append(b, bytes.Repeat([]byte{0x77}, signatureLen)...)
	if f.era == nil {
		b = append(b, 0x00)
	} else {
		b = append(b, f.era...)
	}
	b = append(b, scale.EncodeCompact(f.nonce)...)
	b = append(b, scale.EncodeCompact(f.tip)...)
	b = append(b, f.extra...)
	b = append(b, f.call...)
	return b
}

func (f signedFixture) bytes() []byte {
	return withLength(f.body())
}

func withLength(body []byte) []byte {
	return append(scale.EncodeCompact(uint64(len(body))), body...)
}

func testSigner() []byte {
	return bytes.Repeat([]byte{0x11}, signerLen)
}

func testDest() []byte {
	dest := make([]byte, 32)
	for i := range dest {
		dest[i] = byte(0x20 + i)
	}
	return dest
}

func balancesTransferCall(value uint64) []byte {
	call := []byte{4, 0}
	call = append(call, testDest()...)
	return append(call, scale.EncodeCompact(value)...)
}

func evmCallCall() []byte {
	gas := make([]byte, 8)
	binary.LittleEndian.PutUint64(gas, 21000)

	call := []byte{81, 1}
	call = append(call, bytes.Repeat([]byte{0x11}, 20)...)
	call = append(call, bytes.Repeat([]byte{0x22}, 20)...)
	call = append(call, scale.EncodeCompact(4)...)
	call = append(call, 0xa9, 0x05, 0x9c, 0xbb)
	call = append(call, make([]byte, 32)...)
	return append(call, gas...)
}

func timestampSetUnsigned(now uint64) []byte {
	body := []byte{0x04, 3, 0}
	body = append(body, scale.EncodeCompact(now)...)
	return withLength(body)
}

func arg(call model.CallInfo, name string) string {
	v, _ := call.Arg(name)
	return v
}
