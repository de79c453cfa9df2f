// Package extrinsic decodes raw Substrate extrinsics without runtime
// metadata.
//
// Signed extensions beyond era, nonce and tip are not known here, so the call
// boundary of a signed extrinsic is located heuristically (see boundary.go).
// The heuristics are cross-validated against the calltable and are only as
// good as that table: calls of pallets it does not list can be mislocated.
package extrinsic

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/metrics"
	"github.com/selendra/selendra-explorer-sub000/internal/substrate/calltable"
	"github.com/selendra/selendra-explorer-sub000/internal/substrate/scale"
)

const (
	signedBit    = 0x80
	signerLen    = 32
	signatureLen = 64

	fallbackStrategy = "fallback"
)

type Decoder struct {
	finders []BoundaryFinder
	logger  *slog.Logger
}

type Option func(*Decoder)

// WithFinders replaces the boundary strategies tried for signed extrinsics.
func WithFinders(finders ...BoundaryFinder) Option {
	return func(d *Decoder) {
		d.finders = finders
	}
}

func NewDecoder(logger *slog.Logger, opts ...Option) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Decoder{
		finders: DefaultFinders(),
		logger:  logger.With("component", "extrinsic_decoder"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode decodes one extrinsic. index is its position in the block.
func (d *Decoder) Decode(raw []byte, index int) (*model.ExtrinsicDetails, error) {
	details, _, err := d.decode(raw, index)
	return details, err
}

// DecodeHex decodes a 0x-prefixed hex extrinsic as returned by chain_getBlock.
func (d *Decoder) DecodeHex(s string, index int) (*model.ExtrinsicDetails, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("extrinsic %d: decode hex: %w", index, err)
	}
	return d.Decode(raw, index)
}

// decode also returns the offset the call was read from.
func (d *Decoder) decode(raw []byte, index int) (*model.ExtrinsicDetails, int, error) {
	length, lengthOffset, err := scale.DecodeCompact(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("extrinsic %d: decode length prefix: %w", index, err)
	}
	if length > uint64(len(raw)-lengthOffset) {
		return nil, 0, fmt.Errorf("extrinsic %d: %w", index, &model.FieldError{
			Field: "length", Offset: lengthOffset, Need: int(length), Have: len(raw) - lengthOffset,
		})
	}
	// Trailing bytes past the declared length are not part of this extrinsic.
	raw = raw[:lengthOffset+int(length)]

	if len(raw) <= lengthOffset {
		return nil, 0, fmt.Errorf("extrinsic %d: %w", index, &model.FieldError{
			Field: "version", Offset: lengthOffset, Need: 1, Have: 0,
		})
	}

	details := &model.ExtrinsicDetails{
		Index:     index,
		IsSigned:  raw[lengthOffset]&signedBit != 0,
		RawLength: len(raw),
	}

	callStart := lengthOffset + 1
	if details.IsSigned {
		sig, layout, err := decodeSignature(raw, lengthOffset)
		if err != nil {
			metrics.ExtrinsicDecodeErrors.WithLabelValues(errorField(err)).Inc()
			return nil, 0, fmt.Errorf("extrinsic %d: %w", index, err)
		}
		details.Signature = sig
		callStart = d.findBoundary(raw, layout, index)
	}

	details.Call = readCall(raw, callStart)
	return details, callStart, nil
}

func (d *Decoder) findBoundary(raw []byte, layout Layout, index int) int {
	for _, f := range d.finders {
		if off, ok := f.Find(raw, layout); ok {
			metrics.ExtrinsicBoundaryTotal.WithLabelValues(f.Name()).Inc()
			return off
		}
	}
	metrics.ExtrinsicBoundaryTotal.WithLabelValues(fallbackStrategy).Inc()
	d.logger.Debug("call boundary unresolved, using calculated offset",
		"index", index,
		"offset", layout.CalculatedOffset,
		"error", model.ErrUnresolvableCallBoundary,
	)
	return layout.CalculatedOffset
}

// decodeSignature reads signer, signature, era, nonce and tip in that order.
func decodeSignature(raw []byte, lengthOffset int) (*model.SignatureInfo, Layout, error) {
	off := lengthOffset + 1

	signer, err := fixed(raw, off, signerLen, "signer")
	if err != nil {
		return nil, Layout{}, err
	}
	off += signerLen

	signature, err := fixed(raw, off, signatureLen, "signature")
	if err != nil {
		return nil, Layout{}, err
	}
	off += signatureLen

	eraByte, err := fixed(raw, off, 1, "era")
	if err != nil {
		return nil, Layout{}, err
	}
	era := model.EraImmortal
	if eraByte[0] != 0x00 {
		if _, err := fixed(raw, off, 2, "era"); err != nil {
			return nil, Layout{}, err
		}
		era = fmt.Sprintf("Mortal(0x%02x)", eraByte[0])
		off += 2
	} else {
		off++
	}

	nonce, n, err := compactField(raw, off, "nonce")
	if err != nil {
		return nil, Layout{}, err
	}
	off += n

	tip, n, err := compactField(raw, off, "tip")
	if err != nil {
		return nil, Layout{}, err
	}
	off += n

	nonceValue := nonce.Uint64()
	if !nonce.IsUint64() {
		nonceValue = ^uint64(0)
	}

	sig := &model.SignatureInfo{
		Signer:    "0x" + hex.EncodeToString(signer),
		Signature: "0x" + hex.EncodeToString(signature),
		Era:       era,
		Nonce:     nonceValue,
		Tip:       tip,
	}
	return sig, Layout{LengthOffset: lengthOffset, CalculatedOffset: off}, nil
}

func readCall(raw []byte, start int) model.CallInfo {
	if start < 0 || start >= len(raw) {
		return model.InvalidCall()
	}
	if start+1 >= len(raw) {
		return model.CallInfo{Pallet: model.CallIncomplete, Call: model.CallIncomplete, Args: []model.CallArg{}}
	}
	pallet, call := raw[start], raw[start+1]
	palletName, callName := calltable.Lookup(pallet, call)
	return model.CallInfo{
		Pallet: palletName,
		Call:   callName,
		Args:   calltable.ExtractArgs(pallet, call, raw[start+2:]),
	}
}

func fixed(raw []byte, off, n int, field string) ([]byte, error) {
	if off < 0 || off+n > len(raw) {
		have := len(raw) - off
		if have < 0 {
			have = 0
		}
		return nil, &model.FieldError{Field: field, Offset: off, Need: n, Have: have}
	}
	return raw[off : off+n], nil
}

func compactField(raw []byte, off int, field string) (*big.Int, int, error) {
	if off >= len(raw) {
		return nil, 0, &model.FieldError{Field: field, Offset: off, Need: 1, Have: 0}
	}
	v, n, err := scale.DecodeCompactBig(raw[off:])
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s at offset %d: %w", field, off, err)
	}
	return v, n, nil
}

func errorField(err error) string {
	var fe *model.FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return "compact"
}
