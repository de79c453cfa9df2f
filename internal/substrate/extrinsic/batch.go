package extrinsic

import (
	"fmt"
	"strings"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
)

// IndexedError is the failure of one extrinsic within a block.
type IndexedError struct {
	Index int
	Err   error
}

// BatchError aggregates per-extrinsic failures of a block. When Decoded > 0
// it is a warning and the caller still receives the decoded extrinsics.
type BatchError struct {
	Total    int
	Decoded  int
	Failures []IndexedError
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("index %d: %v", f.Index, f.Err))
	}
	return fmt.Sprintf("decoded %d/%d extrinsics; failures: %s", e.Decoded, e.Total, strings.Join(parts, "; "))
}

// IsPartial reports whether at least one extrinsic decoded.
func (e *BatchError) IsPartial() bool {
	return e.Decoded > 0
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// DecodeExtrinsics decodes every extrinsic of a block in order.
//
// If some extrinsics fail, the decoded ones are returned together with a
// *BatchError whose IsPartial is true. If all of them fail, no extrinsics are
// returned and the *BatchError is fatal for the block.
func (d *Decoder) DecodeExtrinsics(raws [][]byte) ([]*model.ExtrinsicDetails, error) {
	return decodeAll(len(raws), func(i int) (*model.ExtrinsicDetails, error) {
		return d.Decode(raws[i], i)
	})
}

// DecodeHexExtrinsics is DecodeExtrinsics over 0x-hex strings.
func (d *Decoder) DecodeHexExtrinsics(hexes []string) ([]*model.ExtrinsicDetails, error) {
	return decodeAll(len(hexes), func(i int) (*model.ExtrinsicDetails, error) {
		return d.DecodeHex(hexes[i], i)
	})
}

func decodeAll(n int, decodeAt func(i int) (*model.ExtrinsicDetails, error)) ([]*model.ExtrinsicDetails, error) {
	out := make([]*model.ExtrinsicDetails, 0, n)
	var failures []IndexedError
	for i := 0; i < n; i++ {
		details, err := decodeAt(i)
		if err != nil {
			failures = append(failures, IndexedError{Index: i, Err: err})
			continue
		}
		out = append(out, details)
	}
	if len(failures) == 0 {
		return out, nil
	}

	batchErr := &BatchError{Total: n, Decoded: len(out), Failures: failures}
	if len(out) == 0 {
		return nil, batchErr
	}
	return out, batchErr
}
