package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/shopspring/decimal"
)

type ExtrinsicRepo struct {
	db *DB
}

func NewExtrinsicRepo(db *DB) *ExtrinsicRepo {
	return &ExtrinsicRepo{db: db}
}

func (r *ExtrinsicRepo) Save(ctx context.Context, ext *model.ExtrinsicDetails) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	args := ext.Call.Args
	if args == nil {
		args = []model.CallArg{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal args of extrinsic %s: %w", ext.ID(), err)
	}

	var (
		signer, signature, era sql.NullString
		nonce                  sql.NullInt64
		tip                    decimal.NullDecimal
	)
	if sig := ext.Signature; sig != nil {
		signer = sql.NullString{String: sig.Signer, Valid: true}
		signature = sql.NullString{String: sig.Signature, Valid: true}
		era = sql.NullString{String: sig.Era, Valid: true}
		nonce = sql.NullInt64{Int64: int64(sig.Nonce), Valid: true}
		tip = numeric(sig.Tip)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO extrinsics (
			block_number, index, block_hash, hash, is_signed, signer, signature, era,
			nonce, tip, pallet, call, args, raw_length
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14)
		ON CONFLICT (block_number, index) DO UPDATE SET
			block_hash = EXCLUDED.block_hash,
			hash = EXCLUDED.hash,
			is_signed = EXCLUDED.is_signed,
			signer = EXCLUDED.signer,
			signature = EXCLUDED.signature,
			era = EXCLUDED.era,
			nonce = EXCLUDED.nonce,
			tip = EXCLUDED.tip,
			pallet = EXCLUDED.pallet,
			call = EXCLUDED.call,
			args = EXCLUDED.args,
			raw_length = EXCLUDED.raw_length
	`, ext.BlockNumber, ext.Index, ext.BlockHash, strings.ToLower(ext.Hash), ext.IsSigned,
		signer, signature, era, nonce, tip, ext.Call.Pallet, ext.Call.Call, string(argsJSON), ext.RawLength)
	if err != nil {
		return fmt.Errorf("upsert extrinsic %s: %w", ext.ID(), err)
	}
	return nil
}

const extrinsicColumns = `block_number, index, block_hash, hash, is_signed, signer, signature, era,
	nonce, tip, pallet, call, args, raw_length`

func (r *ExtrinsicRepo) GetByHash(ctx context.Context, hash string) (*model.ExtrinsicDetails, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+extrinsicColumns+`
		FROM extrinsics
		WHERE lower(hash) = lower($1)
		ORDER BY block_number, index
		LIMIT 1
	`, hash)
	ext, err := scanExtrinsic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get extrinsic %s: %w", hash, err)
	}
	return ext, nil
}

func (r *ExtrinsicRepo) GetByBlockNumber(ctx context.Context, number uint64) ([]model.ExtrinsicDetails, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+extrinsicColumns+`
		FROM extrinsics
		WHERE block_number = $1
		ORDER BY index
	`, number)
	if err != nil {
		return nil, fmt.Errorf("query extrinsics of block %d: %w", number, err)
	}
	defer rows.Close()

	out := make([]model.ExtrinsicDetails, 0)
	for rows.Next() {
		ext, err := scanExtrinsic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan extrinsic: %w", err)
		}
		out = append(out, *ext)
	}
	return out, rows.Err()
}

func (r *ExtrinsicRepo) CountByBlockNumber(ctx context.Context, number uint64) (int, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM extrinsics WHERE block_number = $1`, number,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count extrinsics of block %d: %w", number, err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExtrinsic(row rowScanner) (*model.ExtrinsicDetails, error) {
	var (
		ext                    model.ExtrinsicDetails
		signer, signature, era sql.NullString
		nonce                  sql.NullInt64
		tip                    decimal.NullDecimal
		args                   []byte
	)
	if err := row.Scan(
		&ext.BlockNumber, &ext.Index, &ext.BlockHash, &ext.Hash, &ext.IsSigned,
		&signer, &signature, &era, &nonce, &tip,
		&ext.Call.Pallet, &ext.Call.Call, &args, &ext.RawLength,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(args, &ext.Call.Args); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	if ext.IsSigned {
		ext.Signature = &model.SignatureInfo{
			Signer:    signer.String,
			Signature: signature.String,
			Era:       era.String,
			Nonce:     uint64(nonce.Int64),
			Tip:       fromNumeric(tip),
		}
	}
	return &ext, nil
}
