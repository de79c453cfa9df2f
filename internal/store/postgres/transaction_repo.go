package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/shopspring/decimal"
)

type TransactionRepo struct {
	db *DB
}

func NewTransactionRepo(db *DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) Save(ctx context.Context, tx *model.EVMTransaction) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	value := numeric(tx.Value)
	if !value.Valid {
		value = decimal.NullDecimal{Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO evm_transactions (
			hash, block_number, block_hash, transaction_index, from_address, to_address,
			value, gas, gas_price, gas_used, nonce, input, status, contract_address
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (hash) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			block_hash = EXCLUDED.block_hash,
			transaction_index = EXCLUDED.transaction_index,
			gas_price = EXCLUDED.gas_price,
			gas_used = EXCLUDED.gas_used,
			status = EXCLUDED.status,
			contract_address = EXCLUDED.contract_address
	`, strings.ToLower(tx.Hash), tx.BlockNumber, tx.BlockHash, tx.Index, tx.From, nullString(tx.To),
		value, tx.Gas, numeric(tx.GasPrice), tx.GasUsed, tx.Nonce, tx.Input, string(tx.Status),
		nullString(tx.ContractAddress))
	if err != nil {
		return fmt.Errorf("upsert transaction %s: %w", tx.Hash, err)
	}
	return nil
}

func (r *TransactionRepo) GetByHash(ctx context.Context, hash string) (*model.EVMTransaction, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var (
		tx               model.EVMTransaction
		to, created      sql.NullString
		value, gasPrice  decimal.NullDecimal
		status           string
		transactionIndex int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT hash, block_number, block_hash, transaction_index, from_address, to_address,
		       value, gas, gas_price, gas_used, nonce, input, status, contract_address
		FROM evm_transactions
		WHERE hash = lower($1)
	`, hash).Scan(
		&tx.Hash, &tx.BlockNumber, &tx.BlockHash, &transactionIndex, &tx.From, &to,
		&value, &tx.Gas, &gasPrice, &tx.GasUsed, &tx.Nonce, &tx.Input, &status, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", hash, err)
	}
	tx.Index = uint(transactionIndex)
	tx.To = fromNullString(to)
	tx.ContractAddress = fromNullString(created)
	tx.Value = fromNumeric(value)
	tx.GasPrice = fromNumeric(gasPrice)
	tx.Status = model.TxStatus(status)
	return &tx, nil
}

func (r *TransactionRepo) CountByBlockNumber(ctx context.Context, number uint64) (int, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM evm_transactions WHERE block_number = $1`, number,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count transactions of block %d: %w", number, err)
	}
	return count, nil
}
