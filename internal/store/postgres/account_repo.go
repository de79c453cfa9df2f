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

type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// Save upserts the account unless a state from a later block is stored.
func (r *AccountRepo) Save(ctx context.Context, account *model.AccountInfo) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var (
		contractType, name, symbol sql.NullString
		decimals                   sql.NullInt16
		totalSupply                decimal.NullDecimal
	)
	if ct := account.ContractType; ct != nil {
		contractType = sql.NullString{String: ct.Type.String(), Valid: true}
		name = nullString(ct.Name)
		symbol = nullString(ct.Symbol)
		if ct.Decimals != nil {
			decimals = sql.NullInt16{Int16: int16(*ct.Decimals), Valid: true}
		}
		totalSupply = numeric(ct.TotalSupply)
	}
	balance := numeric(account.Balance)
	if !balance.Valid {
		balance = decimal.NullDecimal{Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO evm_accounts (
			address, balance, nonce, is_contract, contract_type,
			token_name, token_symbol, token_decimals, total_supply, block_number
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (address) DO UPDATE SET
			balance = EXCLUDED.balance,
			nonce = EXCLUDED.nonce,
			is_contract = EXCLUDED.is_contract,
			contract_type = EXCLUDED.contract_type,
			token_name = EXCLUDED.token_name,
			token_symbol = EXCLUDED.token_symbol,
			token_decimals = EXCLUDED.token_decimals,
			total_supply = EXCLUDED.total_supply,
			block_number = EXCLUDED.block_number,
			updated_at = now()
		WHERE evm_accounts.block_number <= EXCLUDED.block_number
	`, strings.ToLower(account.Address), balance, account.Nonce, account.IsContract, contractType,
		name, symbol, decimals, totalSupply, account.BlockNumber)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", account.Address, err)
	}
	return nil
}

func (r *AccountRepo) GetByAddress(ctx context.Context, address string) (*model.AccountInfo, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var (
		a                          model.AccountInfo
		balance, totalSupply       decimal.NullDecimal
		contractType, name, symbol sql.NullString
		decimals                   sql.NullInt16
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT address, balance, nonce, is_contract, contract_type,
		       token_name, token_symbol, token_decimals, total_supply, block_number
		FROM evm_accounts
		WHERE address = lower($1)
	`, address).Scan(
		&a.Address, &balance, &a.Nonce, &a.IsContract, &contractType,
		&name, &symbol, &decimals, &totalSupply, &a.BlockNumber,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", address, err)
	}
	a.Balance = fromNumeric(balance)

	if contractType.Valid {
		t, err := model.ParseContractType(contractType.String)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", address, err)
		}
		info := &model.ContractTypeInfo{
			Type:        t,
			Name:        fromNullString(name),
			Symbol:      fromNullString(symbol),
			TotalSupply: fromNumeric(totalSupply),
		}
		if decimals.Valid {
			d := uint8(decimals.Int16)
			info.Decimals = &d
		}
		a.ContractType = info
	}
	return &a, nil
}
