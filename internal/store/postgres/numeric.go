package postgres

import (
	"database/sql"
	"math/big"

	"github.com/shopspring/decimal"
)

// numeric maps an optional integer amount to a NUMERIC column value.
func numeric(v *big.Int) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromBigInt(v, 0), Valid: true}
}

func fromNumeric(d decimal.NullDecimal) *big.Int {
	if !d.Valid {
		return nil
	}
	return d.Decimal.BigInt()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
