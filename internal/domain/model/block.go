package model

import (
	"math/big"
	"time"
)

type EVMBlock struct {
	Number           uint64    `db:"number"`
	Hash             string    `db:"hash"`
	ParentHash       string    `db:"parent_hash"`
	Miner            string    `db:"miner"`
	GasUsed          uint64    `db:"gas_used"`
	GasLimit         uint64    `db:"gas_limit"`
	BaseFee          *big.Int  `db:"base_fee"`
	TransactionCount int       `db:"transaction_count"`
	Timestamp        time.Time `db:"timestamp"`
}

type EVMTransaction struct {
	Hash            string   `db:"hash"`
	BlockNumber     uint64   `db:"block_number"`
	BlockHash       string   `db:"block_hash"`
	Index           uint     `db:"transaction_index"`
	From            string   `db:"from_address"`
	To              *string  `db:"to_address"`
	Value           *big.Int `db:"value"`
	Gas             uint64   `db:"gas"`
	GasPrice        *big.Int `db:"gas_price"`
	GasUsed         uint64   `db:"gas_used"`
	Nonce           uint64   `db:"nonce"`
	Input           string   `db:"input"`
	Status          TxStatus `db:"status"`
	ContractAddress *string  `db:"contract_address"`
}

type SubstrateBlock struct {
	Number         uint64 `db:"number"`
	Hash           string `db:"hash"`
	ParentHash     string `db:"parent_hash"`
	StateRoot      string `db:"state_root"`
	ExtrinsicsRoot string `db:"extrinsics_root"`
	ExtrinsicCount int    `db:"extrinsic_count"`
	DecodeWarnings int    `db:"decode_warnings"`
	// Timestamp is Timestamp.Now at the block; nil when the node did not
	// return it.
	Timestamp *time.Time `db:"block_timestamp"`
}
