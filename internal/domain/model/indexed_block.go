package model

import "time"

// IndexedBlock marks a block whose handler returned success.
type IndexedBlock struct {
	Chain       Chain     `db:"chain"`
	Network     Network   `db:"network"`
	BlockNumber uint64    `db:"block_number"`
	BlockHash   string    `db:"block_hash"`
	ParentHash  string    `db:"parent_hash"`
	IndexedAt   time.Time `db:"indexed_at"`
}
