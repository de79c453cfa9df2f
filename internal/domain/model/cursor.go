package model

import "time"

// IndexerCursor is the persisted form of latest_indexed_block.
type IndexerCursor struct {
	Chain              Chain     `db:"chain"`
	Network            Network   `db:"network"`
	LatestIndexedBlock uint64    `db:"latest_indexed_block"`
	UpdatedAt          time.Time `db:"updated_at"`
}
