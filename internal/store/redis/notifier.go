package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/metrics"
	"github.com/selendra/selendra-explorer-sub000/internal/store"
)

// IndexedStream is the stream indexed-block notifications go to.
const IndexedStream = "selendra:indexed"

// BlockIndexed is the notification payload.
type BlockIndexed struct {
	Chain       string    `json:"chain"`
	Network     string    `json:"network"`
	BlockNumber uint64    `json:"block_number"`
	BlockHash   string    `json:"block_hash"`
	ParentHash  string    `json:"parent_hash"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// Notifier publishes a BlockIndexed message after every successful save of
// the wrapped repository. Publish failures are logged and counted only.
type Notifier struct {
	store.IndexedBlockRepository
	publisher Publisher
	stream    string
	logger    *slog.Logger
}

func NewNotifier(next store.IndexedBlockRepository, publisher Publisher, stream string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if stream == "" {
		stream = IndexedStream
	}
	return &Notifier{
		IndexedBlockRepository: next,
		publisher:              publisher,
		stream:                 stream,
		logger:                 logger.With("component", "indexed_notifier"),
	}
}

func (n *Notifier) Save(ctx context.Context, block *model.IndexedBlock) error {
	if err := n.IndexedBlockRepository.Save(ctx, block); err != nil {
		return err
	}

	msg := BlockIndexed{
		Chain:       block.Chain.String(),
		Network:     block.Network.String(),
		BlockNumber: block.BlockNumber,
		BlockHash:   block.BlockHash,
		ParentHash:  block.ParentHash,
		IndexedAt:   block.IndexedAt,
	}
	if _, err := n.publisher.PublishJSON(ctx, n.stream, msg); err != nil {
		metrics.StreamPublishErrors.WithLabelValues(n.stream).Inc()
		n.logger.Warn("publish failed",
			"stream", n.stream,
			"chain", msg.Chain,
			"block", msg.BlockNumber,
			"error", err,
		)
		return nil
	}
	metrics.StreamPublishedTotal.WithLabelValues(n.stream).Inc()
	return nil
}

// WrapStore returns a copy of st whose indexed-block saves are announced on
// stream.
func WrapStore(st *store.Store, publisher Publisher, stream string, logger *slog.Logger) *store.Store {
	wrapped := *st
	wrapped.IndexedBlocks = NewNotifier(st.IndexedBlocks, publisher, stream, logger)
	return &wrapped
}
