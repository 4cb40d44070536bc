package storage

import (
	"context"

	"github.com/fleetkeeper/fleetkeeper/pkg/api"
)

// QueueStorage defines interface for the offline write queue.
// Записи, которые не удалось отправить (судно вне связи), копятся
// локально и выталкиваются командой push в порядке добавления.
type QueueStorage interface {
	// EnqueueWrite appends a write to the tail of the queue
	EnqueueWrite(ctx context.Context, write *QueuedWrite) error

	// ListQueued returns all queued writes in FIFO order
	ListQueued(ctx context.Context) ([]QueuedWrite, error)

	// DequeueWrite removes a queued write by its sequence number
	DequeueWrite(ctx context.Context, seq uint64) error

	// QueuedCount returns the number of writes waiting to be pushed
	QueuedCount(ctx context.Context) (int, error)
}

// QueuedWrite represents one write waiting in the offline queue
type QueuedWrite struct {
	Request    api.WriteRequest `json:"request"`
	Seq        uint64           `json:"seq"`
	EnqueuedAt int64            `json:"enqueued_at"` // unix seconds
}
