package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/fleetkeeper/fleetkeeper/internal/client/storage"
)

// seqKey кодирует sequence number в big-endian: лексикографический
// порядок ключей bbolt совпадает с порядком добавления
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// EnqueueWrite appends a write to the tail of the offline queue
func (s *Storage) EnqueueWrite(ctx context.Context, write *storage.QueuedWrite) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		write.Seq = seq

		data, err := json.Marshal(write)
		if err != nil {
			return fmt.Errorf("failed to marshal queued write: %w", err)
		}

		if err := bucket.Put(seqKey(seq), data); err != nil {
			return fmt.Errorf("failed to enqueue write: %w", err)
		}

		return nil
	})
}

// ListQueued returns all queued writes in FIFO order
func (s *Storage) ListQueued(ctx context.Context) ([]storage.QueuedWrite, error) {
	var writes []storage.QueuedWrite

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}

		return bucket.ForEach(func(k, v []byte) error {
			var write storage.QueuedWrite
			if err := json.Unmarshal(v, &write); err != nil {
				return fmt.Errorf("failed to unmarshal queued write: %w", err)
			}
			writes = append(writes, write)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return writes, nil
}

// DequeueWrite removes a queued write by its sequence number
func (s *Storage) DequeueWrite(ctx context.Context, seq uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}

		key := seqKey(seq)
		if bucket.Get(key) == nil {
			return storage.ErrWriteNotQueued
		}

		if err := bucket.Delete(key); err != nil {
			return fmt.Errorf("failed to dequeue write: %w", err)
		}

		return nil
	})
}

// QueuedCount returns the number of writes waiting to be pushed
func (s *Storage) QueuedCount(ctx context.Context) (int, error) {
	count := 0

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}

		count = bucket.Stats().KeyN
		return nil
	})

	if err != nil {
		return 0, err
	}

	return count, nil
}
