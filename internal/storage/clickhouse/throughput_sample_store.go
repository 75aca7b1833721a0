package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/observability"
	"solana-wallet-engine/internal/storage"
)

// ThroughputSampleStore implements storage.ThroughputSampleStore using ClickHouse.
type ThroughputSampleStore struct {
	conn *Conn
}

// NewThroughputSampleStore creates a new ThroughputSampleStore.
func NewThroughputSampleStore(conn *Conn) *ThroughputSampleStore {
	return &ThroughputSampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ThroughputSampleStore = (*ThroughputSampleStore)(nil)

// Insert appends a sample.
func (s *ThroughputSampleStore) Insert(ctx context.Context, sample *domain.ThroughputSample) (err error) {
	if sample == nil {
		return storage.ErrInvalidInput
	}
	defer observeQuery("insert_sample", time.Now(), &err)

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO throughput_samples (
			head_slot, window_seconds, newest_timestamp, oldest_timestamp,
			user_transactions, vote_transactions, blocks_scanned, rate, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		sample.HeadSlot, sample.WindowSeconds, sample.NewestTimestamp, sample.OldestTimestamp,
		sample.UserTransactions, sample.VoteTransactions, uint32(sample.BlocksScanned),
		sample.Rate, sample.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// ListRecent returns up to limit samples, newest first.
func (s *ThroughputSampleStore) ListRecent(ctx context.Context, limit int) (_ []*domain.ThroughputSample, err error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}
	defer observeQuery("list_samples", time.Now(), &err)

	rows, err := s.conn.Query(ctx, `
		SELECT head_slot, window_seconds, newest_timestamp, oldest_timestamp,
		       user_transactions, vote_transactions, blocks_scanned, rate, recorded_at
		FROM throughput_samples
		ORDER BY recorded_at DESC, head_slot DESC
		LIMIT ?
	`, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var result []*domain.ThroughputSample
	for rows.Next() {
		var (
			sample  domain.ThroughputSample
			scanned uint32
		)
		if err := rows.Scan(
			&sample.HeadSlot, &sample.WindowSeconds, &sample.NewestTimestamp, &sample.OldestTimestamp,
			&sample.UserTransactions, &sample.VoteTransactions, &scanned, &sample.Rate, &sample.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		sample.BlocksScanned = int(scanned)
		result = append(result, &sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return result, nil
}

func observeQuery(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("clickhouse", operation, time.Since(start).Seconds(), *err)
}
