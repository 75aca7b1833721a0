package domain

// ThroughputSample is one recorded throughput estimate.
// Corresponds to throughput_samples table in ClickHouse.
type ThroughputSample struct {
	HeadSlot         uint64  // slot the backward walk started from
	WindowSeconds    int64   // requested window
	NewestTimestamp  int64   // block time of the head block (Unix seconds)
	OldestTimestamp  int64   // block time of the stopping block (Unix seconds)
	UserTransactions uint64  // user-originated transactions counted
	VoteTransactions uint64  // vote-only transactions counted
	BlocksScanned    int     // blocks classified
	Rate             float64 // user transactions per second, always finite and >= 0
	RecordedAt       int64   // Unix timestamp in milliseconds
}
