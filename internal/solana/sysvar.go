package solana

import (
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"solana-wallet-engine/internal/domain"
)

// Clock mirrors the Clock sysvar account data.
type Clock struct {
	Slot                uint64
	EpochStartTimestamp int64
	Epoch               uint64
	LeaderScheduleEpoch uint64
	UnixTimestamp       int64
}

// DecodeClock decodes base64 Clock sysvar data as returned by getAccountInfo.
func DecodeClock(data string) (*Clock, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, &domain.ProtocolError{Op: "getAccountInfo", Err: fmt.Errorf("decode clock data: %w", err)}
	}
	var clock Clock
	if err := bin.NewBinDecoder(raw).Decode(&clock); err != nil {
		return nil, &domain.ProtocolError{Op: "getAccountInfo", Err: fmt.Errorf("decode clock sysvar: %w", err)}
	}
	return &clock, nil
}
