package ethsync

import (
	"math/big"
	"time"
)

type Config struct {
	FrequencyToCheckFinalizedBlock time.Duration

	// EthChainID the node must be on, nil skips the check
	EthChainID *big.Int

	// StartBlock is where new watches begin scanning. Zero means
	// LookbackBlocks below the finalized head at the first scan.
	StartBlock uint64
}
