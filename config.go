package txpool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Config recognizes the options of spec §6, with defaults matching the
// teacher's legacypool.Config.sanitize.
type Config struct {
	MaxPoolCount            uint64 // global transaction count limit
	MaxPoolSizeBytes        uint64 // global encoded-size limit
	MaxPerSenderCount       uint64 // per-sender transaction count limit
	PriceBumpPercent        uint64 // replacement bump, default 10
	BlobPoolMaxCount        uint64 // blob sub-pool transaction count limit
	BlobPoolMaxSize         uint64 // blob sub-pool byte-size limit
	MinProtocolBaseFee      *uint256.Int
	ListenerChannelCapacity int
}

// DefaultConfig mirrors go-ethereum's default legacypool/blobpool tunables
// in spirit, scaled down to values convenient for an in-memory test harness
// and small-to-mid-size deployments alike.
var DefaultConfig = Config{
	MaxPoolCount:            10000,
	MaxPoolSizeBytes:        512 * 1024 * 1024,
	MaxPerSenderCount:       64,
	PriceBumpPercent:        10,
	BlobPoolMaxCount:        2048,
	BlobPoolMaxSize:         256 * 1024 * 1024,
	MinProtocolBaseFee:      uint256.NewInt(1),
	ListenerChannelCapacity: 16,
}

// sanitize fills in zero-valued fields with DefaultConfig's values, the way
// legacypool.Config.sanitize guards against a caller-supplied zero Config.
func (c Config) sanitize() Config {
	cfg := c
	if cfg.MaxPoolCount == 0 {
		cfg.MaxPoolCount = DefaultConfig.MaxPoolCount
	}
	if cfg.MaxPoolSizeBytes == 0 {
		cfg.MaxPoolSizeBytes = DefaultConfig.MaxPoolSizeBytes
	}
	if cfg.MaxPerSenderCount == 0 {
		cfg.MaxPerSenderCount = DefaultConfig.MaxPerSenderCount
	}
	if cfg.PriceBumpPercent == 0 {
		cfg.PriceBumpPercent = DefaultConfig.PriceBumpPercent
	}
	if cfg.BlobPoolMaxCount == 0 {
		cfg.BlobPoolMaxCount = DefaultConfig.BlobPoolMaxCount
	}
	if cfg.BlobPoolMaxSize == 0 {
		cfg.BlobPoolMaxSize = DefaultConfig.BlobPoolMaxSize
	}
	if cfg.MinProtocolBaseFee == nil {
		cfg.MinProtocolBaseFee = DefaultConfig.MinProtocolBaseFee
	}
	if cfg.ListenerChannelCapacity == 0 {
		cfg.ListenerChannelCapacity = DefaultConfig.ListenerChannelCapacity
	}
	return cfg
}

// BlockInfo is the pool's atomic snapshot of the chain tip it is tracking,
// per spec §3.
type BlockInfo struct {
	Hash           common.Hash
	Number         uint64
	GasLimit       uint64
	PendingBaseFee *uint256.Int
	PendingBlobFee *uint256.Int // nil pre-Cancun
}
