// Package config reads the node's runtime configuration through gocore's
// key/value accessor, the way services/blockchain/Server.go reads
// "difficulty_adjustment_window" and util/logger.go reads "PRETTY_LOGS".
package config

import (
	"github.com/ordishs/gocore"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/model"
)

// ConsensusConfig mirrors model.ConsensusConfig but is the shape read from
// the environment/config file before being validated into the model type.
type ConsensusConfig struct {
	K             uint64
	Alpha         uint64
	Beta1         *uint64
	Beta2         *uint64
	MaxRetries    *uint32
	TimeoutSecs   *uint64
	StoreMessages *bool
}

// Defaults used when a field is absent from configuration, matching the
// original source's ConsensusConfig::populate().
const (
	DefaultK          = uint64(1)
	DefaultAlpha      = uint64(1)
	DefaultBeta1      = uint64(1)
	DefaultBeta2      = uint64(2)
	DefaultMaxRetries = uint32(3)
	DefaultTimeout    = uint64(5)
)

// Load reads the ConsensusConfig from gocore.Config(), falling back to the
// package defaults for anything unset.
func Load() (*ConsensusConfig, error) {
	k, _ := gocore.Config().GetInt("consensus_k", int(DefaultK))
	alpha, _ := gocore.Config().GetInt("consensus_alpha", int(DefaultAlpha))
	beta1, _ := gocore.Config().GetInt("consensus_beta1", int(DefaultBeta1))
	beta2, _ := gocore.Config().GetInt("consensus_beta2", int(DefaultBeta2))
	maxRetries, _ := gocore.Config().GetInt("consensus_max_retries", int(DefaultMaxRetries))
	timeout, _ := gocore.Config().GetInt("consensus_timeout_secs", int(DefaultTimeout))
	storeMessages := gocore.Config().GetBool("consensus_store_messages", false)

	b1 := uint64(beta1)
	b2 := uint64(beta2)
	mr := uint32(maxRetries)
	to := uint64(timeout)

	cfg := &ConsensusConfig{
		K:             uint64(k),
		Alpha:         uint64(alpha),
		Beta1:         &b1,
		Beta2:         &b2,
		MaxRetries:    &mr,
		TimeoutSecs:   &to,
		StoreMessages: &storeMessages,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces alpha <= k (spec.md §3 ConsensusConfig invariant).
func (c *ConsensusConfig) Validate() error {
	if c.Alpha > c.K {
		return errors.New(errors.ERR_INVALID_MESSAGE, "alpha must be <= k")
	}
	return nil
}

// ToModel converts the loaded configuration into the domain model type
// used by the protocol state.
func (c *ConsensusConfig) ToModel() model.ConsensusConfig {
	return model.ConsensusConfig{
		K:             c.K,
		Alpha:         c.Alpha,
		Beta1:         c.Beta1,
		Beta2:         c.Beta2,
		MaxRetries:    c.MaxRetries,
		Timeout:       c.TimeoutSecs,
		StoreMessages: c.StoreMessages,
	}
}

// Stage returns the configured stage, defaulting to Development.
func Stage() model.Stage {
	stage, _ := gocore.Config().Get("stage", "development")
	switch stage {
	case "testing":
		return model.StageTesting
	case "production":
		return model.StageProduction
	default:
		return model.StageDevelopment
	}
}

// LocalAddress returns the node's local transport address (host:port),
// read from configuration.
func LocalAddress() string {
	addr, _ := gocore.Config().Get("local_address", "127.0.0.1:4000")
	return addr
}

// SeedAddresses returns the static seed peer set the node bootstraps from.
func SeedAddresses() []string {
	return gocore.Config().GetMulti("seed_addresses", ",", nil)
}

// StoreDir and PoolDir return the on-disk leveldb directories for the
// accepted store and the hot pool, respectively.
func StoreDir() string {
	dir, _ := gocore.Config().Get("store_dir", "./data/store")
	return dir
}

func PoolDir() string {
	dir, _ := gocore.Config().Get("pool_dir", "./data/pool")
	return dir
}

// BalloonParams returns the mining Balloon hashing parameters.
func BalloonParams() model.BalloonParams {
	sCost, _ := gocore.Config().GetInt("balloon_s_cost", 16)
	tCost, _ := gocore.Config().GetInt("balloon_t_cost", 4)
	delta, _ := gocore.Config().GetInt("balloon_delta", 4)

	return model.BalloonParams{
		SCost: uint32(sCost),
		TCost: uint32(tCost),
		Delta: uint32(delta),
	}
}
