package model

import "github.com/alsacoin/avalanche-node/internal/errors"

// Stage namespaces every stored key; cross-stage reads are impossible by
// construction because the stage byte is always the first key component.
type Stage uint8

const (
	StageDevelopment Stage = iota
	StageTesting
	StageProduction
)

func (s Stage) String() string {
	switch s {
	case StageDevelopment:
		return "development"
	case StageTesting:
		return "testing"
	case StageProduction:
		return "production"
	default:
		return "unknown"
	}
}

// Byte returns the single-byte key prefix for this stage.
func (s Stage) Byte() byte {
	return byte(s)
}

func (s Stage) Validate() error {
	switch s {
	case StageDevelopment, StageTesting, StageProduction:
		return nil
	default:
		return errors.New(errors.ERR_INVALID_STAGE, "unknown stage %d", s)
	}
}
