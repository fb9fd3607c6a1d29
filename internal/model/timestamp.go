package model

import (
	"time"

	"github.com/alsacoin/avalanche-node/internal/errors"
)

// MinDatetime is the floor below which no Timestamp may fall.
var MinDatetime = time.Date(2019, time.July, 25, 0, 0, 0, 0, time.UTC)

// MaxClockSkew is the tolerance allowed past "now" for a Timestamp to still
// validate, guarding against forward-dated messages.
const MaxClockSkew = 3600 * time.Second

// Timestamp wraps a UTC instant with the node's validity window.
type Timestamp struct {
	time.Time
}

func Now() Timestamp {
	return Timestamp{time.Now().UTC()}
}

func TimestampFromUnix(sec int64) Timestamp {
	return Timestamp{time.Unix(sec, 0).UTC()}
}

func (t Timestamp) Unix() int64 {
	return t.Time.Unix()
}

// Validate enforces the MIN_DATETIME floor and the ±3600s clock-skew
// ceiling against the current instant.
func (t Timestamp) Validate() error {
	if t.Time.Before(MinDatetime) {
		return errors.New(errors.ERR_INVALID_MESSAGE, "timestamp %s before minimum %s", t.Time, MinDatetime)
	}

	if t.Time.After(time.Now().UTC().Add(MaxClockSkew)) {
		return errors.New(errors.ERR_INVALID_MESSAGE, "timestamp %s too far in the future", t.Time)
	}

	return nil
}

// Before reports strict precedence, used for the ancestor
// strictly-smaller-in-time invariant.
func (t Timestamp) Before(o Timestamp) bool {
	return t.Time.Before(o.Time)
}

func (t Timestamp) MarshalBinary() ([]byte, error) {
	return t.Time.MarshalBinary()
}

func (t *Timestamp) UnmarshalBinary(data []byte) error {
	return t.Time.UnmarshalBinary(data)
}
