package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInsufficientData = errors.New("insufficient price data")
	ErrRateLimited      = errors.New("rate limited")
	ErrLockHeld         = errors.New("lock already held")
	ErrContextDone      = errors.New("context cancelled")
)

// LimitReason is the subtype of a gate rejection.
type LimitReason string

const (
	LimitCooldown    LimitReason = "cooldown"
	LimitExposure    LimitReason = "exposure"
	LimitDailyVolume LimitReason = "daily_volume"
	LimitTradeSize   LimitReason = "trade_size"
)

// LimitError is returned by the gate when a candidate is rejected. Callers can
// switch on Reason to handle every rejection subtype exhaustively.
type LimitError struct {
	Reason LimitReason
	Detail string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit exceeded (%s): %s", e.Reason, e.Detail)
}

// IsLimitError reports whether err is a gate rejection, returning the typed
// error when it is.
func IsLimitError(err error) (*LimitError, bool) {
	var le *LimitError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
