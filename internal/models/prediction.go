package models

import (
	"errors"
	"fmt"
	"math"
)

// Signal is the categorical trading recommendation produced by the AI backend.
type Signal string

const (
	// SignalBuy recommends opening a long position.
	SignalBuy Signal = "BUY"
	// SignalSell recommends opening a short position.
	SignalSell Signal = "SELL"
	// SignalHold recommends staying out of the market.
	SignalHold Signal = "HOLD"
)

// ParseSignal converts a raw string into a Signal. Any value outside the
// three enumerated signals is rejected.
func ParseSignal(raw string) (Signal, error) {
	switch Signal(raw) {
	case SignalBuy, SignalSell, SignalHold:
		return Signal(raw), nil
	default:
		return "", fmt.Errorf("invalid signal %q: must be BUY, SELL, or HOLD", raw)
	}
}

// Valid reports whether s is one of the three enumerated signals.
func (s Signal) Valid() bool {
	return s == SignalBuy || s == SignalSell || s == SignalHold
}

// Actionable reports whether the signal calls for entering a trade.
func (s Signal) Actionable() bool {
	return s == SignalBuy || s == SignalSell
}

// Prediction represents a validated trading plan returned by the AI backend.
// The three price fields are pointers so that "absent because HOLD" and
// "absent because the backend sent something malformed" are both representable
// without ambiguity. By contract all three are expected together for BUY/SELL
// and omitted for HOLD, but a response violating that expectation is still
// accepted (the validator is lenient on the numeric fields).
//
// Predictions are immutable once constructed and superseded, not merged, by
// the next request's result.
type Prediction struct {
	Signal     Signal   `json:"signal"`
	EntryPrice *float64 `json:"entryPrice,omitempty"`
	TakeProfit *float64 `json:"takeProfit,omitempty"`
	StopLoss   *float64 `json:"stopLoss,omitempty"`
	Reasoning  string   `json:"reasoning"`
}

// Validate checks that the prediction carries a valid signal and reasoning.
// The numeric fields are deliberately not checked against the signal.
func (p *Prediction) Validate() error {
	if !p.Signal.Valid() {
		return fmt.Errorf("invalid signal %q: must be BUY, SELL, or HOLD", string(p.Signal))
	}
	if p.Reasoning == "" {
		return errors.New("reasoning must not be empty")
	}
	return nil
}

// HasTargets reports whether all three price fields are present.
func (p *Prediction) HasTargets() bool {
	return p.EntryPrice != nil && p.TakeProfit != nil && p.StopLoss != nil
}

// RiskReward returns the reward-to-risk ratio |takeProfit - entryPrice| /
// |entryPrice - stopLoss|. The second return value is false when the targets
// are incomplete or the risk is zero.
func (p *Prediction) RiskReward() (float64, bool) {
	if !p.HasTargets() {
		return 0, false
	}
	risk := math.Abs(*p.EntryPrice - *p.StopLoss)
	if risk == 0 {
		return 0, false
	}
	return math.Abs(*p.TakeProfit-*p.EntryPrice) / risk, true
}
