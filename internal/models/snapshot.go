package models

import "errors"

// MarketSnapshot represents a point-in-time set of market statistics for one
// instrument. Snapshots are value objects: created fresh per fetch, never
// mutated, and discarded when superseded by the next fetch.
type MarketSnapshot struct {
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`         // Absolute 24h change in quote units
	ChangePercent float64 `json:"change_percent"` // 24h change relative to open, in percent
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume"`
}

// Validate checks that the snapshot fields are internally consistent.
// High must cover both the open and the current price, and low must sit
// below both; the open is reconstructed as price - change.
func (s *MarketSnapshot) Validate() error {
	if s.Price <= 0 {
		return errors.New("price must be positive")
	}
	open := s.Price - s.Change
	if s.High < s.Price || s.High < open {
		return errors.New("high must be >= max(open, price)")
	}
	if s.Low > s.Price || s.Low > open {
		return errors.New("low must be <= min(open, price)")
	}
	if s.Volume < 0 {
		return errors.New("volume must not be negative")
	}
	return nil
}

// Open reconstructs the 24h open price from price and change.
func (s *MarketSnapshot) Open() float64 {
	return s.Price - s.Change
}
