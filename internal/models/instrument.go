// Package models defines the core domain entities for the chartoracle application.
// These models represent tradable instruments, market snapshots, AI-generated
// trading plans, and saved chart analyses. All models include built-in validation
// to ensure data integrity throughout the application.
//
// Terminology:
//   - Instrument: a tradable market identity (currency pair or asset) from the catalog.
//   - Snapshot: a point-in-time set of market statistics for one instrument.
//   - Prediction: a trading plan (signal plus optional price targets and reasoning).
//   - SavedImage: a user-confirmed chart analysis persisted in the gallery.
package models

import "errors"

// Instrument represents a single tradable market identity. Instruments are
// defined once at process start in the catalog and never change afterwards.
type Instrument struct {
	ID    string `json:"id"`    // Unique, stable identifier, e.g. "BTCUSD"
	Name  string `json:"name"`  // Display name, e.g. "Bitcoin"
	Base  string `json:"base"`  // Base symbol, e.g. "BTC"
	Quote string `json:"quote"` // Quote symbol, e.g. "USD"
}

// Validate checks that all instrument fields are valid.
func (i *Instrument) Validate() error {
	if i.ID == "" {
		return errors.New("instrument ID must not be empty")
	}
	if i.Name == "" {
		return errors.New("instrument name must not be empty")
	}
	if i.Base == "" {
		return errors.New("instrument base symbol must not be empty")
	}
	if i.Quote == "" {
		return errors.New("instrument quote symbol must not be empty")
	}
	return nil
}
