// Package catalog holds the static list of tradable instruments shown on the
// dashboard. The catalog is defined once at process start and is immutable for
// the process lifetime.
package catalog

import (
	"fmt"

	"github.com/finlens/chartoracle/internal/models"
)

// Catalog is an immutable, ordered collection of instruments.
type Catalog struct {
	instruments []models.Instrument
	byID        map[string]models.Instrument
}

// Default returns the built-in instrument catalog.
func Default() *Catalog {
	return New([]models.Instrument{
		{ID: "BTCUSD", Name: "Bitcoin", Base: "BTC", Quote: "USD"},
		{ID: "ETHUSD", Name: "Ethereum", Base: "ETH", Quote: "USD"},
		{ID: "XAUUSD", Name: "Gold", Base: "XAU", Quote: "USD"},
		{ID: "EURUSD", Name: "EUR/USD", Base: "EUR", Quote: "USD"},
		{ID: "GBPUSD", Name: "GBP/USD", Base: "GBP", Quote: "USD"},
	})
}

// New builds a catalog from the given instruments, preserving their order.
func New(instruments []models.Instrument) *Catalog {
	c := &Catalog{
		instruments: make([]models.Instrument, len(instruments)),
		byID:        make(map[string]models.Instrument, len(instruments)),
	}
	copy(c.instruments, instruments)
	for _, inst := range instruments {
		c.byID[inst.ID] = inst
	}
	return c
}

// Instruments returns all instruments in catalog order.
func (c *Catalog) Instruments() []models.Instrument {
	out := make([]models.Instrument, len(c.instruments))
	copy(out, c.instruments)
	return out
}

// Lookup returns the instrument with the given ID.
func (c *Catalog) Lookup(id string) (models.Instrument, error) {
	inst, ok := c.byID[id]
	if !ok {
		return models.Instrument{}, fmt.Errorf("unknown instrument: %s", id)
	}
	return inst, nil
}

// First returns the first instrument in catalog order, which is the default
// selection on startup.
func (c *Catalog) First() models.Instrument {
	return c.instruments[0]
}

// Len returns the number of instruments in the catalog.
func (c *Catalog) Len() int {
	return len(c.instruments)
}
