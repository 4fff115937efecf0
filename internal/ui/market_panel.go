package ui

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/finlens/chartoracle/internal/orchestrator"
)

// MarketPanel displays the latest market snapshot for the selected instrument.
type MarketPanel struct {
	table *tview.Table
}

// NewMarketPanel creates an empty market data panel.
func NewMarketPanel() *MarketPanel {
	table := tview.NewTable().SetBorders(false)
	table.SetTitle(" Market Data ").SetBorder(true)
	return &MarketPanel{table: table}
}

// Widget returns the tview primitive.
func (p *MarketPanel) Widget() tview.Primitive {
	return p.table
}

// Update re-renders the panel from the orchestrator view.
func (p *MarketPanel) Update(view orchestrator.View) {
	p.table.Clear()
	p.table.SetTitle(fmt.Sprintf(" Market Data: %s ", view.Instrument.Name))

	if view.SnapshotLoading {
		p.setRow(0, "Status", "loading…")
		return
	}
	if view.Snapshot == nil {
		p.setRow(0, "Status", "no data")
		return
	}

	snap := view.Snapshot
	quote := view.Instrument.Quote

	p.setRow(0, "Price", fmt.Sprintf("%s %s", formatQuote(snap.Price), quote))
	changeCell := fmt.Sprintf("%s (%.2f%%)", formatQuote(snap.Change), snap.ChangePercent)
	if snap.Change >= 0 {
		changeCell = "[green]" + changeCell
	} else {
		changeCell = "[red]" + changeCell
	}
	p.setRow(1, "24h Change", changeCell)
	p.setRow(2, "24h High", formatQuote(snap.High))
	p.setRow(3, "24h Low", formatQuote(snap.Low))
	p.setRow(4, "24h Volume", fmt.Sprintf("%.0f", snap.Volume))
}

func (p *MarketPanel) setRow(row int, label, value string) {
	p.table.SetCell(row, 0, tview.NewTableCell(label).
		SetTextColor(tview.Styles.SecondaryTextColor).
		SetSelectable(false))
	p.table.SetCell(row, 1, tview.NewTableCell(value).
		SetAlign(tview.AlignRight).
		SetExpansion(1).
		SetSelectable(false))
}

// formatQuote renders forex-scale values with five decimals and everything
// else with two.
func formatQuote(v float64) string {
	if v > -10 && v < 10 {
		return fmt.Sprintf("%.5f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
