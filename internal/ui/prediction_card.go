package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/finlens/chartoracle/internal/models"
	"github.com/finlens/chartoracle/internal/orchestrator"
)

// PredictionCard shows the current prediction slot: empty hint, spinner text,
// a trading plan, or a failure reason.
type PredictionCard struct {
	view *tview.TextView
}

// NewPredictionCard creates an empty prediction card.
func NewPredictionCard() *PredictionCard {
	view := tview.NewTextView().SetDynamicColors(true).SetWordWrap(true)
	view.SetTitle(" AI Prediction ").SetBorder(true)
	return &PredictionCard{view: view}
}

// Widget returns the tview primitive.
func (p *PredictionCard) Widget() tview.Primitive {
	return p.view
}

// Update re-renders the card from the orchestrator view.
func (p *PredictionCard) Update(view orchestrator.View) {
	switch view.Slot.State {
	case orchestrator.StateLoading:
		p.view.SetText("[yellow]Analyzing…[-]")
	case orchestrator.StateFailed:
		p.view.SetText(fmt.Sprintf("[red]%s[-]", tview.Escape(view.Slot.Reason)))
	case orchestrator.StateReady:
		p.view.SetText(renderPlan(view.Instrument, view.Slot.Prediction))
	default:
		p.view.SetText("[gray]Select an instrument or upload a chart to get a prediction.[-]")
	}
}

// renderPlan formats a prediction with signal color, price targets, and the
// model's reasoning.
func renderPlan(inst models.Instrument, prediction *models.Prediction) string {
	if prediction == nil {
		return ""
	}

	var b strings.Builder

	color := "yellow"
	switch prediction.Signal {
	case models.SignalBuy:
		color = "green"
	case models.SignalSell:
		color = "red"
	}
	fmt.Fprintf(&b, "[%s::b]%s[-:-:-]  %s\n\n", color, prediction.Signal, inst.ID)

	if prediction.HasTargets() {
		fmt.Fprintf(&b, "Entry:       %s\n", formatQuote(*prediction.EntryPrice))
		fmt.Fprintf(&b, "Take profit: %s\n", formatQuote(*prediction.TakeProfit))
		fmt.Fprintf(&b, "Stop loss:   %s\n", formatQuote(*prediction.StopLoss))
		if rr, ok := prediction.RiskReward(); ok {
			fmt.Fprintf(&b, "Reward/risk: %.1f\n", rr)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "[gray]%s[-]", tview.Escape(prediction.Reasoning))

	return b.String()
}
