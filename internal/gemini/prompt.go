package gemini

import (
	"fmt"
	"strings"

	"github.com/finlens/chartoracle/internal/models"
)

// riskRewardContract is the structural contract declared to the backend in
// every prompt. The backend is asked to honor it; local validation only
// re-checks the signal enum and the numeric shape of the price fields.
const riskRewardContract = `Your response must be in JSON format.
If you provide a BUY or SELL signal, you MUST provide an entryPrice, takeProfit, and stopLoss.
The risk-to-reward ratio MUST be at least 1:3. For a BUY, (takeProfit - entryPrice) must be at least 3 * (entryPrice - stopLoss). For a SELL, (entryPrice - takeProfit) must be at least 3 * (entryPrice - stopLoss).`

// marketPrompt builds the task description for a market-data-based prediction.
// Prices are formatted with fixed precision so the model sees stable input.
func marketPrompt(instrument models.Instrument, snapshot models.MarketSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze the following market data for %s (%s).\n", instrument.Name, instrument.ID)
	b.WriteString("Act as an expert financial analyst. Provide a trading plan for the next 24 hours.\n")
	b.WriteString(riskRewardContract)
	b.WriteString("\nIf market conditions are unclear or a high RRR trade is not visible, return a 'HOLD' signal and do not include entryPrice, takeProfit, or stopLoss.\n")
	b.WriteString("\nCurrent Market Data:\n")
	fmt.Fprintf(&b, "- Price: %.5f %s\n", snapshot.Price, instrument.Quote)
	fmt.Fprintf(&b, "- 24h Change: %.5f (%.2f%%)\n", snapshot.Change, snapshot.ChangePercent)
	fmt.Fprintf(&b, "- 24h High: %.5f\n", snapshot.High)
	fmt.Fprintf(&b, "- 24h Low: %.5f\n", snapshot.Low)
	fmt.Fprintf(&b, "- 24h Volume: %.0f\n", snapshot.Volume)

	return b.String()
}

// imagePrompt builds the task description accompanying an uploaded chart
// image. The image itself travels as a separate inline-data part.
func imagePrompt(instrument models.Instrument, instructions string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze the attached trading chart image for %s (%s).\n", instrument.Name, instrument.ID)
	b.WriteString("Act as an expert technical analyst. Provide a trading plan based on the chart patterns, indicators, and market structure.\n")
	b.WriteString(riskRewardContract)
	b.WriteString("\nIf the chart is unclear or a high RRR trade is not visible, return a 'HOLD' signal and do not include entryPrice, takeProfit, or stopLoss.\n")
	fmt.Fprintf(&b, "\nUser-provided instructions: %q\n", instructions)

	return b.String()
}
