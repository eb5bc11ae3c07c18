package settlementservice

import (
	"bytes"
	"fmt"

	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	creditColor  = drawing.ColorFromHex("2e7d32")
	debitColor   = drawing.ColorFromHex("c62828")
	balanceColor = drawing.ColorFromHex("1565c0")
)

// renderEscrowChart draws the ledger totals as a PNG bar chart for the
// summary sheet. It returns nil when nothing has been booked, since a bar
// chart cannot scale an all-zero range.
func renderEscrowChart(totals ledgerdb.EscrowTotals) ([]byte, error) {
	if totals.EntryFees == 0 && totals.TopUps == 0 && totals.Payouts == 0 && totals.Refunds == 0 {
		return nil, nil
	}
	bar := func(label string, amount int64, color drawing.Color) chart.Value {
		return chart.Value{
			Label: label,
			Value: float64(amount),
			Style: chart.Style{FillColor: color, StrokeColor: color},
		}
	}

	graph := chart.BarChart{
		Title:    "Escrow position",
		Width:    640,
		Height:   360,
		BarWidth: 70,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		Bars: []chart.Value{
			bar("Entry fees", totals.EntryFees, creditColor),
			bar("Top-ups", totals.TopUps, creditColor),
			bar("Payouts", totals.Payouts, debitColor),
			bar("Refunds", totals.Refunds, debitColor),
			bar("Balance", max(totals.Balance(), 0), balanceColor),
		},
	}

	buf := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("failed to render escrow chart: %w", err)
	}
	return buf.Bytes(), nil
}
