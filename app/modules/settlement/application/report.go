package settlementservice

import (
	"context"
	"fmt"
	"time"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the settlement workbook.
const (
	SheetSummary = "Summary"
	SheetPayouts = "Payouts"
	SheetRefunds = "Refunds"
	SheetLedger  = "Ledger"
)

// SettlementReport renders the tournament's escrow position, payouts,
// refunds and ledger entries as an XLSX workbook for reconciliation.
func (s *Service) SettlementReport(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID) ([]byte, error) {
	if denied := requireAdmin(actor); denied != nil {
		return nil, denied
	}
	result, err := telemetry.Run(ctx, s.instruments(), "SettlementReport", tournamentID.String(), func(ctx context.Context) (results.OperationResult[[]byte, error], error) {
		db := s.idb()
		t, denied, err := s.loadTournament(ctx, db, tournamentID, false)
		if err != nil {
			return infra[[]byte](err)
		}
		if denied != nil {
			return fail[[]byte](denied)
		}
		payouts, err := s.repo.ListPayouts(ctx, db, tournamentID, nil)
		if err != nil {
			return infra[[]byte](fmt.Errorf("failed to list payouts: %w", err))
		}
		refunds, err := s.book.Ledger().ListRefunds(ctx, db, tournamentID)
		if err != nil {
			return infra[[]byte](fmt.Errorf("failed to list refunds: %w", err))
		}
		entries, err := s.book.Ledger().ListEntries(ctx, db, tournamentID)
		if err != nil {
			return infra[[]byte](fmt.Errorf("failed to list ledger entries: %w", err))
		}
		totals, err := s.book.Ledger().Totals(ctx, db, tournamentID)
		if err != nil {
			return infra[[]byte](fmt.Errorf("failed to total ledger: %w", err))
		}

		data, err := renderReport(t, totals, payouts, refunds, entries, s.now())
		if err != nil {
			return infra[[]byte](err)
		}
		return results.SuccessResult[[]byte, error](data), nil
	})
	return telemetry.Unwrap(result, err)
}

func renderReport(
	t *tournamentdb.Tournament,
	totals ledgerdb.EscrowTotals,
	payouts []settlementdb.Payout,
	refunds []ledgerdb.Refund,
	entries []ledgerdb.EscrowEntry,
	generatedAt time.Time,
) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}
	summary := [][]any{
		{"Tournament", t.Name},
		{"Tournament ID", t.ID.String()},
		{"Status", string(t.Status)},
		{"Currency", t.Currency},
		{"Entry fees collected", t.EscrowCollected},
		{"Organizer top-ups", t.EscrowTopUp},
		{"Entry fees refunded", t.EscrowRefunded},
		{"Released to winners", t.EscrowReleased},
		{"Escrowed total", t.EscrowedTotal()},
		{"Ledger balance", totals.Balance()},
		{"Generated at", generatedAt.Format(time.RFC3339)},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return nil, err
	}
	png, err := renderEscrowChart(totals)
	if err != nil {
		return nil, err
	}
	if png != nil {
		if err := f.AddPictureFromBytes(SheetSummary, "D2", &excelize.Picture{
			Extension: ".png",
			File:      png,
			Format:    &excelize.GraphicOptions{AltText: "Escrow position", ScaleX: 0.8, ScaleY: 0.8},
		}); err != nil {
			return nil, fmt.Errorf("failed to embed escrow chart: %w", err)
		}
	}

	payoutRows := [][]any{{"Payout ID", "Match ID", "Registration ID", "Recipient ID", "Gross", "Fee", "Net", "Status", "Attempts", "Transfer reference", "Failure reason"}}
	for _, p := range payouts {
		payoutRows = append(payoutRows, []any{
			p.ID.String(), p.MatchID.String(), p.RegistrationID.String(), p.RecipientID.String(),
			p.GrossAmount, p.PlatformFee, p.NetAmount, string(p.Status), p.Attempts,
			deref(p.TransferReference), deref(p.FailureReason),
		})
	}

	refundRows := [][]any{{"Refund ID", "Registration ID", "Participant ID", "Payment reference", "Amount", "From escrow", "Status", "Attempts", "Reason", "Gateway refund ID"}}
	for _, r := range refunds {
		refundRows = append(refundRows, []any{
			r.ID.String(), r.RegistrationID.String(), r.ParticipantID.String(), r.PaymentReference,
			r.Amount, r.FromEscrow, string(r.Status), r.Attempts, r.Reason, deref(r.GatewayRefundID),
		})
	}

	ledgerRows := [][]any{{"Entry ID", "Kind", "Amount", "Reference ID", "Booked at"}}
	for _, e := range entries {
		ledgerRows = append(ledgerRows, []any{
			e.ID.String(), string(e.Kind), e.Amount, e.ReferenceID.String(), e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	for _, sheet := range []struct {
		name string
		rows [][]any
	}{
		{SheetPayouts, payoutRows},
		{SheetRefunds, refundRows},
		{SheetLedger, ledgerRows},
	} {
		if _, err := f.NewSheet(sheet.name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %q: %w", sheet.name, err)
		}
		if err := writeRows(f, sheet.name, sheet.rows); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
