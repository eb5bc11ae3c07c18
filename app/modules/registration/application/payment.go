package registrationservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	paymentgateway "github.com/Black-And-White-Club/tourney-settlement/app/modules/payment/infrastructure/gateway"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const latePaymentReason = "payment captured after the reservation was lost"

// VerifyPaymentRequest is the checkout callback a participant forwards.
type VerifyPaymentRequest struct {
	RegistrationID uuid.UUID
	OrderID        string
	PaymentID      string
	Signature      string
}

// PaymentResult is the registration state after a verified payment.
type PaymentResult struct {
	RegistrationID uuid.UUID                 `json:"registration_id"`
	Status         registrationdomain.Status `json:"status"`
	SlotNumber     *int                      `json:"slot_number,omitempty"`
}

// WebhookOutcome reports what a gateway notification did. Code is set when
// the payment was genuine but could not confirm the registration.
type WebhookOutcome struct {
	Ignored        bool                      `json:"ignored"`
	RegistrationID *uuid.UUID                `json:"registration_id,omitempty"`
	Status         registrationdomain.Status `json:"status,omitempty"`
	Code           apperr.Code               `json:"code,omitempty"`
}

// capture is a payment the gateway vouched for.
type capture struct {
	registrationID uuid.UUID
	paymentID      string
	// amount is nil when the source does not report one.
	amount *int64
}

// paymentOutcome is what the confirmation transaction commits.
type paymentOutcome struct {
	registration *registrationdb.Registration
	closed       *tournamentdb.Tournament
	refund       *ledgerdb.Refund
	replay       bool
	// failure is returned to the caller after the writes commit.
	failure error
}

// VerifyPayment checks a checkout callback and confirms the registration.
func (s *Service) VerifyPayment(ctx context.Context, actor authdomain.Principal, req VerifyPaymentRequest) (*PaymentResult, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "VerifyPayment", req.RegistrationID.String(), func(ctx context.Context) (results.OperationResult[*PaymentResult, error], error) {
		return s.verifyPaymentLogic(ctx, actor, req)
	})
	return telemetry.Unwrap(result, err)
}

func (s *Service) verifyPaymentLogic(ctx context.Context, actor authdomain.Principal, req VerifyPaymentRequest) (results.OperationResult[*PaymentResult, error], error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return results.FailureResult[*PaymentResult, error](apperr.Validation("order_id, payment_id and signature are required")), nil
	}
	reg, err := s.repo.GetByID(ctx, s.idb(), req.RegistrationID)
	if err != nil {
		if errors.Is(err, registrationdb.ErrNotFound) {
			return results.FailureResult[*PaymentResult, error](apperr.NotFound("registration %s not found", req.RegistrationID)), nil
		}
		return results.OperationResult[*PaymentResult, error]{}, fmt.Errorf("failed to get registration: %w", err)
	}
	if !actor.Owns(reg.ParticipantID) {
		return results.FailureResult[*PaymentResult, error](apperr.Forbidden("registration belongs to another participant")), nil
	}

	if reg.PaymentOrderID == nil || *reg.PaymentOrderID != req.OrderID {
		s.securityEvent(ctx, "callback", reg.ID, "order id does not match registration")
		return results.FailureResult[*PaymentResult, error](apperr.New(apperr.CodePaymentVerification, "order does not belong to this registration")), nil
	}
	if !s.gateway.VerifyCallback(req.OrderID, req.PaymentID, req.Signature) {
		s.securityEvent(ctx, "callback", reg.ID, "signature mismatch")
		return results.FailureResult[*PaymentResult, error](apperr.New(apperr.CodePaymentVerification, "payment signature did not verify")), nil
	}

	return s.settlePayment(ctx, capture{registrationID: reg.ID, paymentID: req.PaymentID}, actor.ActorID())
}

// ConfirmCapturedPayment applies a signed gateway webhook. Events other than
// payment.captured and unknown orders are acknowledged and ignored.
func (s *Service) ConfirmCapturedPayment(ctx context.Context, body []byte, signature string) (*WebhookOutcome, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "ConfirmCapturedPayment", "webhook", func(ctx context.Context) (results.OperationResult[*WebhookOutcome, error], error) {
		return s.confirmCapturedPaymentLogic(ctx, body, signature)
	})
	return telemetry.Unwrap(result, err)
}

func (s *Service) confirmCapturedPaymentLogic(ctx context.Context, body []byte, signature string) (results.OperationResult[*WebhookOutcome, error], error) {
	if !s.gateway.VerifyWebhook(body, signature) {
		s.securityEvent(ctx, "webhook", uuid.Nil, "signature mismatch")
		return results.FailureResult[*WebhookOutcome, error](apperr.New(apperr.CodePaymentVerification, "webhook signature did not verify")), nil
	}
	captured, ok, err := paymentgateway.ParseWebhook(body)
	if err != nil {
		return results.FailureResult[*WebhookOutcome, error](apperr.Wrap(apperr.CodeValidation, "malformed webhook", err)), nil
	}
	if !ok {
		return results.SuccessResult[*WebhookOutcome, error](&WebhookOutcome{Ignored: true}), nil
	}

	reg, err := s.repo.GetByOrderID(ctx, s.idb(), captured.OrderID)
	if err != nil {
		if errors.Is(err, registrationdb.ErrNotFound) {
			s.logger.WarnContext(ctx, "Captured payment for unknown order",
				attr.ExtractCorrelationID(ctx),
				attr.String("order_id", captured.OrderID),
				attr.String("payment_id", captured.PaymentID),
			)
			return results.SuccessResult[*WebhookOutcome, error](&WebhookOutcome{Ignored: true}), nil
		}
		return results.OperationResult[*WebhookOutcome, error]{}, fmt.Errorf("failed to find registration by order: %w", err)
	}

	amount := captured.Amount
	settled, err := s.settlePayment(ctx, capture{registrationID: reg.ID, paymentID: captured.PaymentID, amount: &amount}, nil)
	if err != nil {
		return results.OperationResult[*WebhookOutcome, error]{}, err
	}
	out := &WebhookOutcome{RegistrationID: &reg.ID}
	if settled.IsFailure() {
		out.Code = apperr.CodeOf(*settled.Failure)
		return results.SuccessResult[*WebhookOutcome, error](out), nil
	}
	out.Status = (*settled.Success).Status
	return results.SuccessResult[*WebhookOutcome, error](out), nil
}

func (s *Service) securityEvent(ctx context.Context, source string, registrationID uuid.UUID, reason string) {
	s.metrics.RecordSignatureFailure(ctx, source)
	s.logger.WarnContext(ctx, "Payment verification rejected",
		attr.ExtractCorrelationID(ctx),
		attr.Bool("security_event", true),
		attr.String("source", source),
		attr.UUID("registration_id", registrationID),
		attr.String("reason", reason),
	)
}

// settlePayment runs the confirmation transaction for a verified capture and
// publishes what it committed.
func (s *Service) settlePayment(ctx context.Context, c capture, actorID *uuid.UUID) (results.OperationResult[*PaymentResult, error], error) {
	now := s.now()
	committed, err := ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*paymentOutcome, error], error) {
		return s.confirmPaymentLogic(ctx, db, c, actorID)
	})
	if err != nil {
		return results.OperationResult[*PaymentResult, error]{}, err
	}
	if committed.IsFailure() {
		return results.FailureResult[*PaymentResult, error](*committed.Failure), nil
	}
	out := *committed.Success

	var evts []eventbus.Event
	if out.refund != nil {
		evts = append(evts, refundEvent(out.refund))
	}
	if out.failure == nil && !out.replay {
		evts = append(evts, confirmedEvent(out.registration))
		if out.closed != nil {
			evts = append(evts, tournamentClosedEvent(out.closed, now))
		}
	}
	s.publish(ctx, evts...)
	s.scheduleRefund(ctx, out.refund)

	if out.failure != nil {
		return results.FailureResult[*PaymentResult, error](out.failure), nil
	}
	reg := out.registration
	return results.SuccessResult[*PaymentResult, error](&PaymentResult{
		RegistrationID: reg.ID,
		Status:         reg.Status,
		SlotNumber:     reg.SlotNumber,
	}), nil
}

func (s *Service) confirmPaymentLogic(ctx context.Context, db bun.IDB, c capture, actorID *uuid.UUID) (results.OperationResult[*paymentOutcome, error], error) {
	unlocked, err := s.repo.GetByID(ctx, db, c.registrationID)
	if err != nil {
		if errors.Is(err, registrationdb.ErrNotFound) {
			return results.FailureResult[*paymentOutcome, error](apperr.NotFound("registration %s not found", c.registrationID)), nil
		}
		return results.OperationResult[*paymentOutcome, error]{}, fmt.Errorf("failed to get registration: %w", err)
	}

	// Tournament first, then registration: the same order as every other
	// writer of these rows.
	t, err := s.tournaments.GetForUpdate(ctx, db, unlocked.TournamentID)
	if err != nil {
		return results.OperationResult[*paymentOutcome, error]{}, fmt.Errorf("failed to lock tournament: %w", err)
	}
	reg, err := s.repo.GetForUpdate(ctx, db, c.registrationID)
	if err != nil {
		return results.OperationResult[*paymentOutcome, error]{}, fmt.Errorf("failed to lock registration: %w", err)
	}

	if c.amount != nil && *c.amount != t.EntryFee {
		s.securityEvent(ctx, "amount", reg.ID, fmt.Sprintf("captured %d, entry fee %d", *c.amount, t.EntryFee))
		return results.FailureResult[*paymentOutcome, error](apperr.Newf(apperr.CodePaymentVerification, "captured amount %d does not match entry fee %d", *c.amount, t.EntryFee)), nil
	}
	amount := t.EntryFee
	now := s.now()

	switch {
	case reg.Status == registrationdomain.StatusConfirmed:
		if reg.PaymentReference != nil && *reg.PaymentReference == c.paymentID {
			return results.SuccessResult[*paymentOutcome, error](&paymentOutcome{registration: reg, replay: true}), nil
		}
		return results.FailureResult[*paymentOutcome, error](apperr.New(apperr.CodeConflict, "registration is already confirmed with a different payment")), nil

	case reg.Status.IsPending():
		if reg.PaymentCaptured() {
			return s.lateReplay(reg, c.paymentID, apperr.InvalidState("tournament is %s, payment can no longer confirm a slot", t.Status))
		}
		if t.Status != tournamentdomain.StatusRegistrationOpen && t.Status != tournamentdomain.StatusRegistrationClosed {
			return s.refundLatePayment(ctx, db, t, reg, c.paymentID, amount, actorID,
				apperr.InvalidState("tournament is %s, payment can no longer confirm a slot", t.Status))
		}
		confirmed, err := s.confirmSlot(ctx, db, t, reg, c.paymentID, amount, now, actorID)
		if err != nil {
			return results.OperationResult[*paymentOutcome, error]{}, err
		}
		return results.SuccessResult[*paymentOutcome, error](&paymentOutcome{registration: confirmed.registration, closed: confirmed.closed}), nil

	case reg.Status == registrationdomain.StatusExpired:
		if reg.PaymentCaptured() {
			return s.lateReplay(reg, c.paymentID, apperr.New(apperr.CodeCapacityExceeded, "reservation expired before payment; the fee is being refunded"))
		}
		if t.Status == tournamentdomain.StatusRegistrationOpen {
			ok, err := s.slots.Reserve(ctx, db, t.ID)
			if err != nil {
				return results.OperationResult[*paymentOutcome, error]{}, fmt.Errorf("failed to re-reserve slot: %w", err)
			}
			if ok {
				confirmed, err := s.confirmSlot(ctx, db, t, reg, c.paymentID, amount, now, actorID)
				if err != nil {
					return results.OperationResult[*paymentOutcome, error]{}, err
				}
				return results.SuccessResult[*paymentOutcome, error](&paymentOutcome{registration: confirmed.registration, closed: confirmed.closed}), nil
			}
		}
		s.metrics.RecordCapacityRejection(ctx, t.ID.String())
		return s.refundLatePayment(ctx, db, t, reg, c.paymentID, amount, actorID,
			apperr.New(apperr.CodeCapacityExceeded, "reservation expired before payment; the fee is being refunded"))

	default:
		if reg.PaymentCaptured() {
			return s.lateReplay(reg, c.paymentID, apperr.InvalidState("registration is %s", reg.Status))
		}
		return s.refundLatePayment(ctx, db, t, reg, c.paymentID, amount, actorID,
			apperr.InvalidState("registration is %s; the fee is being refunded", reg.Status))
	}
}

// lateReplay answers a repeated notification for a payment that was already
// recorded against a registration without a slot.
func (s *Service) lateReplay(reg *registrationdb.Registration, paymentID string, failure error) (results.OperationResult[*paymentOutcome, error], error) {
	if *reg.PaymentReference != paymentID {
		return results.FailureResult[*paymentOutcome, error](apperr.New(apperr.CodeConflict, "registration already recorded a different payment")), nil
	}
	return results.SuccessResult[*paymentOutcome, error](&paymentOutcome{registration: reg, replay: true, failure: failure}), nil
}

// refundLatePayment records a capture that cannot buy a slot and issues a
// refund for it. The fee never reached escrow, so the refund is not drawn
// from it.
func (s *Service) refundLatePayment(
	ctx context.Context,
	db bun.IDB,
	t *tournamentdb.Tournament,
	reg *registrationdb.Registration,
	paymentID string,
	amount int64,
	actorID *uuid.UUID,
	failure error,
) (results.OperationResult[*paymentOutcome, error], error) {
	if err := s.repo.RecordLatePayment(ctx, db, reg.ID, paymentID, amount); err != nil {
		return results.OperationResult[*paymentOutcome, error]{}, fmt.Errorf("failed to record late payment: %w", err)
	}
	reg.PaymentReference = &paymentID
	reg.AmountPaid = amount

	out := &paymentOutcome{registration: reg, failure: failure}
	if amount > 0 {
		refund, created, err := s.book.IssueRefund(ctx, db, ledgerservice.RefundRequest{
			TournamentID:     t.ID,
			RegistrationID:   reg.ID,
			ParticipantID:    reg.ParticipantID,
			PaymentReference: paymentID,
			Amount:           amount,
			Reason:           latePaymentReason,
			FromEscrow:       false,
			ActorID:          actorID,
		})
		if err != nil {
			return results.OperationResult[*paymentOutcome, error]{}, fmt.Errorf("failed to issue refund: %w", err)
		}
		if created {
			out.refund = refund
		}
	}
	if err := s.audit(ctx, db, reg, "registration.late_payment", reg.Status, actorID, latePaymentReason); err != nil {
		return results.OperationResult[*paymentOutcome, error]{}, fmt.Errorf("failed to audit late payment: %w", err)
	}

	s.logger.WarnContext(ctx, "Payment captured for registration without a slot",
		attr.ExtractCorrelationID(ctx),
		attr.UUID("registration_id", reg.ID),
		attr.String("status", string(reg.Status)),
		attr.Int64("amount", amount),
	)
	return results.SuccessResult[*paymentOutcome, error](out), nil
}
