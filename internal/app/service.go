/**
 * @description
 * This file contains the core business logic for the fulfillment-service.
 * The `Service` struct drives the purchase-fulfillment workflow: opening a
 * purchase intent, registering a payment proof, and executing a verifier's
 * decision. The verification path coordinates the payment registry, stock
 * ledger and queue allocator through a single repository transaction, then
 * dispatches best-effort notifications once that transaction has committed.
 *
 * @dependencies
 * - context, errors, fmt, log, strings, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Event publishing for downstream consumers.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cecoalimentos/fulfillment-service/internal/domain"
	"github.com/cecoalimentos/fulfillment-service/internal/store"
	"github.com/cecoalimentos/fulfillment-service/pkg/rabbitmq"
)

var (
	ErrComboUnavailable   = errors.New("combo is not available for purchase")
	ErrWrongOwner         = errors.New("purchase belongs to another member")
	ErrInvalidState       = errors.New("purchase is not in a state that accepts this operation")
	ErrValidation         = errors.New("invalid request")
	ErrVerificationFailed = errors.New("verification could not be completed")
	ErrRateLimited        = errors.New("too many proof submissions; try again later")
)

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Notifier delivers the pickup confirmation to the member. Implementations
// must treat delivery as best-effort; the workflow never retries.
type Notifier interface {
	SendPickupConfirmation(ctx context.Context, n domain.PickupNotification) error
}

// RateLimiter is the distributed limiter consulted before accepting a proof
// submission. A nil limiter disables limiting.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for the fulfillment workflow.
type Service struct {
	repo          store.Repository
	notifier      Notifier
	eventProducer rabbitmq.Publisher

	pickupSLADays    int
	notifyTimeout    time.Duration
	rateLimiter      RateLimiter
	proofSubmitLimit int

	// overridable in tests
	now         func() time.Time
	newSlotCode func() string
}

// NewService creates a new fulfillment service instance. notifier and
// producer may be nil; both paths degrade to logging.
func NewService(repo store.Repository, notifier Notifier, producer rabbitmq.Publisher, pickupSLADays int, notifyTimeout time.Duration) *Service {
	if pickupSLADays <= 0 {
		pickupSLADays = 1
	}
	if notifyTimeout <= 0 {
		notifyTimeout = 5 * time.Second
	}
	return &Service{
		repo:          repo,
		notifier:      notifier,
		eventProducer: producer,
		pickupSLADays: pickupSLADays,
		notifyTimeout: notifyTimeout,
		now:           time.Now,
		newSlotCode:   GenerateSlotCode,
	}
}

// SetRateLimiter enables distributed rate limiting of proof submissions.
func (s *Service) SetRateLimiter(limiter RateLimiter, submitsPerMinute int) {
	s.rateLimiter = limiter
	s.proofSubmitLimit = submitsPerMinute
}

// OpenPurchase creates a purchase intent for a member. The combo price is
// copied onto the purchase at creation time, not referenced live.
func (s *Service) OpenPurchase(ctx context.Context, memberID, comboID uuid.UUID) (*domain.Purchase, error) {
	combo, err := s.repo.FindComboByID(ctx, comboID)
	if err != nil {
		return nil, err
	}
	if !combo.Active || !combo.Available {
		return nil, ErrComboUnavailable
	}

	purchase := &domain.Purchase{
		ID:        uuid.New(),
		MemberID:  memberID,
		ComboID:   combo.ID,
		AmountDue: combo.Price,
		Status:    domain.PurchaseAwaitingPayment,
	}
	if err := s.repo.CreatePurchase(ctx, purchase); err != nil {
		return nil, err
	}

	log.Printf("level=info component=app op=open_purchase purchase_id=%s member_id=%s combo_id=%s amount_due=%s",
		purchase.ID, memberID, comboID, purchase.AmountDue)
	return purchase, nil
}

// CancelPurchase cancels a member's own purchase. Only a purchase still
// awaiting payment can be cancelled; once a proof is under review the member
// must wait for the decision.
func (s *Service) CancelPurchase(ctx context.Context, memberID, purchaseID uuid.UUID) (*domain.Purchase, error) {
	purchase, err := s.repo.CancelPurchase(ctx, purchaseID, memberID)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=app op=cancel_purchase purchase_id=%s member_id=%s", purchaseID, memberID)
	return purchase, nil
}

// ListMemberPurchases returns a member's purchase history, newest first.
func (s *Service) ListMemberPurchases(ctx context.Context, memberID uuid.UUID) ([]domain.Purchase, error) {
	return s.repo.ListPurchasesByMember(ctx, memberID)
}

// FindPickupSlot returns the pickup slot for one of the member's purchases,
// or nil when no slot has been assigned.
func (s *Service) FindPickupSlot(ctx context.Context, memberID, purchaseID uuid.UUID) (*domain.PickupSlot, error) {
	purchase, err := s.repo.FindPurchaseByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.MemberID != memberID {
		return nil, ErrWrongOwner
	}
	return s.repo.FindPickupSlotByPurchaseID(ctx, purchaseID)
}

// SubmitProof registers payment evidence for a purchase and drives it into
// review. Amount is recorded as asserted; reconciliation against amount_due
// is the verifier's manual job.
func (s *Service) SubmitProof(ctx context.Context, memberID uuid.UUID, req domain.SubmitProofRequest) (*domain.PaymentProof, error) {
	if err := s.checkSubmitRate(ctx, memberID); err != nil {
		return nil, err
	}
	if err := validateProofRequest(req); err != nil {
		return nil, err
	}

	purchase, err := s.repo.FindPurchaseByID(ctx, req.PurchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.MemberID != memberID {
		return nil, ErrWrongOwner
	}
	if purchase.Status != domain.PurchaseAwaitingPayment {
		return nil, ErrInvalidState
	}

	proof := &domain.PaymentProof{
		ID:              uuid.New(),
		PurchaseID:      purchase.ID,
		Method:          req.Method,
		ReferenceNumber: strings.TrimSpace(req.ReferenceNumber),
		OriginBank:      req.OriginBank,
		OriginPhone:     req.OriginPhone,
		Amount:          req.Amount,
		Status:          domain.ProofPending,
	}
	if err := s.repo.SubmitProof(ctx, proof); err != nil {
		// A concurrent submission can win the purchase row lock first.
		if errors.Is(err, store.ErrInvalidTransition) {
			return nil, ErrInvalidState
		}
		return nil, err
	}

	log.Printf("level=info component=app op=submit_proof proof_id=%s purchase_id=%s member_id=%s method=%s reference=%s",
		proof.ID, purchase.ID, memberID, proof.Method, proof.ReferenceNumber)
	s.publishEvent(rabbitmq.RoutingKeyPaymentSubmitted, rabbitmq.PaymentEvent{
		ProofID:    proof.ID,
		PurchaseID: purchase.ID,
		MemberID:   memberID,
		Amount:     proof.Amount.String(),
		Status:     string(proof.Status),
		OccurredAt: s.now().UTC(),
	})
	return proof, nil
}

// VerifyPayment executes a verifier's decision on a pending proof. Approval
// runs the whole settlement (proof flip, purchase transitions, stock debits,
// queue slot) as one atomic unit; the pickup notification and event publish
// happen strictly after that unit commits and never affect its outcome.
func (s *Service) VerifyPayment(ctx context.Context, proofID, verifierID uuid.UUID, decision string, notes *string) (*domain.VerificationResult, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, fmt.Errorf("%w: decision must be %q or %q", ErrValidation, DecisionApprove, DecisionReject)
	}

	proof, err := s.repo.FindProofByID(ctx, proofID)
	if err != nil {
		return nil, err
	}
	if proof.Status != domain.ProofPending {
		return nil, store.ErrAlreadyProcessed
	}
	purchase, err := s.repo.FindPurchaseByID(ctx, proof.PurchaseID)
	if err != nil {
		return nil, err
	}
	member, err := s.repo.FindMemberByID(ctx, purchase.MemberID)
	if err != nil {
		return nil, err
	}

	if decision == DecisionReject {
		rejected, err := s.repo.RejectVerification(ctx, proofID, verifierID, notes)
		if err != nil {
			return nil, err
		}
		log.Printf("level=info component=app op=verify_payment outcome=rejected proof_id=%s verifier_id=%s", proofID, verifierID)
		s.publishEvent(rabbitmq.RoutingKeyPaymentRejected, rabbitmq.PaymentEvent{
			ProofID:    rejected.ID,
			PurchaseID: rejected.PurchaseID,
			MemberID:   member.ID,
			Amount:     rejected.Amount.String(),
			Status:     string(rejected.Status),
			OccurredAt: s.now().UTC(),
		})
		return &domain.VerificationResult{Proof: rejected}, nil
	}

	scheduledDate := s.now().UTC().AddDate(0, 0, s.pickupSLADays)
	params := store.ApproveVerificationParams{
		ProofID:       proofID,
		VerifierID:    verifierID,
		Notes:         notes,
		ScheduledDate: scheduledDate,
		QueueClass:    ClassifyQueue(member),
		NewSlotCode:   s.newSlotCode,
	}
	verified, slot, err := s.repo.ApproveVerification(ctx, params)
	if err != nil {
		// Precondition failures surface as-is; anything else is a rolled-back
		// transactional fault.
		if errors.Is(err, store.ErrAlreadyProcessed) || errors.Is(err, store.ErrProofNotFound) || errors.Is(err, store.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	log.Printf("level=info component=app op=verify_payment outcome=approved proof_id=%s verifier_id=%s slot_code=%s queue_number=%d queue_class=%s",
		proofID, verifierID, slot.SlotCode, slot.QueueNumber, slot.QueueClass)

	s.dispatchPickupConfirmation(member, slot)
	s.publishEvent(rabbitmq.RoutingKeyPaymentVerified, rabbitmq.PaymentEvent{
		ProofID:       verified.ID,
		PurchaseID:    verified.PurchaseID,
		MemberID:      member.ID,
		Amount:        verified.Amount.String(),
		Status:        string(verified.Status),
		SlotCode:      slot.SlotCode,
		QueueNumber:   slot.QueueNumber,
		QueueClass:    string(slot.QueueClass),
		ScheduledDate: slot.ScheduledDate.Format("2006-01-02"),
		OccurredAt:    s.now().UTC(),
	})
	return &domain.VerificationResult{Proof: verified, Slot: slot}, nil
}

// ListPendingProofs returns the verifier review queue, oldest first.
func (s *Service) ListPendingProofs(ctx context.Context, limit, offset int) ([]domain.PendingProofSummary, int64, error) {
	return s.repo.ListPendingProofs(ctx, limit, offset)
}

// dispatchPickupConfirmation sends the pickup email on a bounded context.
// Runs after the approval has committed; a failure is logged and swallowed.
func (s *Service) dispatchPickupConfirmation(member *domain.Member, slot *domain.PickupSlot) {
	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()

	err := s.notifier.SendPickupConfirmation(notifyCtx, domain.PickupNotification{
		Email:         member.Email,
		Name:          member.Name,
		SlotCode:      slot.SlotCode,
		QueueNumber:   slot.QueueNumber,
		ScheduledDate: slot.ScheduledDate,
		QueueClass:    slot.QueueClass,
	})
	if err != nil {
		log.Printf("level=warn component=app msg=\"pickup confirmation delivery failed\" member_id=%s slot_code=%s err=%v",
			member.ID, slot.SlotCode, err)
	}
}

// publishEvent publishes a lifecycle event best-effort.
func (s *Service) publishEvent(routingKey string, event rabbitmq.PaymentEvent) {
	if s.eventProducer == nil {
		return
	}
	publishCtx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()

	if err := s.eventProducer.PublishPaymentEvent(publishCtx, routingKey, event); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" routing_key=%s proof_id=%s err=%v",
			routingKey, event.ProofID, err)
	}
}

// checkSubmitRate consults the distributed limiter. Limiter outages fail
// open: a broken Redis must not take down proof submission.
func (s *Service) checkSubmitRate(ctx context.Context, memberID uuid.UUID) error {
	if s.rateLimiter == nil || s.proofSubmitLimit <= 0 {
		return nil
	}
	count, _, err := s.rateLimiter.ConsumeRateLimit(ctx, "proof_submit", memberID.String(), s.proofSubmitLimit, time.Minute)
	if err != nil {
		log.Printf("level=warn component=app msg=\"rate limiter unavailable; allowing submission\" member_id=%s err=%v", memberID, err)
		return nil
	}
	if count > s.proofSubmitLimit {
		return ErrRateLimited
	}
	return nil
}

func validateProofRequest(req domain.SubmitProofRequest) error {
	if !domain.ValidPaymentMethod(req.Method) {
		return fmt.Errorf("%w: unknown payment method %q", ErrValidation, req.Method)
	}
	if strings.TrimSpace(req.ReferenceNumber) == "" {
		return fmt.Errorf("%w: reference number is required", ErrValidation)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if req.Method == domain.MethodMobilePayment {
		if req.OriginPhone == nil || strings.TrimSpace(*req.OriginPhone) == "" {
			return fmt.Errorf("%w: origin phone is required for mobile payments", ErrValidation)
		}
	}
	return nil
}
