/**
 * @description
 * This file defines the core domain models for the fulfillment-service.
 * These structs represent the entities of the purchase-fulfillment workflow
 * (purchases, payment proofs, pickup slots) and the data transfer objects
 * used by the API layer.
 *
 * @notes
 * - Monetary amounts use shopspring/decimal so fixed-point currency values
 *   round-trip through NUMERIC columns without floating-point loss.
 * - Status values are typed strings that map directly to the CHECK
 *   constraints on their tables.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseStatus enumerates the lifecycle states of a purchase.
type PurchaseStatus string

const (
	PurchaseAwaitingPayment PurchaseStatus = "awaiting_payment"
	PurchaseUnderReview     PurchaseStatus = "payment_under_review"
	PurchasePaid            PurchaseStatus = "paid"
	PurchaseReadyForPickup  PurchaseStatus = "ready_for_pickup"
	PurchasePickedUp        PurchaseStatus = "picked_up"
	PurchaseCancelled       PurchaseStatus = "cancelled"
)

// purchaseTransitions is the allowed state machine for purchases. Every
// status mutation in the store is guarded by a WHERE clause derived from it.
var purchaseTransitions = map[PurchaseStatus][]PurchaseStatus{
	PurchaseAwaitingPayment: {PurchaseUnderReview, PurchaseCancelled},
	PurchaseUnderReview:     {PurchasePaid, PurchaseAwaitingPayment},
	PurchasePaid:            {PurchaseReadyForPickup},
	PurchaseReadyForPickup:  {PurchasePickedUp},
}

// CanTransition reports whether a purchase may move from one status to another.
func CanTransition(from, to PurchaseStatus) bool {
	for _, next := range purchaseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether the status counts against the one-active-purchase
// invariant (a member may hold at most one purchase in these states).
func (s PurchaseStatus) IsActive() bool {
	return s == PurchaseAwaitingPayment || s == PurchaseUnderReview
}

// Purchase represents one member's claim on one combo. It maps directly to
// the `purchases` table.
type Purchase struct {
	ID        uuid.UUID       `json:"id"`
	MemberID  uuid.UUID       `json:"member_id"`
	ComboID   uuid.UUID       `json:"combo_id"`
	AmountDue decimal.Decimal `json:"amount_due"`
	Status    PurchaseStatus  `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PaymentMethod enumerates the manually asserted payment channels.
type PaymentMethod string

const (
	MethodMobilePayment PaymentMethod = "mobile_payment"
	MethodWireTransfer  PaymentMethod = "wire_transfer"
)

// ValidPaymentMethod reports whether m is a known payment method.
func ValidPaymentMethod(m PaymentMethod) bool {
	return m == MethodMobilePayment || m == MethodWireTransfer
}

// ProofStatus enumerates the verification states of a payment proof.
type ProofStatus string

const (
	ProofPending  ProofStatus = "pending"
	ProofVerified ProofStatus = "verified"
	ProofRejected ProofStatus = "rejected"
)

// PaymentProof is the member-submitted evidence of payment for a purchase.
// It maps directly to the `payment_proofs` table. A proof is mutated exactly
// once, by the verification decision, and is immutable afterward.
type PaymentProof struct {
	ID              uuid.UUID       `json:"id"`
	PurchaseID      uuid.UUID       `json:"purchase_id"`
	Method          PaymentMethod   `json:"method"`
	ReferenceNumber string          `json:"reference_number"`
	OriginBank      *string         `json:"origin_bank,omitempty"`
	OriginPhone     *string         `json:"origin_phone,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Status          ProofStatus     `json:"status"`
	VerifiedBy      *uuid.UUID      `json:"verified_by,omitempty"`
	VerifiedAt      *time.Time      `json:"verified_at,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	SubmittedAt     time.Time       `json:"submitted_at"`
}

// SlotStatus enumerates the operational states of a pickup slot. The
// transitions out of `scheduled` belong to the pickup-completion collaborator.
type SlotStatus string

const (
	SlotScheduled SlotStatus = "scheduled"
	SlotInQueue   SlotStatus = "in_queue"
	SlotPickedUp  SlotStatus = "picked_up"
	SlotNoShow    SlotStatus = "no_show"
)

// QueueClass tags the pickup-order expectation for a slot. Priority slots do
// not use a separate number sequence; the class only affects how operational
// staff order the physical queue.
type QueueClass string

const (
	QueueRegular  QueueClass = "regular"
	QueuePriority QueueClass = "priority"
)

// PickupSlot is a scheduled, numbered collection assignment created when a
// payment is approved. Maps directly to the `pickup_slots` table.
type PickupSlot struct {
	ID             uuid.UUID  `json:"id"`
	PurchaseID     uuid.UUID  `json:"purchase_id"`
	SlotCode       string     `json:"slot_code"`
	QueueNumber    int        `json:"queue_number"`
	ScheduledDate  time.Time  `json:"scheduled_date"`
	ActualPickupAt *time.Time `json:"actual_pickup_at,omitempty"`
	Status         SlotStatus `json:"status"`
	QueueClass     QueueClass `json:"queue_class"`
	HandledBy      *uuid.UUID `json:"handled_by,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// OpenPurchaseRequest is the DTO for opening a purchase intent.
type OpenPurchaseRequest struct {
	ComboID uuid.UUID `json:"combo_id"`
}

// SubmitProofRequest is the DTO for registering a payment proof.
type SubmitProofRequest struct {
	PurchaseID      uuid.UUID       `json:"purchase_id"`
	Method          PaymentMethod   `json:"method"`
	ReferenceNumber string          `json:"reference_number"`
	OriginBank      *string         `json:"origin_bank,omitempty"`
	OriginPhone     *string         `json:"origin_phone,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
}

// VerifyPaymentRequest is the DTO for a verifier decision on a pending proof.
type VerifyPaymentRequest struct {
	Decision string  `json:"decision"` // "approve" or "reject"
	Notes    *string `json:"notes,omitempty"`
}

// VerificationResult carries the outcome of a verification decision back to
// the caller. Slot is nil when the decision was a rejection.
type VerificationResult struct {
	Proof *PaymentProof `json:"proof"`
	Slot  *PickupSlot   `json:"slot,omitempty"`
}

// PendingProofSummary is a verifier-facing row for the pending review queue,
// joining the proof with enough purchase and member context to reconcile it.
type PendingProofSummary struct {
	ID              uuid.UUID       `json:"id"`
	PurchaseID      uuid.UUID       `json:"purchase_id"`
	MemberID        uuid.UUID       `json:"member_id"`
	MemberName      string          `json:"member_name"`
	Method          PaymentMethod   `json:"method"`
	ReferenceNumber string          `json:"reference_number"`
	OriginBank      *string         `json:"origin_bank,omitempty"`
	OriginPhone     *string         `json:"origin_phone,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	AmountDue       decimal.Decimal `json:"amount_due"`
	SubmittedAt     time.Time       `json:"submitted_at"`
}

// PickupNotification is the payload handed to the notifier after an approval
// commits. Delivery failures never affect the committed decision.
type PickupNotification struct {
	Email         string
	Name          string
	SlotCode      string
	QueueNumber   int
	ScheduledDate time.Time
	QueueClass    QueueClass
}
