/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the fulfillment-service needs. The application layer depends only on
 * this interface, which keeps the workflow logic testable against stubs and
 * independent of the PostgreSQL implementation.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: Entity identifiers.
 * - internal/domain: Domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cecoalimentos/fulfillment-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Identity collaborator reads
	FindMemberByID(ctx context.Context, memberID uuid.UUID) (*domain.Member, error)

	// Catalog Reader
	FindComboByID(ctx context.Context, comboID uuid.UUID) (*domain.Combo, error)
	FindComboItems(ctx context.Context, comboID uuid.UUID) ([]domain.ComboItem, error)
	FindStockEntry(ctx context.Context, productID uuid.UUID) (*domain.StockEntry, error)

	// Stock Ledger (Credit belongs to the replenishment collaborator; it is
	// the inverse of the fulfillment debit applied during approval)
	CreditStock(ctx context.Context, productID uuid.UUID, quantity int) error

	// Purchase Ledger
	CreatePurchase(ctx context.Context, purchase *domain.Purchase) error
	FindPurchaseByID(ctx context.Context, purchaseID uuid.UUID) (*domain.Purchase, error)
	ListPurchasesByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Purchase, error)
	CancelPurchase(ctx context.Context, purchaseID uuid.UUID, memberID uuid.UUID) (*domain.Purchase, error)
	FindPickupSlotByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*domain.PickupSlot, error)

	// Payment Registry
	SubmitProof(ctx context.Context, proof *domain.PaymentProof) error
	FindProofByID(ctx context.Context, proofID uuid.UUID) (*domain.PaymentProof, error)
	ListPendingProofs(ctx context.Context, limit, offset int) ([]domain.PendingProofSummary, int64, error)

	// Verification Orchestrator transactions
	ApproveVerification(ctx context.Context, params ApproveVerificationParams) (*domain.PaymentProof, *domain.PickupSlot, error)
	RejectVerification(ctx context.Context, proofID, verifierID uuid.UUID, notes *string) (*domain.PaymentProof, error)
}

// ApproveVerificationParams carries everything the approval transaction
// needs. NewSlotCode is called once per slot insert attempt so a uniqueness
// collision can be retried with a fresh code.
type ApproveVerificationParams struct {
	ProofID       uuid.UUID
	VerifierID    uuid.UUID
	Notes         *string
	ScheduledDate time.Time
	QueueClass    domain.QueueClass
	NewSlotCode   func() string
}
