/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface for the read side and the simple write paths: member and catalog
 * lookups, purchase creation and listing, proof submission, and the pending
 * review queue. The multi-step verification transactions live in
 * postgres_repository_verification.go.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cecoalimentos/fulfillment-service/internal/domain"
)

var (
	ErrMemberNotFound    = errors.New("member not found")
	ErrComboNotFound     = errors.New("combo not found")
	ErrPurchaseNotFound  = errors.New("purchase not found")
	ErrProofNotFound     = errors.New("payment proof not found")
	ErrStockEntryMissing = errors.New("stock entry missing for product")
	ErrActivePurchase    = errors.New("member already has an active purchase")
	ErrInvalidTransition = errors.New("purchase status transition not allowed")
	ErrAlreadyProcessed  = errors.New("payment proof already processed")
	ErrSlotCodeExhausted = errors.New("could not allocate a unique slot code")
)

const (
	uniqueViolationCode     = "23505"
	activePurchaseIndexName = "uq_purchases_active_member"
	slotCodeIndexName       = "uq_pickup_slots_slot_code"
)

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == constraint
}

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindMemberByID retrieves the identity slice needed for ownership checks,
// queue classification and notifications.
func (r *PostgresRepository) FindMemberByID(ctx context.Context, memberID uuid.UUID) (*domain.Member, error) {
	var member domain.Member
	query := `SELECT id, name, email, phone, member_type, active FROM members WHERE id = $1`
	err := r.db.QueryRow(ctx, query, memberID).Scan(
		&member.ID, &member.Name, &member.Email, &member.Phone, &member.MemberType, &member.Active,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// FindComboByID retrieves a combo with its price snapshot source and
// availability flags.
func (r *PostgresRepository) FindComboByID(ctx context.Context, comboID uuid.UUID) (*domain.Combo, error) {
	var combo domain.Combo
	query := `SELECT id, name, price, active, available FROM combos WHERE id = $1`
	err := r.db.QueryRow(ctx, query, comboID).Scan(
		&combo.ID, &combo.Name, &combo.Price, &combo.Active, &combo.Available,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrComboNotFound
		}
		return nil, err
	}
	return &combo, nil
}

// FindComboItems returns the product composition of a combo.
func (r *PostgresRepository) FindComboItems(ctx context.Context, comboID uuid.UUID) ([]domain.ComboItem, error) {
	query := `SELECT product_id, quantity FROM combo_products WHERE combo_id = $1 ORDER BY product_id`
	rows, err := r.db.Query(ctx, query, comboID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ComboItem
	for rows.Next() {
		var item domain.ComboItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// FindStockEntry returns the current stock record for a product.
func (r *PostgresRepository) FindStockEntry(ctx context.Context, productID uuid.UUID) (*domain.StockEntry, error) {
	var entry domain.StockEntry
	query := `
		SELECT product_id, quantity, minimum_threshold, last_inbound_at, last_outbound_at
		FROM stock_entries
		WHERE product_id = $1
	`
	err := r.db.QueryRow(ctx, query, productID).Scan(
		&entry.ProductID, &entry.Quantity, &entry.MinimumThreshold, &entry.LastInboundAt, &entry.LastOutboundAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrStockEntryMissing
		}
		return nil, err
	}
	return &entry, nil
}

// CreditStock records a replenishment receipt. The single UPDATE keeps the
// read-modify-write atomic per product row.
func (r *PostgresRepository) CreditStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	query := `
		UPDATE stock_entries
		SET quantity = quantity + $2, last_inbound_at = NOW(), updated_at = NOW()
		WHERE product_id = $1
	`
	tag, err := r.db.Exec(ctx, query, productID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStockEntryMissing
	}
	return nil
}

// CreatePurchase inserts a new purchase in awaiting_payment. The partial
// unique index on active statuses makes two concurrent opens for the same
// member resolve to exactly one winner.
func (r *PostgresRepository) CreatePurchase(ctx context.Context, purchase *domain.Purchase) error {
	query := `
		INSERT INTO purchases (id, member_id, combo_id, amount_due, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		purchase.ID, purchase.MemberID, purchase.ComboID, purchase.AmountDue, purchase.Status,
	).Scan(&purchase.CreatedAt, &purchase.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, activePurchaseIndexName) {
			return ErrActivePurchase
		}
		return err
	}
	return nil
}

// FindPurchaseByID retrieves a purchase by its ID.
func (r *PostgresRepository) FindPurchaseByID(ctx context.Context, purchaseID uuid.UUID) (*domain.Purchase, error) {
	var purchase domain.Purchase
	query := `
		SELECT id, member_id, combo_id, amount_due, status, created_at, updated_at
		FROM purchases
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, purchaseID).Scan(
		&purchase.ID, &purchase.MemberID, &purchase.ComboID, &purchase.AmountDue,
		&purchase.Status, &purchase.CreatedAt, &purchase.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return &purchase, nil
}

// ListPurchasesByMember returns a member's purchase history, newest first.
func (r *PostgresRepository) ListPurchasesByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Purchase, error) {
	query := `
		SELECT id, member_id, combo_id, amount_due, status, created_at, updated_at
		FROM purchases
		WHERE member_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.MemberID, &p.ComboID, &p.AmountDue, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// CancelPurchase moves a member's own purchase to cancelled. The status guard
// keeps cancellation unreachable once a proof is under review.
func (r *PostgresRepository) CancelPurchase(ctx context.Context, purchaseID uuid.UUID, memberID uuid.UUID) (*domain.Purchase, error) {
	var purchase domain.Purchase
	query := `
		UPDATE purchases
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND member_id = $2 AND status = $4
		RETURNING id, member_id, combo_id, amount_due, status, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, purchaseID, memberID, domain.PurchaseCancelled, domain.PurchaseAwaitingPayment).Scan(
		&purchase.ID, &purchase.MemberID, &purchase.ComboID, &purchase.AmountDue,
		&purchase.Status, &purchase.CreatedAt, &purchase.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Distinguish a missing purchase from a disallowed transition.
			if _, findErr := r.FindPurchaseByID(ctx, purchaseID); findErr != nil {
				return nil, findErr
			}
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return &purchase, nil
}

// FindPickupSlotByPurchaseID returns the slot created for a purchase, or nil
// when none has been assigned yet.
func (r *PostgresRepository) FindPickupSlotByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*domain.PickupSlot, error) {
	var slot domain.PickupSlot
	query := `
		SELECT id, purchase_id, slot_code, queue_number, scheduled_date, actual_pickup_at,
		       status, queue_class, handled_by, notes, created_at
		FROM pickup_slots
		WHERE purchase_id = $1
	`
	err := r.db.QueryRow(ctx, query, purchaseID).Scan(
		&slot.ID, &slot.PurchaseID, &slot.SlotCode, &slot.QueueNumber, &slot.ScheduledDate,
		&slot.ActualPickupAt, &slot.Status, &slot.QueueClass, &slot.HandledBy, &slot.Notes, &slot.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &slot, nil
}

// SubmitProof registers a payment proof and drives the purchase into review
// in one transaction. The row lock on the purchase serializes concurrent
// submissions for the same purchase.
func (r *PostgresRepository) SubmitProof(ctx context.Context, proof *domain.PaymentProof) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var status domain.PurchaseStatus
	err = tx.QueryRow(ctx, `SELECT status FROM purchases WHERE id = $1 FOR UPDATE`, proof.PurchaseID).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrPurchaseNotFound
		}
		return err
	}
	if status != domain.PurchaseAwaitingPayment {
		return ErrInvalidTransition
	}

	insertQuery := `
		INSERT INTO payment_proofs (id, purchase_id, method, reference_number, origin_bank,
		                            origin_phone, amount, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING submitted_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		proof.ID, proof.PurchaseID, proof.Method, proof.ReferenceNumber,
		proof.OriginBank, proof.OriginPhone, proof.Amount, proof.Status,
	).Scan(&proof.SubmittedAt)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE purchases SET status = $2, updated_at = NOW() WHERE id = $1`,
		proof.PurchaseID, domain.PurchaseUnderReview,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FindProofByID retrieves a payment proof by its ID.
func (r *PostgresRepository) FindProofByID(ctx context.Context, proofID uuid.UUID) (*domain.PaymentProof, error) {
	var proof domain.PaymentProof
	query := `
		SELECT id, purchase_id, method, reference_number, origin_bank, origin_phone,
		       amount, status, verified_by, verified_at, notes, submitted_at
		FROM payment_proofs
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, proofID).Scan(
		&proof.ID, &proof.PurchaseID, &proof.Method, &proof.ReferenceNumber,
		&proof.OriginBank, &proof.OriginPhone, &proof.Amount, &proof.Status,
		&proof.VerifiedBy, &proof.VerifiedAt, &proof.Notes, &proof.SubmittedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProofNotFound
		}
		return nil, err
	}
	return &proof, nil
}

// ListPendingProofs returns the verification queue, oldest submissions first,
// with enough member and purchase context for manual reconciliation.
func (r *PostgresRepository) ListPendingProofs(ctx context.Context, limit, offset int) ([]domain.PendingProofSummary, int64, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM payment_proofs WHERE status = $1`
	if err := r.db.QueryRow(ctx, countQuery, domain.ProofPending).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT pp.id, pp.purchase_id, p.member_id, m.name, pp.method, pp.reference_number,
		       pp.origin_bank, pp.origin_phone, pp.amount, p.amount_due, pp.submitted_at
		FROM payment_proofs pp
		JOIN purchases p ON p.id = pp.purchase_id
		JOIN members m ON m.id = p.member_id
		WHERE pp.status = $1
		ORDER BY pp.submitted_at ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, domain.ProofPending, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var summaries []domain.PendingProofSummary
	for rows.Next() {
		var s domain.PendingProofSummary
		err := rows.Scan(
			&s.ID, &s.PurchaseID, &s.MemberID, &s.MemberName, &s.Method, &s.ReferenceNumber,
			&s.OriginBank, &s.OriginPhone, &s.Amount, &s.AmountDue, &s.SubmittedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, s)
	}
	return summaries, total, rows.Err()
}
