/**
 * @description
 * This file implements the two verification transactions. Approval is the
 * critical path: flipping the proof, paying the purchase, debiting every
 * combo line, taking the next per-day queue number and inserting the pickup
 * slot all happen inside one database transaction, so a failure at any step
 * leaves every entity in its pre-call state.
 *
 * The per-day queue number comes from a dedicated `queue_counters` row
 * incremented with an ON CONFLICT upsert. The row lock taken by the upsert
 * serializes concurrent approvals targeting the same date, which is what
 * keeps queue numbers contiguous and duplicate-free.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: Transactions, savepoints for slot-code retry.
 * - internal/domain: Domain models.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cecoalimentos/fulfillment-service/internal/domain"
)

// maxSlotCodeAttempts bounds regeneration when a generated slot code collides
// with an existing one.
const maxSlotCodeAttempts = 5

// ApproveVerification executes the approval as one atomic unit of work and
// returns the verified proof and the created pickup slot.
func (r *PostgresRepository) ApproveVerification(ctx context.Context, params ApproveVerificationParams) (*domain.PaymentProof, *domain.PickupSlot, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	// 1. Flip the proof. The status guard makes a second decision on the same
	// proof a no-op that surfaces as ErrAlreadyProcessed.
	proof, err := flipProof(ctx, tx, params.ProofID, domain.ProofVerified, params.VerifierID, params.Notes)
	if err != nil {
		return nil, nil, err
	}

	// 2. Purchase moves under_review -> paid.
	var comboID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE purchases SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING combo_id
	`, proof.PurchaseID, domain.PurchasePaid, domain.PurchaseUnderReview).Scan(&comboID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, ErrInvalidTransition
		}
		return nil, nil, err
	}

	// 3. Debit every combo line exactly once. Debits clamp at zero (lenient
	// oversell policy inherited from the source system); a missing stock row
	// is a data error and fails the whole approval.
	items, err := comboItemsTx(ctx, tx, comboID)
	if err != nil {
		return nil, nil, err
	}
	for _, item := range items {
		tag, err := tx.Exec(ctx, `
			UPDATE stock_entries
			SET quantity = GREATEST(quantity - $2, 0), last_outbound_at = NOW(), updated_at = NOW()
			WHERE product_id = $1
		`, item.ProductID, item.Quantity)
		if err != nil {
			return nil, nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrStockEntryMissing, item.ProductID)
		}
	}

	// 4. Take the next queue number for the scheduled date. The upsert locks
	// the date's counter row, so concurrent approvals for the same day
	// serialize here and each one commits a distinct number.
	queueDate := normalizeQueueDate(params.ScheduledDate).Format("2006-01-02")
	var queueNumber int
	err = tx.QueryRow(ctx, `
		INSERT INTO queue_counters (queue_date, last_number)
		VALUES ($1, 1)
		ON CONFLICT (queue_date)
		DO UPDATE SET last_number = queue_counters.last_number + 1
		RETURNING last_number
	`, queueDate).Scan(&queueNumber)
	if err != nil {
		return nil, nil, err
	}

	// 5. Insert the pickup slot, regenerating the code on a collision. The
	// failed insert aborts only its savepoint, not the outer transaction.
	slot, err := insertSlotWithRetry(ctx, tx, proof.PurchaseID, queueNumber, params)
	if err != nil {
		return nil, nil, err
	}

	// 6. Purchase moves paid -> ready_for_pickup.
	tag, err := tx.Exec(ctx, `
		UPDATE purchases SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, proof.PurchaseID, domain.PurchaseReadyForPickup, domain.PurchasePaid)
	if err != nil {
		return nil, nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, nil, ErrInvalidTransition
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return proof, slot, nil
}

// RejectVerification flips the proof to rejected and returns the purchase to
// awaiting_payment so the member can resubmit. No stock or queue side effects.
func (r *PostgresRepository) RejectVerification(ctx context.Context, proofID, verifierID uuid.UUID, notes *string) (*domain.PaymentProof, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	proof, err := flipProof(ctx, tx, proofID, domain.ProofRejected, verifierID, notes)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE purchases SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, proof.PurchaseID, domain.PurchaseAwaitingPayment, domain.PurchaseUnderReview)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrInvalidTransition
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return proof, nil
}

// flipProof records the verification decision on a pending proof and returns
// the updated record. Zero rows means the proof is gone or already decided.
func flipProof(ctx context.Context, tx pgx.Tx, proofID uuid.UUID, status domain.ProofStatus, verifierID uuid.UUID, notes *string) (*domain.PaymentProof, error) {
	var proof domain.PaymentProof
	err := tx.QueryRow(ctx, `
		UPDATE payment_proofs
		SET status = $2, verified_by = $3, verified_at = NOW(), notes = $4
		WHERE id = $1 AND status = $5
		RETURNING id, purchase_id, method, reference_number, origin_bank, origin_phone,
		          amount, status, verified_by, verified_at, notes, submitted_at
	`, proofID, status, verifierID, notes, domain.ProofPending).Scan(
		&proof.ID, &proof.PurchaseID, &proof.Method, &proof.ReferenceNumber,
		&proof.OriginBank, &proof.OriginPhone, &proof.Amount, &proof.Status,
		&proof.VerifiedBy, &proof.VerifiedAt, &proof.Notes, &proof.SubmittedAt,
	)
	if err == nil {
		return &proof, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	var exists bool
	if checkErr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payment_proofs WHERE id = $1)`, proofID).Scan(&exists); checkErr != nil {
		return nil, checkErr
	}
	if !exists {
		return nil, ErrProofNotFound
	}
	return nil, ErrAlreadyProcessed
}

// comboItemsTx loads a combo's composition inside the approval transaction so
// the debited lines match what the purchase's combo contains at decision time.
func comboItemsTx(ctx context.Context, tx pgx.Tx, comboID uuid.UUID) ([]domain.ComboItem, error) {
	rows, err := tx.Query(ctx, `SELECT product_id, quantity FROM combo_products WHERE combo_id = $1 ORDER BY product_id`, comboID)
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

// insertSlotWithRetry inserts the pickup slot, retrying with a fresh code
// when the slot_code uniqueness constraint trips. Each attempt runs inside a
// savepoint so a collision does not poison the outer transaction.
func insertSlotWithRetry(ctx context.Context, tx pgx.Tx, purchaseID uuid.UUID, queueNumber int, params ApproveVerificationParams) (*domain.PickupSlot, error) {
	slot := domain.PickupSlot{
		ID:          uuid.New(),
		PurchaseID:  purchaseID,
		QueueNumber: queueNumber,
		Status:      domain.SlotScheduled,
		QueueClass:  params.QueueClass,
	}

	for attempt := 0; attempt < maxSlotCodeAttempts; attempt++ {
		slot.SlotCode = params.NewSlotCode()

		sp, err := tx.Begin(ctx)
		if err != nil {
			return nil, err
		}
		err = sp.QueryRow(ctx, `
			INSERT INTO pickup_slots (id, purchase_id, slot_code, queue_number, scheduled_date,
			                          status, queue_class, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			RETURNING scheduled_date, created_at
		`, slot.ID, slot.PurchaseID, slot.SlotCode, slot.QueueNumber,
			normalizeQueueDate(params.ScheduledDate).Format("2006-01-02"), slot.Status, slot.QueueClass,
		).Scan(&slot.ScheduledDate, &slot.CreatedAt)
		if err != nil {
			sp.Rollback(ctx)
			if isUniqueViolation(err, slotCodeIndexName) {
				continue
			}
			return nil, err
		}
		if err := sp.Commit(ctx); err != nil {
			return nil, err
		}
		return &slot, nil
	}
	return nil, ErrSlotCodeExhausted
}

// normalizeQueueDate keeps a single canonical representation of a scheduled
// date so the counter key and the slot's date always agree.
func normalizeQueueDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
