package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from PurchaseStatus
		to   PurchaseStatus
		want bool
	}{
		{name: "awaiting payment accepts review", from: PurchaseAwaitingPayment, to: PurchaseUnderReview, want: true},
		{name: "awaiting payment accepts cancellation", from: PurchaseAwaitingPayment, to: PurchaseCancelled, want: true},
		{name: "review approves to paid", from: PurchaseUnderReview, to: PurchasePaid, want: true},
		{name: "review rejects back to awaiting payment", from: PurchaseUnderReview, to: PurchaseAwaitingPayment, want: true},
		{name: "paid moves to ready for pickup", from: PurchasePaid, to: PurchaseReadyForPickup, want: true},
		{name: "ready for pickup completes", from: PurchaseReadyForPickup, to: PurchasePickedUp, want: true},
		{name: "review cannot be cancelled", from: PurchaseUnderReview, to: PurchaseCancelled, want: false},
		{name: "paid cannot revert to review", from: PurchasePaid, to: PurchaseUnderReview, want: false},
		{name: "picked up is terminal", from: PurchasePickedUp, to: PurchaseReadyForPickup, want: false},
		{name: "cancelled is terminal", from: PurchaseCancelled, to: PurchaseAwaitingPayment, want: false},
		{name: "no self transition", from: PurchaseAwaitingPayment, to: PurchaseAwaitingPayment, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%q, %q) = %t, want %t", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestPurchaseStatusIsActive(t *testing.T) {
	active := []PurchaseStatus{PurchaseAwaitingPayment, PurchaseUnderReview}
	for _, status := range active {
		if !status.IsActive() {
			t.Fatalf("expected %q to count as active", status)
		}
	}
	inactive := []PurchaseStatus{PurchasePaid, PurchaseReadyForPickup, PurchasePickedUp, PurchaseCancelled}
	for _, status := range inactive {
		if status.IsActive() {
			t.Fatalf("expected %q to not count as active", status)
		}
	}
}
