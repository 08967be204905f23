package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cecoalimentos/fulfillment-service/internal/domain"
	"github.com/cecoalimentos/fulfillment-service/internal/store"
)

type verifyRepoStub struct {
	store.Repository

	member   *domain.Member
	purchase *domain.Purchase
	proof    *domain.PaymentProof

	approveErr error
	rejectErr  error

	approveCalled bool
	approveParams store.ApproveVerificationParams
	rejectCalled  bool
	rejectNotes   *string
}

func (s *verifyRepoStub) FindMemberByID(ctx context.Context, memberID uuid.UUID) (*domain.Member, error) {
	return s.member, nil
}

func (s *verifyRepoStub) FindPurchaseByID(ctx context.Context, purchaseID uuid.UUID) (*domain.Purchase, error) {
	return s.purchase, nil
}

func (s *verifyRepoStub) FindProofByID(ctx context.Context, proofID uuid.UUID) (*domain.PaymentProof, error) {
	return s.proof, nil
}

func (s *verifyRepoStub) ApproveVerification(ctx context.Context, params store.ApproveVerificationParams) (*domain.PaymentProof, *domain.PickupSlot, error) {
	s.approveCalled = true
	s.approveParams = params
	if s.approveErr != nil {
		return nil, nil, s.approveErr
	}
	verifiedAt := time.Now()
	verified := *s.proof
	verified.Status = domain.ProofVerified
	verified.VerifiedBy = &params.VerifierID
	verified.VerifiedAt = &verifiedAt
	slot := &domain.PickupSlot{
		ID:            uuid.New(),
		PurchaseID:    s.proof.PurchaseID,
		SlotCode:      params.NewSlotCode(),
		QueueNumber:   7,
		ScheduledDate: params.ScheduledDate,
		Status:        domain.SlotScheduled,
		QueueClass:    params.QueueClass,
	}
	return &verified, slot, nil
}

func (s *verifyRepoStub) RejectVerification(ctx context.Context, proofID, verifierID uuid.UUID, notes *string) (*domain.PaymentProof, error) {
	s.rejectCalled = true
	s.rejectNotes = notes
	if s.rejectErr != nil {
		return nil, s.rejectErr
	}
	rejected := *s.proof
	rejected.Status = domain.ProofRejected
	rejected.VerifiedBy = &verifierID
	return &rejected, nil
}

type notifierStub struct {
	sendErr error

	called       bool
	notification domain.PickupNotification
}

func (n *notifierStub) SendPickupConfirmation(ctx context.Context, pn domain.PickupNotification) error {
	n.called = true
	n.notification = pn
	return n.sendErr
}

func newVerifyFixture(memberType string) *verifyRepoStub {
	memberID := uuid.New()
	purchaseID := uuid.New()
	return &verifyRepoStub{
		member: &domain.Member{
			ID:         memberID,
			Name:       "Maria Perez",
			Email:      "maria@example.coop",
			MemberType: memberType,
			Active:     true,
		},
		purchase: &domain.Purchase{
			ID:        purchaseID,
			MemberID:  memberID,
			ComboID:   uuid.New(),
			AmountDue: decimal.NewFromInt(150),
			Status:    domain.PurchaseUnderReview,
		},
		proof: &domain.PaymentProof{
			ID:         uuid.New(),
			PurchaseID: purchaseID,
			Method:     domain.MethodWireTransfer,
			Amount:     decimal.NewFromInt(150),
			Status:     domain.ProofPending,
		},
	}
}

func TestVerifyPayment_ApproveAssignsSlotAndNotifies(t *testing.T) {
	repo := newVerifyFixture("regular")
	notifier := &notifierStub{}
	svc := NewService(repo, notifier, nil, 2, time.Second)
	fixed := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	svc.newSlotCode = func() string { return "AB12CD34" }

	verifierID := uuid.New()
	result, err := svc.VerifyPayment(context.Background(), repo.proof.ID, verifierID, DecisionApprove, nil)
	if err != nil {
		t.Fatalf("VerifyPayment returned error: %v", err)
	}
	if !repo.approveCalled {
		t.Fatal("expected approval transaction to run")
	}
	if repo.rejectCalled {
		t.Fatal("did not expect rejection path")
	}
	if result.Slot == nil {
		t.Fatal("expected a pickup slot on approval")
	}
	if result.Slot.SlotCode != "AB12CD34" {
		t.Fatalf("expected injected slot code, got %q", result.Slot.SlotCode)
	}
	if result.Proof.Status != domain.ProofVerified {
		t.Fatalf("expected verified proof, got %q", result.Proof.Status)
	}

	wantDate := fixed.AddDate(0, 0, 2)
	if !repo.approveParams.ScheduledDate.Equal(wantDate) {
		t.Fatalf("expected scheduled date %s, got %s", wantDate, repo.approveParams.ScheduledDate)
	}
	if repo.approveParams.QueueClass != domain.QueueRegular {
		t.Fatalf("expected regular queue class, got %q", repo.approveParams.QueueClass)
	}
	if repo.approveParams.VerifierID != verifierID {
		t.Fatalf("expected verifier id %s on params, got %s", verifierID, repo.approveParams.VerifierID)
	}

	if !notifier.called {
		t.Fatal("expected pickup confirmation dispatch")
	}
	if notifier.notification.Email != repo.member.Email {
		t.Fatalf("expected notification for %q, got %q", repo.member.Email, notifier.notification.Email)
	}
	if notifier.notification.QueueNumber != 7 {
		t.Fatalf("expected queue number 7 in notification, got %d", notifier.notification.QueueNumber)
	}
}

func TestVerifyPayment_SeniorMemberGetsPriorityQueue(t *testing.T) {
	repo := newVerifyFixture("adulto_mayor")
	svc := NewService(repo, nil, nil, 1, time.Second)

	_, err := svc.VerifyPayment(context.Background(), repo.proof.ID, uuid.New(), DecisionApprove, nil)
	if err != nil {
		t.Fatalf("VerifyPayment returned error: %v", err)
	}
	if repo.approveParams.QueueClass != domain.QueuePriority {
		t.Fatalf("expected priority queue class for senior member, got %q", repo.approveParams.QueueClass)
	}
}

func TestVerifyPayment_RejectRunsNoSettlement(t *testing.T) {
	repo := newVerifyFixture("regular")
	notifier := &notifierStub{}
	svc := NewService(repo, notifier, nil, 1, time.Second)

	notes := "reference not found in bank statement"
	result, err := svc.VerifyPayment(context.Background(), repo.proof.ID, uuid.New(), DecisionReject, &notes)
	if err != nil {
		t.Fatalf("VerifyPayment returned error: %v", err)
	}
	if !repo.rejectCalled {
		t.Fatal("expected rejection to run")
	}
	if repo.approveCalled {
		t.Fatal("did not expect approval transaction on rejection")
	}
	if repo.rejectNotes == nil || *repo.rejectNotes != notes {
		t.Fatalf("expected rejection notes to be forwarded, got %v", repo.rejectNotes)
	}
	if result.Slot != nil {
		t.Fatal("did not expect a pickup slot on rejection")
	}
	if result.Proof.Status != domain.ProofRejected {
		t.Fatalf("expected rejected proof, got %q", result.Proof.Status)
	}
	if notifier.called {
		t.Fatal("did not expect pickup confirmation on rejection")
	}
}

func TestVerifyPayment_UnknownDecisionIsValidationError(t *testing.T) {
	repo := newVerifyFixture("regular")
	svc := NewService(repo, nil, nil, 1, time.Second)

	_, err := svc.VerifyPayment(context.Background(), repo.proof.ID, uuid.New(), "maybe", nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if repo.approveCalled || repo.rejectCalled {
		t.Fatal("did not expect any repository decision call")
	}
}

func TestVerifyPayment_AlreadyProcessedProofIsRejectedUpfront(t *testing.T) {
	repo := newVerifyFixture("regular")
	repo.proof.Status = domain.ProofVerified
	svc := NewService(repo, nil, nil, 1, time.Second)

	_, err := svc.VerifyPayment(context.Background(), repo.proof.ID, uuid.New(), DecisionApprove, nil)
	if !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if repo.approveCalled {
		t.Fatal("did not expect approval transaction for a processed proof")
	}
}

func TestVerifyPayment_ConcurrentProcessingSurfacesConflict(t *testing.T) {
	repo := newVerifyFixture("regular")
	repo.approveErr = store.ErrAlreadyProcessed
	svc := NewService(repo, nil, nil, 1, time.Second)

	_, err := svc.VerifyPayment(context.Background(), repo.proof.ID, uuid.New(), DecisionApprove, nil)
	if !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed passthrough, got %v", err)
	}
}

func TestVerifyPayment_TransactionalFaultWrapsVerificationFailed(t *testing.T) {
	repo := newVerifyFixture("regular")
	repo.approveErr = errors.New("stock entry missing for product")
	svc := NewService(repo, nil, nil, 1, time.Second)

	_, err := svc.VerifyPayment(context.Background(), repo.proof.ID, uuid.New(), DecisionApprove, nil)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed wrapper, got %v", err)
	}
	if !strings.Contains(err.Error(), "stock entry missing") {
		t.Fatalf("expected underlying cause in error text, got %v", err)
	}
}

func TestVerifyPayment_NotifierFailureDoesNotFailApproval(t *testing.T) {
	repo := newVerifyFixture("regular")
	notifier := &notifierStub{sendErr: errors.New("smtp unreachable")}
	svc := NewService(repo, notifier, nil, 1, time.Second)

	result, err := svc.VerifyPayment(context.Background(), repo.proof.ID, uuid.New(), DecisionApprove, nil)
	if err != nil {
		t.Fatalf("expected approval to succeed despite notifier failure, got %v", err)
	}
	if result.Slot == nil {
		t.Fatal("expected a pickup slot despite notifier failure")
	}
	if !notifier.called {
		t.Fatal("expected notifier attempt")
	}
}
