package taskpay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// PaymentService executes payments against tasks and records their outcomes.
//
// It owns the payment ledger of record: every terminal outcome (SUCCESS or
// FAILED decline) produces exactly one Payment entry. Infrastructure failures
// produce no entry and release the external reference for retry.
//
// PaymentService does not deduplicate retried requests; that is the
// idempotency layer's job. It does reject reuse of an external reference
// across *different* logical payments, mirroring the provider-side uniqueness
// constraint on references.
type PaymentService struct {
	store     TaskStore
	processor PaymentProcessor

	mu       sync.Mutex
	payments map[string]*Payment // by payment ID
	refs     map[string]string   // external reference -> payment ID
	order    []string
}

// NewPaymentService creates a payment service backed by the given task store
// and payment processor.
func NewPaymentService(store TaskStore, processor PaymentProcessor) *PaymentService {
	return &PaymentService{
		store:     store,
		processor: processor,
		payments:  make(map[string]*Payment),
		refs:      make(map[string]string),
	}
}

// ProcessPayment executes a payment for the given request.
//
// The external reference is reserved before the processor runs, so two
// requests reusing one reference cannot both charge. On a terminal outcome
// the payment is recorded and the task is moved to COMPLETED (success) or
// CANCELLED (decline). On an infrastructure error the reservation is rolled
// back, nothing is recorded, and the error is returned for the caller to
// surface as a retryable failure.
func (s *PaymentService) ProcessPayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	task, err := s.store.Get(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}

	payment := &Payment{
		ID:                NewPaymentID(),
		TaskID:            task.ID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		ExternalReference: req.ExternalReference,
		Status:            PaymentStatusPending,
		Type:              PaymentTypeDebit,
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.reserve(payment); err != nil {
		return nil, err
	}

	status, err := s.processor.Execute(ctx, req)
	if err != nil {
		// Attempt failed before reaching a terminal outcome. Release the
		// reference so a retry is not wedged behind a phantom payment.
		s.release(payment)
		return nil, fmt.Errorf("payment execution failed: %w", err)
	}

	s.complete(payment, status)

	taskStatus := TaskStatusCompleted
	if status != PaymentStatusSuccess {
		taskStatus = TaskStatusCancelled
	}
	if _, err := s.store.Update(ctx, task.ID, func(t *Task) {
		t.Status = taskStatus
	}); err != nil {
		return nil, err
	}

	return payment, nil
}

// Payments returns a snapshot of all recorded payments in creation order.
func (s *PaymentService) Payments() []*Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Payment, 0, len(s.order))
	for _, id := range s.order {
		copied := *s.payments[id]
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PaymentsForTask returns recorded payments for one task, oldest first.
func (s *PaymentService) PaymentsForTask(taskID string) []*Payment {
	all := s.Payments()
	out := make([]*Payment, 0, len(all))
	for _, p := range all {
		if p.TaskID == taskID {
			out = append(out, p)
		}
	}
	return out
}

// reserve claims the external reference and registers the pending payment.
// Claim-then-execute keeps the duplicate check and the insert atomic; a plain
// exists-then-insert would let two first-time callers both charge.
func (s *PaymentService) reserve(p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.refs[p.ExternalReference]; exists {
		return NewServiceError(ErrCodeDuplicateReference,
			fmt.Sprintf("external reference %s already used", p.ExternalReference), nil)
	}
	s.refs[p.ExternalReference] = p.ID
	s.payments[p.ID] = p
	s.order = append(s.order, p.ID)
	return nil
}

func (s *PaymentService) release(p *Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.refs, p.ExternalReference)
	delete(s.payments, p.ID)
	for i, id := range s.order {
		if id == p.ID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *PaymentService) complete(p *Payment, status PaymentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Status = status
}
