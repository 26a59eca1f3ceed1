// Package memory is an in-process PaymentRepository for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"storepay/internal/domain"
)

type PaymentRepository struct {
	mu        sync.Mutex
	byOrderID map[string]domain.PaymentRecord
	writes    int
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{byOrderID: make(map[string]domain.PaymentRecord)}
}

func (r *PaymentRepository) UpsertByOrderID(ctx context.Context, p *domain.PaymentRecord) (*domain.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.PaymentID != "" {
		for orderID, other := range r.byOrderID {
			if orderID != p.OrderID && other.PaymentID == p.PaymentID {
				return nil, fmt.Errorf("payment id %s already belongs to order %s", p.PaymentID, orderID)
			}
		}
	}

	rec := *p
	if existing, ok := r.byOrderID[p.OrderID]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
	}
	r.byOrderID[p.OrderID] = rec
	r.writes++

	out := rec
	return &out, nil
}

func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byOrderID[orderID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return &rec, nil
}

// Len returns the number of stored records.
func (r *PaymentRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byOrderID)
}

// Writes returns the number of successful upserts.
func (r *PaymentRepository) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}
