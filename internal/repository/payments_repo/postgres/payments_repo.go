package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"storepay/internal/domain"
)

const paymentColumns = `id, order_id, payment_id, amount, currency, status, user_id, payment_method, card_holder_name, card_no, created_at`

type PaymentRepository struct {
	db domain.Querier
}

func NewPaymentRepository(db domain.Querier) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) UpsertByOrderID(ctx context.Context, p *domain.PaymentRecord) (*domain.PaymentRecord, error) {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_id) DO UPDATE SET
			payment_id = EXCLUDED.payment_id,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			status = EXCLUDED.status,
			user_id = EXCLUDED.user_id,
			payment_method = EXCLUDED.payment_method,
			card_holder_name = EXCLUDED.card_holder_name,
			card_no = EXCLUDED.card_no
		RETURNING ` + paymentColumns

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	row := r.db.QueryRowContext(ctx, query,
		id,
		p.OrderID,
		p.PaymentID,
		p.Amount,
		p.Currency,
		string(p.Status),
		p.UserID,
		p.PaymentMethod,
		p.CardHolderName,
		p.CardNo,
		createdAt,
	)
	stored, err := scanPayment(row)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("payment id %s already belongs to another order: %w", p.PaymentID, err)
		}
		return nil, fmt.Errorf("failed to upsert payment for order %s: %w", p.OrderID, err)
	}
	return stored, nil
}

func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by order id %s: %w", orderID, err)
	}
	return p, nil
}

func scanPayment(row *sql.Row) (*domain.PaymentRecord, error) {
	p := &domain.PaymentRecord{}
	var status string
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.PaymentID,
		&p.Amount,
		&p.Currency,
		&status,
		&p.UserID,
		&p.PaymentMethod,
		&p.CardHolderName,
		&p.CardNo,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	return p, nil
}
