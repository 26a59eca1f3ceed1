package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storepay/internal/domain"
)

const collectionName = "payments"

type paymentDocument struct {
	ID             string               `bson:"_id"`
	OrderID        string               `bson:"orderId"`
	PaymentID      string               `bson:"paymentId"`
	Amount         primitive.Decimal128 `bson:"amount"`
	Currency       string               `bson:"currency"`
	Status         string               `bson:"status"`
	UserID         string               `bson:"userId"`
	PaymentMethod  string               `bson:"paymentMethod,omitempty"`
	CardHolderName string               `bson:"cardHolderName,omitempty"`
	CardNo         string               `bson:"cardNo,omitempty"`
	CreatedAt      time.Time            `bson:"createdAt"`
}

type PaymentRepository struct {
	coll *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the unique order id index the upsert relies on, and a
// unique index on paymentId for records that carry one.
func (r *PaymentRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "paymentId", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"paymentId": bson.M{"$gt": ""}}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create payment indexes: %w", err)
	}
	return nil
}

func (r *PaymentRepository) UpsertByOrderID(ctx context.Context, p *domain.PaymentRecord) (*domain.PaymentRecord, error) {
	amount, err := primitive.ParseDecimal128(p.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("failed to convert amount %s: %w", p.Amount.String(), err)
	}
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	update := bson.M{
		"$set": bson.M{
			"paymentId":      p.PaymentID,
			"amount":         amount,
			"currency":       p.Currency,
			"status":         string(p.Status),
			"userId":         p.UserID,
			"paymentMethod":  p.PaymentMethod,
			"cardHolderName": p.CardHolderName,
			"cardNo":         p.CardNo,
		},
		"$setOnInsert": bson.M{
			"_id":       id,
			"createdAt": createdAt.Truncate(time.Millisecond),
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc paymentDocument
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"orderId": p.OrderID}, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Two concurrent upserts for a new order id: the loser retries as an update.
		err = r.coll.FindOneAndUpdate(ctx, bson.M{"orderId": p.OrderID}, update, opts).Decode(&doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert payment for order %s: %w", p.OrderID, err)
	}
	return doc.toDomain()
}

func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentRecord, error) {
	var doc paymentDocument
	err := r.coll.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by order id %s: %w", orderID, err)
	}
	return doc.toDomain()
}

func (d *paymentDocument) toDomain() (*domain.PaymentRecord, error) {
	amount, err := decimal.NewFromString(d.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount %s: %w", d.Amount.String(), err)
	}
	return &domain.PaymentRecord{
		ID:             d.ID,
		OrderID:        d.OrderID,
		PaymentID:      d.PaymentID,
		Amount:         amount,
		Currency:       d.Currency,
		Status:         domain.PaymentStatus(d.Status),
		UserID:         d.UserID,
		PaymentMethod:  d.PaymentMethod,
		CardHolderName: d.CardHolderName,
		CardNo:         d.CardNo,
		CreatedAt:      d.CreatedAt,
	}, nil
}
