// Package postgres persists payment authorizations in PostgreSQL via GORM.
package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/ports"
)

var _ ports.Repository = (*Repository)(nil)

type authorizationRecord struct {
	OrderID       string    `gorm:"column:order_id;primaryKey"`
	AmountCents   int64     `gorm:"column:amount_cents;not null"`
	CapturedCents int64     `gorm:"column:captured_cents;not null"`
	State         string    `gorm:"column:state;not null;index"`
	Reason        string    `gorm:"column:reason"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (authorizationRecord) TableName() string { return "payment_authorizations" }

// Repository stores one authorization row per order.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps the GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, orderID string) (*domain.Authorization, error) {
	var record authorizationRecord
	err := r.db.WithContext(ctx).First(&record, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAuthorizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Authorization{
		OrderID:       record.OrderID,
		AmountCents:   record.AmountCents,
		CapturedCents: record.CapturedCents,
		State:         domain.State(record.State),
		Reason:        record.Reason,
		CreatedAt:     record.CreatedAt,
	}, nil
}

func (r *Repository) Save(ctx context.Context, authorization *domain.Authorization) error {
	record := authorizationRecord{
		OrderID:       authorization.OrderID,
		AmountCents:   authorization.AmountCents,
		CapturedCents: authorization.CapturedCents,
		State:         string(authorization.State),
		Reason:        authorization.Reason,
		CreatedAt:     authorization.CreatedAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"captured_cents": record.CapturedCents,
				"state":          record.State,
				"reason":         record.Reason,
				"updated_at":     gorm.Expr("NOW()"),
			}),
		}).
		Create(&record).Error
}
