// Package postgres persists the inventory ledger in PostgreSQL via GORM.
package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/go-order-fulfillment/internal/domains/inventory/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/inventory/ports"
)

var _ ports.Repository = (*Repository)(nil)

type stockRecord struct {
	SKU       string    `gorm:"column:sku;primaryKey"`
	Qty       int32     `gorm:"column:qty;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (stockRecord) TableName() string { return "stock_levels" }

type reservationRecord struct {
	OrderID   string    `gorm:"column:order_id;primaryKey"`
	SKU       string    `gorm:"column:sku;primaryKey"`
	Qty       int32     `gorm:"column:qty;not null"`
	State     string    `gorm:"column:state;not null;index"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (reservationRecord) TableName() string { return "reservations" }

// Repository stores stock levels and reservations in two tables keyed by SKU
// and (order, SKU).
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps the GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) StockLevel(ctx context.Context, sku string) (int32, error) {
	var record stockRecord
	err := r.db.WithContext(ctx).First(&record, "sku = ?", sku).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return record.Qty, nil
}

func (r *Repository) SetStockLevel(ctx context.Context, sku string, qty int32) error {
	record := stockRecord{SKU: sku, Qty: qty}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}},
			DoUpdates: clause.Assignments(map[string]any{"qty": qty, "updated_at": gorm.Expr("NOW()")}),
		}).
		Create(&record).Error
}

func (r *Repository) Get(ctx context.Context, orderID, sku string) (*domain.Reservation, error) {
	var record reservationRecord
	err := r.db.WithContext(ctx).First(&record, "order_id = ? AND sku = ?", orderID, sku).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomain(record), nil
}

func (r *Repository) Save(ctx context.Context, reservation *domain.Reservation) error {
	record := reservationRecord{
		OrderID:   reservation.OrderID,
		SKU:       reservation.SKU,
		Qty:       reservation.Qty,
		State:     string(reservation.State),
		ExpiresAt: reservation.ExpiresAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}, {Name: "sku"}},
			DoUpdates: clause.Assignments(map[string]any{
				"qty":        record.Qty,
				"state":      record.State,
				"expires_at": record.ExpiresAt,
				"updated_at": gorm.Expr("NOW()"),
			}),
		}).
		Create(&record).Error
}

func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Reservation, error) {
	var records []reservationRecord
	if err := r.db.WithContext(ctx).Find(&records, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Reservation, 0, len(records))
	for _, record := range records {
		out = append(out, toDomain(record))
	}
	return out, nil
}

func (r *Repository) ReservedQty(ctx context.Context, sku string, at time.Time) (int32, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&reservationRecord{}).
		Select("COALESCE(SUM(qty), 0)").
		Where("sku = ?", sku).
		Where("state = ? OR (state = ? AND expires_at > ?)",
			string(domain.StateCommitted), string(domain.StateHeld), at).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int32(total), nil
}

func (r *Repository) ListLapsed(ctx context.Context, at time.Time) ([]*domain.Reservation, error) {
	var records []reservationRecord
	err := r.db.WithContext(ctx).
		Where("state = ? AND expires_at <= ?", string(domain.StateHeld), at).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Reservation, 0, len(records))
	for _, record := range records {
		out = append(out, toDomain(record))
	}
	return out, nil
}

func toDomain(record reservationRecord) *domain.Reservation {
	return &domain.Reservation{
		OrderID:   record.OrderID,
		SKU:       record.SKU,
		Qty:       record.Qty,
		State:     domain.State(record.State),
		ExpiresAt: record.ExpiresAt,
	}
}
