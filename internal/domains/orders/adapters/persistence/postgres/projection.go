package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/ports"
)

var _ ports.Projection = (*Projection)(nil)

// Projection maintains the orders read-model table in PostgreSQL.
type Projection struct {
	db *gorm.DB
}

// NewProjection wires a PostgreSQL-backed read model. Schema is owned by the
// migrations package; caller manages DB lifecycle.
func NewProjection(db *gorm.DB) *Projection {
	return &Projection{db: db}
}

// orderRecord flattens the folded order for listing; line items are stored as
// parallel arrays, the stream remains the source of truth.
type orderRecord struct {
	ID             string         `gorm:"primaryKey;column:id;type:varchar(64)"`
	Status         string         `gorm:"column:status;type:varchar(32);index"`
	FailureReason  string         `gorm:"column:failure_reason"`
	SKUs           pq.StringArray `gorm:"column:skus;type:text[]"`
	Quantities     pq.Int64Array  `gorm:"column:quantities;type:bigint[]"`
	UnitPriceCents pq.Int64Array  `gorm:"column:unit_price_cents;type:bigint[]"`
	TotalCents     int64          `gorm:"column:total_cents"`
	Version        int64          `gorm:"column:version"`
	PlacedAt       time.Time      `gorm:"column:placed_at;index"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "order_projections" }

func (p *Projection) Upsert(ctx context.Context, order *domain.Order) error {
	if p.db == nil {
		return errors.New("postgres projection not configured")
	}
	if order == nil || order.ID == "" {
		return errors.New("order is nil or missing identity")
	}
	record := toRecord(order)
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"status":         record.Status,
				"failure_reason": record.FailureReason,
				"total_cents":    record.TotalCents,
				"version":        record.Version,
				"updated_at":     gorm.Expr("NOW()"),
			}),
		}).Create(&record).Error
}

func (p *Projection) List(ctx context.Context) ([]*domain.Order, error) {
	if p.db == nil {
		return nil, errors.New("postgres projection not configured")
	}
	var records []orderRecord
	if err := p.db.WithContext(ctx).Order("placed_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	list := make([]*domain.Order, 0, len(records))
	for _, record := range records {
		list = append(list, record.toDomain())
	}
	return list, nil
}

func toRecord(order *domain.Order) orderRecord {
	record := orderRecord{
		ID:            order.ID,
		Status:        string(order.Status),
		FailureReason: order.FailureReason,
		TotalCents:    order.TotalCents(),
		Version:       order.Version,
		PlacedAt:      order.PlacedAt,
		UpdatedAt:     time.Now().UTC(),
	}
	for _, item := range order.Items {
		record.SKUs = append(record.SKUs, item.SKU)
		record.Quantities = append(record.Quantities, int64(item.Quantity))
		record.UnitPriceCents = append(record.UnitPriceCents, item.UnitPriceCents)
	}
	return record
}

func (r orderRecord) toDomain() *domain.Order {
	order := &domain.Order{
		ID:            r.ID,
		Status:        domain.Status(r.Status),
		FailureReason: r.FailureReason,
		Version:       r.Version,
		PlacedAt:      r.PlacedAt,
	}
	for i := range r.SKUs {
		item := domain.LineItem{SKU: r.SKUs[i]}
		if i < len(r.Quantities) {
			item.Quantity = int32(r.Quantities[i])
		}
		if i < len(r.UnitPriceCents) {
			item.UnitPriceCents = r.UnitPriceCents[i]
		}
		order.Items = append(order.Items, item)
	}
	return order
}
