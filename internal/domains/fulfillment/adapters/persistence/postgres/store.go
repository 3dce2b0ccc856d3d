// Package postgres persists saga instances in PostgreSQL via GORM. Line
// items and held SKUs are flattened into parallel array columns.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/ports"
)

var _ ports.InstanceStore = (*Store)(nil)

type instanceRecord struct {
	OrderID           string         `gorm:"column:order_id;primaryKey"`
	Status            string         `gorm:"column:status;not null;index"`
	SKUs              pq.StringArray `gorm:"column:skus;type:text[]"`
	Quantities        pq.Int64Array  `gorm:"column:quantities;type:bigint[]"`
	UnitPriceCents    pq.Int64Array  `gorm:"column:unit_price_cents;type:bigint[]"`
	HeldSKUs          pq.StringArray `gorm:"column:held_skus;type:text[]"`
	PaymentAuthorized bool           `gorm:"column:payment_authorized;not null"`
	StockCommitted    bool           `gorm:"column:stock_committed;not null"`
	PaymentCaptured   bool           `gorm:"column:payment_captured;not null"`
	ReleaseAcked      bool           `gorm:"column:release_acked;not null"`
	PaymentFreed      bool           `gorm:"column:payment_freed;not null"`
	FailureReason     string         `gorm:"column:failure_reason"`
	Deadline          time.Time      `gorm:"column:deadline;not null;index"`
	StartedAt         time.Time      `gorm:"column:started_at;not null"`
	UpdatedAt         time.Time      `gorm:"column:updated_at"`
}

func (instanceRecord) TableName() string { return "saga_instances" }

// Store persists one row per saga.
type Store struct {
	db *gorm.DB
}

// NewStore wraps the GORM handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, orderID string) (*domain.Instance, error) {
	var record instanceRecord
	err := s.db.WithContext(ctx).First(&record, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInstanceNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomain(record), nil
}

func (s *Store) Save(ctx context.Context, instance *domain.Instance) error {
	record := toRecord(instance)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"status":             record.Status,
				"held_skus":          record.HeldSKUs,
				"payment_authorized": record.PaymentAuthorized,
				"stock_committed":    record.StockCommitted,
				"payment_captured":   record.PaymentCaptured,
				"release_acked":      record.ReleaseAcked,
				"payment_freed":      record.PaymentFreed,
				"failure_reason":     record.FailureReason,
				"deadline":           record.Deadline,
				"updated_at":         gorm.Expr("NOW()"),
			}),
		}).
		Create(&record).Error
}

func (s *Store) ListActive(ctx context.Context) ([]*domain.Instance, error) {
	var records []instanceRecord
	err := s.db.WithContext(ctx).
		Where("status NOT IN ?", []string{string(domain.StatusFulfilled), string(domain.StatusCancelled)}).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return toDomainAll(records), nil
}

func (s *Store) ListOverdue(ctx context.Context, at time.Time) ([]*domain.Instance, error) {
	var records []instanceRecord
	err := s.db.WithContext(ctx).
		Where("status IN ? AND deadline <= ?",
			[]string{string(domain.StatusRunning), string(domain.StatusCommitting)}, at).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return toDomainAll(records), nil
}

func toRecord(instance *domain.Instance) instanceRecord {
	record := instanceRecord{
		OrderID:           instance.OrderID,
		Status:            string(instance.Status),
		PaymentAuthorized: instance.PaymentAuthorized,
		StockCommitted:    instance.StockCommitted,
		PaymentCaptured:   instance.PaymentCaptured,
		ReleaseAcked:      instance.ReleaseAcked,
		PaymentFreed:      instance.PaymentFreed,
		FailureReason:     instance.FailureReason,
		Deadline:          instance.Deadline,
		StartedAt:         instance.StartedAt,
	}
	for _, item := range instance.Items {
		record.SKUs = append(record.SKUs, item.SKU)
		record.Quantities = append(record.Quantities, int64(item.Qty))
		record.UnitPriceCents = append(record.UnitPriceCents, item.UnitPriceCents)
	}
	for sku, held := range instance.HeldSKUs {
		if held {
			record.HeldSKUs = append(record.HeldSKUs, sku)
		}
	}
	return record
}

func toDomain(record instanceRecord) *domain.Instance {
	instance := &domain.Instance{
		OrderID:           record.OrderID,
		Status:            domain.Status(record.Status),
		HeldSKUs:          map[string]bool{},
		PaymentAuthorized: record.PaymentAuthorized,
		StockCommitted:    record.StockCommitted,
		PaymentCaptured:   record.PaymentCaptured,
		ReleaseAcked:      record.ReleaseAcked,
		PaymentFreed:      record.PaymentFreed,
		FailureReason:     record.FailureReason,
		Deadline:          record.Deadline,
		StartedAt:         record.StartedAt,
	}
	for i := range record.SKUs {
		item := domain.Item{SKU: record.SKUs[i]}
		if i < len(record.Quantities) {
			item.Qty = int32(record.Quantities[i])
		}
		if i < len(record.UnitPriceCents) {
			item.UnitPriceCents = record.UnitPriceCents[i]
		}
		instance.Items = append(instance.Items, item)
	}
	for _, sku := range record.HeldSKUs {
		instance.HeldSKUs[sku] = true
	}
	return instance
}

func toDomainAll(records []instanceRecord) []*domain.Instance {
	out := make([]*domain.Instance, 0, len(records))
	for _, record := range records {
		out = append(out, toDomain(record))
	}
	return out
}
