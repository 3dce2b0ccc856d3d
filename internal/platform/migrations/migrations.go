package migrations

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Run applies the schema for the bounded contexts. Intended to replace adapter-level automigrate.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&eventRecord{},
		&orderRecord{},
		&stockRecord{},
		&reservationRecord{},
		&authorizationRecord{},
		&instanceRecord{},
		&inboxRecord{},
	)
}

// Event schema mirrors the Postgres event store.
type eventRecord struct {
	StreamID   string    `gorm:"primaryKey;column:stream_id;type:varchar(64)"`
	Version    int64     `gorm:"primaryKey;column:version"`
	Name       string    `gorm:"column:name;type:varchar(64)"`
	Payload    []byte    `gorm:"column:payload;type:jsonb"`
	RecordedAt time.Time `gorm:"column:recorded_at"`
}

func (eventRecord) TableName() string { return "order_events" }

// Order schema mirrors the orders projection adapter.
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

// Stock schema mirrors the inventory adapter.
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

// Authorization schema mirrors the payments adapter.
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

// Instance schema mirrors the fulfillment saga store.
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

// Inbox schema mirrors the dedup inbox.
type inboxRecord struct {
	Handler     string    `gorm:"primaryKey;column:handler;type:varchar(128)"`
	MessageID   string    `gorm:"primaryKey;column:message_id;type:varchar(64)"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (inboxRecord) TableName() string { return "message_inbox" }
