// Package postgres stores processed message identities in PostgreSQL so the
// deduplication record survives restarts alongside the domain tables.
package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
)

var _ bus.Inbox = (*Inbox)(nil)

// Inbox persists (handler, message) pairs with a unique index; a conflicting
// insert means the message was already processed.
type Inbox struct {
	db *gorm.DB
}

// NewInbox wires a PostgreSQL-backed inbox. Schema is owned by the migrations
// package; caller manages DB lifecycle.
func NewInbox(db *gorm.DB) *Inbox {
	return &Inbox{db: db}
}

type inboxRecord struct {
	Handler     string    `gorm:"primaryKey;column:handler;type:varchar(128)"`
	MessageID   string    `gorm:"primaryKey;column:message_id;type:varchar(64)"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (inboxRecord) TableName() string { return "message_inbox" }

func (i *Inbox) Processed(ctx context.Context, handler, messageID string) (bool, error) {
	if i.db == nil {
		return false, errors.New("postgres inbox not configured")
	}
	var count int64
	err := i.db.WithContext(ctx).Model(&inboxRecord{}).
		Where("handler = ? AND message_id = ?", handler, messageID).
		Count(&count).Error
	if err != nil {
		return false, bus.Transient(err)
	}
	return count > 0, nil
}

func (i *Inbox) MarkProcessed(ctx context.Context, handler, messageID string) (bool, error) {
	if i.db == nil {
		return false, errors.New("postgres inbox not configured")
	}
	record := inboxRecord{Handler: handler, MessageID: messageID, ProcessedAt: time.Now().UTC()}
	result := i.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		return false, bus.Transient(result.Error)
	}
	return result.RowsAffected > 0, nil
}
