package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Apurer/go-order-fulfillment/internal/platform/eventstore"
)

var _ eventstore.Store = (*Store)(nil)

// Store persists event streams in PostgreSQL using GORM. The unique index on
// (stream_id, version) is what enforces optimistic concurrency: two writers
// appending after the same expected version collide on the first inserted row.
type Store struct {
	db *gorm.DB
}

// NewStore wires a PostgreSQL-backed event store. Schema is owned by the
// migrations package; caller manages DB lifecycle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

type eventRecord struct {
	StreamID   string    `gorm:"primaryKey;column:stream_id;type:varchar(64)"`
	Version    int64     `gorm:"primaryKey;column:version"`
	Name       string    `gorm:"column:name;type:varchar(64)"`
	Payload    []byte    `gorm:"column:payload;type:jsonb"`
	RecordedAt time.Time `gorm:"column:recorded_at"`
}

func (eventRecord) TableName() string { return "order_events" }

func (s *Store) Append(ctx context.Context, streamID string, expectedVersion int64, events []eventstore.Event) ([]eventstore.Envelope, error) {
	if s.db == nil {
		return nil, errors.New("postgres event store not configured")
	}
	now := time.Now().UTC()
	appended := make([]eventstore.Envelope, 0, len(events))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		if err := tx.Model(&eventRecord{}).
			Where("stream_id = ?", streamID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&current).Error; err != nil {
			return err
		}
		if current != expectedVersion {
			return eventstore.ErrConcurrencyConflict
		}
		for i, event := range events {
			envelope, err := eventstore.Seal(streamID, expectedVersion+int64(i)+1, event, now)
			if err != nil {
				return err
			}
			record := eventRecord{
				StreamID:   envelope.StreamID,
				Version:    envelope.Version,
				Name:       envelope.Name,
				Payload:    envelope.Payload,
				RecordedAt: envelope.RecordedAt,
			}
			if err := tx.Create(&record).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return eventstore.ErrConcurrencyConflict
				}
				return err
			}
			appended = append(appended, envelope)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appended, nil
}

func (s *Store) Load(ctx context.Context, streamID string) ([]eventstore.Envelope, error) {
	if s.db == nil {
		return nil, errors.New("postgres event store not configured")
	}
	var records []eventRecord
	if err := s.db.WithContext(ctx).
		Where("stream_id = ?", streamID).
		Order("version ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, eventstore.ErrStreamNotFound
	}
	stream := make([]eventstore.Envelope, 0, len(records))
	for _, record := range records {
		stream = append(stream, eventstore.Envelope{
			StreamID:   record.StreamID,
			Version:    record.Version,
			Name:       record.Name,
			Payload:    record.Payload,
			RecordedAt: record.RecordedAt,
		})
	}
	return stream, nil
}
