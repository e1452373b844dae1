package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Record struct {
	bun.BaseModel `bun:"table:outbox_events"`

	ID            int64      `bun:"id,pk,autoincrement"`
	EventID       uuid.UUID  `bun:"event_id,type:uuid"`
	AggregateType string     `bun:"aggregate_type,notnull"`
	AggregateID   string     `bun:"aggregate_id,notnull"`
	EventType     string     `bun:"event_type,notnull"`
	Payload       []byte     `bun:"payload,type:jsonb"`
	CreatedAt     time.Time  `bun:"created_at,notnull"`
	PublishedAt   *time.Time `bun:"published_at"`
}

func (r *Record) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if r.EventID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.EventID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
	}
	return nil
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert writes the event inside the caller's transaction so the event and
// the state change commit or roll back together.
func (r *Repository) Insert(ctx context.Context, db bun.IDB, evt Event) error {
	rec := Record{
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		EventType:     evt.EventType,
		Payload:       evt.Payload,
	}
	_, err := db.NewInsert().Model(&rec).Exec(ctx)
	return err
}

func (r *Repository) FetchUnpublished(ctx context.Context, db bun.IDB, limit int) ([]Record, error) {
	var records []Record
	err := db.NewSelect().
		Model(&records).
		Where("published_at IS NULL").
		Order("id").
		Limit(limit).
		For("UPDATE SKIP LOCKED").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Repository) MarkPublished(ctx context.Context, db bun.IDB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.NewUpdate().
		Model((*Record)(nil)).
		Set("published_at = ?", time.Now().UTC()).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}
