package store

import (
	"context"

	"gorm.io/gorm"
)

// CommunicationLogRepository persists append-only communication-log entries.
type CommunicationLogRepository struct {
	db *gorm.DB
}

// NewCommunicationLogRepository creates a new communication log repository.
func NewCommunicationLogRepository(db *gorm.DB) *CommunicationLogRepository {
	return &CommunicationLogRepository{db: db}
}

// Create appends an entry.
func (r *CommunicationLogRepository) Create(ctx context.Context, l *CommunicationLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}

// AddSystemMessage appends an entry authored by the bridge itself.
func (r *CommunicationLogRepository) AddSystemMessage(ctx context.Context, ticketID, message string) error {
	return r.Create(ctx, &CommunicationLog{
		TicketID:   ticketID,
		AuthorType: AuthorSystem,
		AuthorName: "Sync Service",
		Message:    message,
	})
}

// FindByTicketID retrieves entries for a ticket, newest first. A limit of
// zero returns everything.
func (r *CommunicationLogRepository) FindByTicketID(ctx context.Context, ticketID string, limit int) ([]*CommunicationLog, error) {
	q := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ls []*CommunicationLog
	err := q.Find(&ls).Error
	return ls, err
}

// CountByTicketID counts entries for a ticket.
func (r *CommunicationLogRepository) CountByTicketID(ctx context.Context, ticketID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&CommunicationLog{}).
		Where("ticket_id = ?", ticketID).
		Count(&n).Error
	return n, err
}

// DeleteByTicketID removes all entries for a ticket. Only used by the ticket
// deletion cascade; individual entries are never deleted.
func (r *CommunicationLogRepository) DeleteByTicketID(ctx context.Context, ticketID string) error {
	return r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Delete(&CommunicationLog{}).Error
}
