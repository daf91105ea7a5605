package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// TicketRepository persists Ticket records.
type TicketRepository struct {
	db *gorm.DB
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create persists a new ticket.
func (r *TicketRepository) Create(ctx context.Context, t *Ticket) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// FindByID retrieves a ticket by its id.
func (r *TicketRepository) FindByID(ctx context.Context, id string) (*Ticket, error) {
	var t Ticket
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// UpdateStatus persists a new ticket status.
func (r *TicketRepository) UpdateStatus(ctx context.Context, id, status string) error {
	res := r.db.WithContext(ctx).Model(&Ticket{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBoardRefs records the board and report-frame identifiers after the
// board side has been materialized.
func (r *TicketRepository) SetBoardRefs(ctx context.Context, id, boardID, reportFrameID string) error {
	return r.db.WithContext(ctx).Model(&Ticket{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"board_id":        boardID,
			"report_frame_id": reportFrameID,
		}).Error
}

// Delete removes a ticket.
func (r *TicketRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&Ticket{}, "id = ?", id).Error
}
