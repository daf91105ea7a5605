package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// TaskMappingRepository persists TaskMapping records.
type TaskMappingRepository struct {
	db *gorm.DB
}

// NewTaskMappingRepository creates a new task mapping repository.
func NewTaskMappingRepository(db *gorm.DB) *TaskMappingRepository {
	return &TaskMappingRepository{db: db}
}

// Create persists a new mapping.
func (r *TaskMappingRepository) Create(ctx context.Context, m *TaskMapping) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// CreateBatch persists a set of mappings in one insert.
func (r *TaskMappingRepository) CreateBatch(ctx context.Context, ms []*TaskMapping) error {
	if len(ms) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&ms).Error
}

// FindByID retrieves a mapping by its id.
func (r *TaskMappingRepository) FindByID(ctx context.Context, id string) (*TaskMapping, error) {
	var m TaskMapping
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindByTicketID retrieves all mappings for a ticket ordered by task order.
func (r *TaskMappingRepository) FindByTicketID(ctx context.Context, ticketID string) ([]*TaskMapping, error) {
	var ms []*TaskMapping
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("task_order asc").
		Find(&ms).Error
	return ms, err
}

// FindAll retrieves every mapping. Used by the engine health check to find
// the most recent sync across the whole store.
func (r *TaskMappingRepository) FindAll(ctx context.Context) ([]*TaskMapping, error) {
	var ms []*TaskMapping
	err := r.db.WithContext(ctx).Find(&ms).Error
	return ms, err
}

// FindByBoardWidgetID retrieves the mapping holding a board widget id.
func (r *TaskMappingRepository) FindByBoardWidgetID(ctx context.Context, widgetID string) (*TaskMapping, error) {
	var m TaskMapping
	err := r.db.WithContext(ctx).First(&m, "board_widget_id = ?", widgetID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindByTrackerItemID retrieves the mapping holding a tracker item id.
func (r *TaskMappingRepository) FindByTrackerItemID(ctx context.Context, itemID string) (*TaskMapping, error) {
	var m TaskMapping
	err := r.db.WithContext(ctx).First(&m, "tracker_item_id = ?", itemID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// UpdateCompletion sets the completion flag and stamps synced_at.
func (r *TaskMappingRepository) UpdateCompletion(ctx context.Context, id string, completed bool, syncedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&TaskMapping{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"completed": completed,
			"synced_at": syncedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBoardWidgetID records the board-side widget backing a mapping.
func (r *TaskMappingRepository) SetBoardWidgetID(ctx context.Context, id, widgetID string) error {
	return r.db.WithContext(ctx).Model(&TaskMapping{}).
		Where("id = ?", id).
		Update("board_widget_id", widgetID).Error
}

// SetTrackerItemID records the tracker-side item backing a mapping.
func (r *TaskMappingRepository) SetTrackerItemID(ctx context.Context, id, itemID string) error {
	return r.db.WithContext(ctx).Model(&TaskMapping{}).
		Where("id = ?", id).
		Update("tracker_item_id", itemID).Error
}

// DeleteByTicketID removes all mappings for a ticket. Part of the ticket
// deletion cascade, the only path that ever deletes mappings.
func (r *TaskMappingRepository) DeleteByTicketID(ctx context.Context, ticketID string) error {
	return r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Delete(&TaskMapping{}).Error
}

// Progress summarizes task completion for a ticket.
type Progress struct {
	Total      int64 `json:"total"`
	Completed  int64 `json:"completed"`
	Percentage int   `json:"percentage"`
}

// GetTicketProgress counts completed versus total mappings for a ticket.
func (r *TaskMappingRepository) GetTicketProgress(ctx context.Context, ticketID string) (*Progress, error) {
	var total, completed int64
	if err := r.db.WithContext(ctx).Model(&TaskMapping{}).
		Where("ticket_id = ?", ticketID).
		Count(&total).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&TaskMapping{}).
		Where("ticket_id = ? AND completed = ?", ticketID, true).
		Count(&completed).Error; err != nil {
		return nil, err
	}

	p := &Progress{Total: total, Completed: completed}
	if total > 0 {
		p.Percentage = int(float64(completed)/float64(total)*100 + 0.5)
	}
	return p, nil
}
