package store

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// WebhookEventRepository persists webhook ingress audit records.
type WebhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository.
func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Create persists a new event record.
func (r *WebhookEventRepository) Create(ctx context.Context, e *WebhookEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// MarkProcessed flags an event as handled.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&WebhookEvent{}).
		Where("id = ?", id).
		Update("processed", true).Error
}

// List retrieves events newest first, optionally filtered by source.
func (r *WebhookEventRepository) List(ctx context.Context, source string, limit, offset int) ([]*WebhookEvent, error) {
	q := r.db.WithContext(ctx).Order("created_at desc")
	if source != "" {
		q = q.Where("source = ?", source)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var es []*WebhookEvent
	err := q.Find(&es).Error
	return es, err
}

// Count counts events, optionally filtered by source.
func (r *WebhookEventRepository) Count(ctx context.Context, source string) (int64, error) {
	q := r.db.WithContext(ctx).Model(&WebhookEvent{})
	if source != "" {
		q = q.Where("source = ?", source)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// ProcessingStats summarizes ingress volume.
type ProcessingStats struct {
	Total     int64            `json:"total"`
	Processed int64            `json:"processed"`
	Pending   int64            `json:"pending"`
	BySource  map[string]int64 `json:"by_source"`
}

// GetProcessingStats aggregates counts across all stored events.
func (r *WebhookEventRepository) GetProcessingStats(ctx context.Context) (*ProcessingStats, error) {
	stats := &ProcessingStats{BySource: make(map[string]int64)}

	if err := r.db.WithContext(ctx).Model(&WebhookEvent{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&WebhookEvent{}).
		Where("processed = ?", true).
		Count(&stats.Processed).Error; err != nil {
		return nil, err
	}
	stats.Pending = stats.Total - stats.Processed

	type row struct {
		Source string
		N      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&WebhookEvent{}).
		Select("source, count(*) as n").
		Group("source").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, rw := range rows {
		stats.BySource[rw.Source] = rw.N
	}
	return stats, nil
}

// DeleteProcessedBefore removes processed events older than the cutoff and
// returns how many rows went away.
func (r *WebhookEventRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("processed = ? AND created_at < ?", true, cutoff).
		Delete(&WebhookEvent{})
	return res.RowsAffected, res.Error
}
