package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthorType classifies who wrote a communication-log entry.
type AuthorType string

const (
	AuthorClient   AuthorType = "CLIENT"
	AuthorDesigner AuthorType = "DESIGNER"
	AuthorSystem   AuthorType = "SYSTEM"
)

// Ticket is one project/work order. The sync engine treats it as read-only
// context: it carries the identifiers adapters need to address the board side.
type Ticket struct {
	ID               string `gorm:"type:varchar(36);primaryKey"`
	TicketNumber     string `gorm:"type:varchar(32);uniqueIndex;not null"`
	Title            string `gorm:"type:varchar(255);not null"`
	Description      string `gorm:"type:text"`
	ServiceType      string `gorm:"type:varchar(50);not null"`
	Priority         string `gorm:"type:varchar(20);not null;default:'MEDIUM'"`
	Status           string `gorm:"type:varchar(30);not null;default:'OPEN'"`
	ClientName       string `gorm:"type:varchar(255)"`
	Deadline         *time.Time
	BoardID          string `gorm:"type:varchar(64);index"`
	ReportFrameID    string `gorm:"type:varchar(64)"`
	TrackerProjectID string `gorm:"type:varchar(64)"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Ticket) TableName() string { return "tickets" }

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// TaskMapping correlates one logical task across both platforms. The board
// widget id and tracker item id stay empty until that side is materialized.
// Completed is the authoritative completion flag and is only ever written
// through the sync engine.
type TaskMapping struct {
	ID            string `gorm:"type:varchar(36);primaryKey"`
	TicketID      string `gorm:"type:varchar(36);index;not null"`
	TaskName      string `gorm:"type:varchar(255);not null"`
	TaskOrder     int    `gorm:"not null;default:0"`
	Completed     bool   `gorm:"not null;default:false"`
	BoardWidgetID string `gorm:"type:varchar(64);index"`
	TrackerItemID string `gorm:"type:varchar(64);index"`
	SyncedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (TaskMapping) TableName() string { return "task_mappings" }

func (m *TaskMapping) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// CommunicationLog is an append-only audit record on a ticket. Entries are
// never mutated; they are bulk-deleted only when the owning ticket goes away.
type CommunicationLog struct {
	ID         string     `gorm:"type:varchar(36);primaryKey"`
	TicketID   string     `gorm:"type:varchar(36);index;not null"`
	AuthorType AuthorType `gorm:"type:varchar(16);not null"`
	AuthorName string     `gorm:"type:varchar(255);not null"`
	Message    string     `gorm:"type:text;not null"`
	CreatedAt  time.Time
}

func (CommunicationLog) TableName() string { return "communication_logs" }

func (l *CommunicationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// WebhookEvent is a persisted ingress audit record: one row per structurally
// valid webhook delivery, kept for debugging and the events API.
type WebhookEvent struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	Source    string `gorm:"type:varchar(16);index;not null"`
	EventType string `gorm:"type:varchar(64);not null"`
	Payload   string `gorm:"type:text"`
	Processed bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (WebhookEvent) TableName() string { return "webhook_events" }

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
