package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/priyamehta/platetrack-backend/pkg/enums"
)

// AuditEntry is one append-only record of a committed state change. Entries
// are never updated or deleted; they are the sole source of truth for dispute
// resolution. SessionID is nullable because directory syncs can run before
// any session exists.
type AuditEntry struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ActorRole enums.ActorRole   `gorm:"column:actor_role;not null" json:"actorRole"`
	SessionID *uuid.UUID        `gorm:"column:session_id;type:uuid" json:"sessionId,omitempty"`
	FamilyID  *uuid.UUID        `gorm:"column:family_id;type:uuid" json:"familyId,omitempty"`
	Action    enums.AuditAction `gorm:"column:action;not null" json:"action"`
	Before    json.RawMessage   `gorm:"column:before;type:jsonb" json:"before,omitempty"`
	After     json.RawMessage   `gorm:"column:after;type:jsonb" json:"after,omitempty"`
	Detail    string            `gorm:"column:detail" json:"detail,omitempty"`
	StationID *string           `gorm:"column:station_id" json:"stationId,omitempty"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// BeforeCreate assigns the id client-side so inserts behave the same on
// Postgres and on the sqlite databases used in tests.
func (e *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
