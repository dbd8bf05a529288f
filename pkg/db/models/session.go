package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session is one live event instance. A partial unique index on is_current
// guarantees at most one current session at the database level.
type Session struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	IsCurrent bool      `gorm:"column:is_current;not null;default:false" json:"isCurrent"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// BeforeCreate assigns the id client-side so inserts behave the same on
// Postgres and on the sqlite databases used in tests.
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
