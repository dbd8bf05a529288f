package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Family is one registered household in the directory. Rows are written only
// by reconciliation; everything else treats the directory as read-only.
type Family struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Surname   string    `gorm:"column:surname;not null" json:"surname"`
	HeadName  string    `gorm:"column:head_name;not null" json:"headName"`
	Phone     string    `gorm:"column:phone" json:"phone"`
	Size      int       `gorm:"column:size;not null" json:"size"`
	Notes     string    `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// BeforeCreate assigns the id client-side so inserts behave the same on
// Postgres and on the sqlite databases used in tests.
func (f *Family) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
