package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/priyamehta/platetrack-backend/pkg/enums"
)

// EntitlementRecord is the ledger row for one (session, family) pair, created
// on first check-in. Invariant: 0 <= used <= entitled at all times; the serve
// path enforces it with a conditional update keyed on the old used value.
type EntitlementRecord struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID   uuid.UUID          `gorm:"column:session_id;type:uuid;not null;uniqueIndex:uq_entitlement_records_session_family" json:"sessionId"`
	FamilyID    uuid.UUID          `gorm:"column:family_id;type:uuid;not null;uniqueIndex:uq_entitlement_records_session_family" json:"familyId"`
	Entitled    int                `gorm:"column:entitled;not null" json:"entitled"`
	Used        int                `gorm:"column:used;not null;default:0" json:"used"`
	CheckedInAt *time.Time         `gorm:"column:checked_in_at" json:"checkedInAt,omitempty"`
	Status      enums.RecordStatus `gorm:"column:status;not null" json:"status"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// Remaining is the derived count gating further serve calls.
func (r EntitlementRecord) Remaining() int {
	return r.Entitled - r.Used
}

// BeforeCreate assigns the id client-side so inserts behave the same on
// Postgres and on the sqlite databases used in tests.
func (r *EntitlementRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
