package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/priyamehta/platetrack-backend/pkg/db/models"
	"github.com/priyamehta/platetrack-backend/pkg/enums"
)

// Repository manages persistence for the family directory.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByID(ctx context.Context, id uuid.UUID) (*models.Family, error)
	FindByPhone(ctx context.Context, phone string) (*models.Family, error)
	FindByName(ctx context.Context, surname, headName string) (*models.Family, error)
	UpsertBatch(ctx context.Context, families []models.Family) error
	Search(ctx context.Context, query string, sessionID uuid.UUID, limit int) ([]SearchRow, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a directory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// SearchRow is a family joined with its ledger state for one session. The
// ledger columns are nil when the family has not checked in.
type SearchRow struct {
	ID          uuid.UUID           `json:"id"`
	Surname     string              `json:"surname"`
	HeadName    string              `json:"headName"`
	Phone       string              `json:"phone"`
	Size        int                 `json:"size"`
	Notes       string              `json:"notes,omitempty"`
	Entitled    *int                `json:"entitled,omitempty"`
	Used        *int                `json:"used,omitempty"`
	Remaining   *int                `json:"remaining,omitempty"`
	Status      *enums.RecordStatus `json:"status,omitempty"`
	CheckedInAt *time.Time          `json:"checkedInAt,omitempty"`
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Family, error) {
	var family models.Family
	err := r.db.WithContext(ctx).First(&family, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &family, nil
}

func (r *repository) FindByPhone(ctx context.Context, phone string) (*models.Family, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, nil
	}
	var family models.Family
	err := r.db.WithContext(ctx).
		Where("phone = ?", phone).
		Order("created_at ASC").
		First(&family).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &family, nil
}

func (r *repository) FindByName(ctx context.Context, surname, headName string) (*models.Family, error) {
	var family models.Family
	err := r.db.WithContext(ctx).
		Where("LOWER(surname) = LOWER(?) AND LOWER(head_name) = LOWER(?)", strings.TrimSpace(surname), strings.TrimSpace(headName)).
		Order("created_at ASC").
		First(&family).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &family, nil
}

// UpsertBatch inserts or updates families keyed on id. Re-running the same
// batch is a no-op apart from updated_at, which keeps reconciliation
// idempotent.
func (r *repository) UpsertBatch(ctx context.Context, families []models.Family) error {
	if len(families) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"surname", "head_name", "phone", "size", "notes", "updated_at"}),
		}).
		Create(&families).Error
}

func (r *repository) Search(ctx context.Context, query string, sessionID uuid.UUID, limit int) ([]SearchRow, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	var rows []SearchRow
	err := r.db.WithContext(ctx).
		Table("families").
		Select(`families.id, families.surname, families.head_name, families.phone,
			families.size, families.notes,
			entitlement_records.entitled AS entitled,
			entitlement_records.used AS used,
			entitlement_records.entitled - entitlement_records.used AS remaining,
			entitlement_records.status AS status,
			entitlement_records.checked_in_at AS checked_in_at`).
		Joins("LEFT JOIN entitlement_records ON entitlement_records.family_id = families.id AND entitlement_records.session_id = ?", sessionID).
		Where("LOWER(families.surname) LIKE ? OR LOWER(families.head_name) LIKE ? OR families.phone LIKE ?", pattern, pattern, pattern).
		Order("families.surname ASC, families.head_name ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
