package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/priyamehta/platetrack-backend/pkg/db/models"
	"github.com/priyamehta/platetrack-backend/pkg/enums"
)

// Repository manages persistence for entitlement records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, sessionID, familyID uuid.UUID) (*models.EntitlementRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.EntitlementRecord, error)
	Create(ctx context.Context, record *models.EntitlementRecord) error
	ServeGuarded(ctx context.Context, id uuid.UUID, expectedUsed, newUsed int, status enums.RecordStatus) (int64, error)
	Update(ctx context.Context, id uuid.UUID, entitled, used int, status enums.RecordStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, sessionID, familyID uuid.UUID) (*models.EntitlementRecord, error) {
	var record models.EntitlementRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND family_id = ?", sessionID, familyID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.EntitlementRecord, error) {
	var record models.EntitlementRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) Create(ctx context.Context, record *models.EntitlementRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ServeGuarded applies a serve with an optimistic guard on the previously
// read used value. Zero rows affected means another station moved the
// counter (or closed the record) first; the caller surfaces that as a
// conflict instead of retrying.
func (r *repository) ServeGuarded(ctx context.Context, id uuid.UUID, expectedUsed, newUsed int, status enums.RecordStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.EntitlementRecord{}).
		Where("id = ? AND used = ? AND status <> ?", id, expectedUsed, enums.RecordStatusClosed).
		Updates(map[string]any{
			"used":   newUsed,
			"status": status,
		})
	return result.RowsAffected, result.Error
}

// Update writes counters and status authoritatively. Admin corrections are
// last-writer-wins, so no guard here.
func (r *repository) Update(ctx context.Context, id uuid.UUID, entitled, used int, status enums.RecordStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.EntitlementRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"entitled": entitled,
			"used":     used,
			"status":   status,
		}).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.EntitlementRecord{}, "id = ?", id).Error
}
