package sessions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/priyamehta/platetrack-backend/pkg/db/models"
)

// Repository manages persistence for sessions and the session-scoped ledger
// rows that a reset sweeps away.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Current(ctx context.Context) (*models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	ClearCurrent(ctx context.Context, id uuid.UUID) (int64, error)
	Aggregates(ctx context.Context, sessionID uuid.UUID) (SessionAggregates, error)
	DeleteRecords(ctx context.Context, sessionID uuid.UUID) error
}

// SessionAggregates are the totals archived into the RESET audit entry.
type SessionAggregates struct {
	FamiliesCheckedIn int64
	PlatesServed      int64
	Capacity          int64
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sessions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Current(ctx context.Context) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).Where("is_current = ?", true).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) Create(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// ClearCurrent drops the current flag only if the row still holds it. Zero
// rows affected means another reset got there first.
func (r *repository) ClearCurrent(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND is_current = ?", id, true).
		Update("is_current", false)
	return result.RowsAffected, result.Error
}

func (r *repository) Aggregates(ctx context.Context, sessionID uuid.UUID) (SessionAggregates, error) {
	var agg struct {
		Families int64
		Served   int64
		Capacity int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.EntitlementRecord{}).
		Select("COUNT(*) AS families, COALESCE(SUM(used), 0) AS served, COALESCE(SUM(entitled), 0) AS capacity").
		Where("session_id = ?", sessionID).
		Scan(&agg).Error
	if err != nil {
		return SessionAggregates{}, err
	}
	return SessionAggregates{
		FamiliesCheckedIn: agg.Families,
		PlatesServed:      agg.Served,
		Capacity:          agg.Capacity,
	}, nil
}

func (r *repository) DeleteRecords(ctx context.Context, sessionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.EntitlementRecord{}, "session_id = ?", sessionID).Error
}
