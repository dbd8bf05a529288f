package sessions

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/priyamehta/platetrack-backend/internal/audit"
	"github.com/priyamehta/platetrack-backend/pkg/db/models"
	"github.com/priyamehta/platetrack-backend/pkg/enums"
	pkgerrors "github.com/priyamehta/platetrack-backend/pkg/errors"
	"github.com/priyamehta/platetrack-backend/pkg/outbox"
	"github.com/priyamehta/platetrack-backend/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:sessions_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Family{},
		&models.Session{},
		&models.EntitlementRecord{},
		&models.AuditEntry{},
		&models.OutboxEvent{},
	))
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(
		NewRepository(db),
		audit.NewRepository(db),
		outbox.NewService(outbox.NewRepository(db), nil),
		gormTxRunner{db: db},
		nil,
	)
	require.NoError(t, err)
	return svc
}

func admin() types.Actor {
	return types.Actor{Name: "Lead", Role: enums.ActorRoleAdmin}
}

func TestCurrentWithoutSession(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)

	_, err := svc.Current(context.Background())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestStartNewRequiresAdminAndName(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()

	_, err := svc.StartNew(ctx, "friday dinner", types.Actor{Role: enums.ActorRoleVolunteer})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeForbidden, typed.Code())

	_, err = svc.StartNew(ctx, "   ", admin())
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestStartNewArchivesPreviousSession(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()

	first, err := svc.StartNew(ctx, "friday dinner", admin())
	require.NoError(t, err)
	require.Nil(t, first.Archived, "nothing to archive on the first session")
	require.True(t, first.Session.IsCurrent)

	// Two families checked in, seven plates served against a capacity of nine.
	famA := models.Family{Surname: "Patel", HeadName: "Raj", Size: 5}
	famB := models.Family{Surname: "Okafor", HeadName: "Chidi", Size: 4}
	require.NoError(t, db.Create(&famA).Error)
	require.NoError(t, db.Create(&famB).Error)
	require.NoError(t, db.Create(&models.EntitlementRecord{
		SessionID: first.Session.ID, FamilyID: famA.ID, Entitled: 5, Used: 5,
		Status: enums.RecordStatusExhausted,
	}).Error)
	require.NoError(t, db.Create(&models.EntitlementRecord{
		SessionID: first.Session.ID, FamilyID: famB.ID, Entitled: 4, Used: 2,
		Status: enums.RecordStatusActive,
	}).Error)

	second, err := svc.StartNew(ctx, "saturday lunch", admin())
	require.NoError(t, err)
	require.NotNil(t, second.Archived)
	require.Equal(t, "friday dinner", second.Archived.SessionName)
	require.EqualValues(t, 2, second.Archived.FamiliesCheckedIn)
	require.EqualValues(t, 7, second.Archived.PlatesServed)
	require.EqualValues(t, 9, second.Archived.Capacity)

	// Old ledger rows are gone; only the summary survives in the audit log.
	var recordCount int64
	require.NoError(t, db.Model(&models.EntitlementRecord{}).Count(&recordCount).Error)
	require.EqualValues(t, 0, recordCount)

	var entry models.AuditEntry
	require.NoError(t, db.Where("action = ?", enums.AuditActionReset).First(&entry).Error)
	require.NotNil(t, entry.SessionID)
	require.Equal(t, first.Session.ID, *entry.SessionID)

	var summary audit.ResetSummary
	require.NoError(t, json.Unmarshal(entry.Before, &summary))
	require.EqualValues(t, 7, summary.PlatesServed)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, second.Session.ID, current.ID)

	var currentCount int64
	require.NoError(t, db.Model(&models.Session{}).Where("is_current = ?", true).Count(&currentCount).Error)
	require.EqualValues(t, 1, currentCount)
}
