package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/priyamehta/platetrack-backend/pkg/db/models"
	"github.com/priyamehta/platetrack-backend/pkg/enums"
	pkgerrors "github.com/priyamehta/platetrack-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:audit_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuditEntry{}))
	return db
}

func seedEntries(t *testing.T, db *gorm.DB, sessionID uuid.UUID, familyID *uuid.UUID, n int) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		entry := models.AuditEntry{
			ID:        uuid.New(),
			ActorRole: enums.ActorRoleVolunteer,
			SessionID: &sessionID,
			FamilyID:  familyID,
			Action:    enums.AuditActionServe,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&entry).Error)
	}
}

func TestListPaginatesReverseChronologically(t *testing.T) {
	db := newTestDB(t)
	sessionID := uuid.New()
	seedEntries(t, db, sessionID, nil, 7)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	ctx := context.Background()

	page1, err := svc.List(ctx, ListParams{SessionID: sessionID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, page1.Items, 3)
	require.NotEmpty(t, page1.Cursor)
	require.True(t, page1.Items[0].CreatedAt.After(page1.Items[1].CreatedAt))

	page2, err := svc.List(ctx, ListParams{SessionID: sessionID, Limit: 3, Cursor: page1.Cursor})
	require.NoError(t, err)
	require.Len(t, page2.Items, 3)
	require.True(t, page1.Items[2].CreatedAt.After(page2.Items[0].CreatedAt))

	page3, err := svc.List(ctx, ListParams{SessionID: sessionID, Limit: 3, Cursor: page2.Cursor})
	require.NoError(t, err)
	require.Len(t, page3.Items, 1)
	require.Empty(t, page3.Cursor)
}

func TestListFiltersByFamily(t *testing.T) {
	db := newTestDB(t)
	sessionID := uuid.New()
	familyID := uuid.New()
	otherID := uuid.New()
	seedEntries(t, db, sessionID, &familyID, 2)
	seedEntries(t, db, sessionID, &otherID, 3)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	result, err := svc.List(context.Background(), ListParams{SessionID: sessionID, FamilyID: &familyID})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	for _, entry := range result.Items {
		require.Equal(t, familyID, *entry.FamilyID)
	}
}

func TestListValidation(t *testing.T) {
	svc, err := NewService(NewRepository(newTestDB(t)))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.List(ctx, ListParams{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.List(ctx, ListParams{SessionID: uuid.New(), Cursor: "%%%not-base64%%%"})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
