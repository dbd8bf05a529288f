package directory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/priyamehta/platetrack-backend/pkg/db/models"
	"github.com/priyamehta/platetrack-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:directory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Family{},
		&models.Session{},
		&models.EntitlementRecord{},
	))
	return db
}

func TestFindByNameIsCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	family := models.Family{Surname: "Okafor", HeadName: "Chidi", Size: 4}
	require.NoError(t, db.Create(&family).Error)

	found, err := repo.FindByName(ctx, "okafor", "CHIDI")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, family.ID, found.ID)

	missing, err := repo.FindByName(ctx, "okafor", "someone else")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestFindByPhone(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	family := models.Family{Surname: "Patel", HeadName: "Raj", Phone: "555-0100", Size: 5}
	require.NoError(t, db.Create(&family).Error)

	found, err := repo.FindByPhone(ctx, "555-0100")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, family.ID, found.ID)

	none, err := repo.FindByPhone(ctx, "")
	require.NoError(t, err)
	require.Nil(t, none, "blank phone must not match anything")
}

func TestUpsertBatchIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	id := uuid.New()
	batch := []models.Family{
		{ID: id, Surname: "Patel", HeadName: "Raj", Phone: "555-0100", Size: 5},
	}
	require.NoError(t, repo.UpsertBatch(ctx, batch))

	batch[0].Size = 6
	require.NoError(t, repo.UpsertBatch(ctx, batch))

	var count int64
	require.NoError(t, db.Model(&models.Family{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var fresh models.Family
	require.NoError(t, db.First(&fresh, "id = ?", id).Error)
	require.Equal(t, 6, fresh.Size)
}

func TestSearchJoinsLedgerState(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	session := models.Session{Name: "saturday lunch", IsCurrent: true}
	require.NoError(t, db.Create(&session).Error)

	checkedIn := models.Family{Surname: "Shah", HeadName: "Meera", Phone: "555-0101", Size: 4}
	walkUp := models.Family{Surname: "Shahidi", HeadName: "Omid", Size: 2}
	require.NoError(t, db.Create(&checkedIn).Error)
	require.NoError(t, db.Create(&walkUp).Error)

	require.NoError(t, db.Create(&models.EntitlementRecord{
		SessionID: session.ID, FamilyID: checkedIn.ID,
		Entitled: 5, Used: 2, Status: enums.RecordStatusActive,
	}).Error)

	rows, err := repo.Search(ctx, "shah", session.ID, 25)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[uuid.UUID]SearchRow{}
	for _, row := range rows {
		byID[row.ID] = row
	}

	active := byID[checkedIn.ID]
	require.NotNil(t, active.Entitled)
	require.Equal(t, 5, *active.Entitled)
	require.NotNil(t, active.Remaining)
	require.Equal(t, 3, *active.Remaining)

	pending := byID[walkUp.ID]
	require.Nil(t, pending.Entitled, "families not checked in carry no ledger columns")
	require.Nil(t, pending.Status)

	// Phone fragments match too.
	rows, err = repo.Search(ctx, "555-0101", session.ID, 25)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, checkedIn.ID, rows[0].ID)
}
