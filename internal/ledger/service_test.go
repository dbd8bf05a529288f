package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/priyamehta/platetrack-backend/internal/audit"
	"github.com/priyamehta/platetrack-backend/internal/directory"
	"github.com/priyamehta/platetrack-backend/internal/sessions"
	"github.com/priyamehta/platetrack-backend/pkg/db/models"
	"github.com/priyamehta/platetrack-backend/pkg/enums"
	pkgerrors "github.com/priyamehta/platetrack-backend/pkg/errors"
	"github.com/priyamehta/platetrack-backend/pkg/outbox"
	"github.com/priyamehta/platetrack-backend/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
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

type fixture struct {
	db      *gorm.DB
	svc     Service
	session models.Session
	family  models.Family
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	session := models.Session{Name: "saturday lunch", IsCurrent: true}
	require.NoError(t, db.Create(&session).Error)
	family := models.Family{Surname: "Shah", HeadName: "Meera", Phone: "555-0101", Size: 4}
	require.NoError(t, db.Create(&family).Error)

	svc, err := NewService(
		NewRepository(db),
		directory.NewRepository(db),
		sessions.NewRepository(db),
		audit.NewRepository(db),
		outbox.NewService(outbox.NewRepository(db), nil),
		gormTxRunner{db: db},
		nil,
		nil,
	)
	require.NoError(t, err)

	return &fixture{db: db, svc: svc, session: session, family: family}
}

func volunteer() types.Actor {
	station := "station-1"
	return types.Actor{Name: "Ana", Role: enums.ActorRoleVolunteer, StationID: &station}
}

func admin() types.Actor {
	return types.Actor{Name: "Lead", Role: enums.ActorRoleAdmin}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func TestCheckInAndServeUntilExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.CheckIn(ctx, CheckInParams{
		SessionID:   f.session.ID,
		FamilyID:    f.family.ID,
		ExtraGuests: 1,
		Actor:       volunteer(),
	})
	require.NoError(t, err)
	require.Equal(t, 5, record.Entitled)
	require.Equal(t, 0, record.Used)
	require.Equal(t, enums.RecordStatusActive, record.Status)
	require.NotNil(t, record.CheckedInAt)

	record, err = f.svc.Serve(ctx, ServeParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Quantity: 2, Actor: volunteer(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, record.Used)
	require.Equal(t, 3, record.Remaining())

	record, err = f.svc.Serve(ctx, ServeParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Quantity: 3, Actor: volunteer(),
	})
	require.NoError(t, err)
	require.Equal(t, 5, record.Used)
	require.Equal(t, enums.RecordStatusExhausted, record.Status)

	_, err = f.svc.Serve(ctx, ServeParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Quantity: 1, Actor: volunteer(),
	})
	requireCode(t, err, pkgerrors.CodeInsufficientRemaining)

	var auditCount int64
	require.NoError(t, f.db.Model(&models.AuditEntry{}).Count(&auditCount).Error)
	require.EqualValues(t, 3, auditCount, "rejected serve must not leave an audit entry")

	var eventCount int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).Count(&eventCount).Error)
	require.EqualValues(t, 3, eventCount, "rejected serve must not leave an outbox event")
}

func TestCheckInClampsNegativeExtraGuests(t *testing.T) {
	f := newFixture(t)

	record, err := f.svc.CheckIn(context.Background(), CheckInParams{
		SessionID:   f.session.ID,
		FamilyID:    f.family.ID,
		ExtraGuests: -3,
		Actor:       volunteer(),
	})
	require.NoError(t, err)
	require.Equal(t, f.family.Size, record.Entitled)
}

func TestCheckInDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, CheckInParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Actor: volunteer(),
	})
	require.NoError(t, err)

	_, err = f.svc.CheckIn(ctx, CheckInParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Actor: volunteer(),
	})
	requireCode(t, err, pkgerrors.CodeAlreadyCheckedIn)
}

func TestCheckInUnknownFamily(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CheckIn(context.Background(), CheckInParams{
		SessionID: f.session.ID, FamilyID: uuid.New(), Actor: volunteer(),
	})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestServeRequiresCheckIn(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Serve(context.Background(), ServeParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Quantity: 1, Actor: volunteer(),
	})
	requireCode(t, err, pkgerrors.CodeNotCheckedIn)
}

func TestServeRejectsNonCurrentSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Serve(context.Background(), ServeParams{
		SessionID: uuid.New(), FamilyID: f.family.ID, Quantity: 1, Actor: volunteer(),
	})
	requireCode(t, err, pkgerrors.CodeConflict)
}

// raceTxRunner simulates another station sneaking a serve in between this
// station's read and its guarded write.
type raceTxRunner struct {
	db       *gorm.DB
	recordID uuid.UUID
	raced    bool
}

func (r *raceTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if !r.raced {
		r.raced = true
		err := r.db.Model(&models.EntitlementRecord{}).
			Where("id = ?", r.recordID).
			Update("used", gorm.Expr("used + 1")).Error
		if err != nil {
			return err
		}
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

func TestServeLosesRaceToAnotherStation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.CheckIn(ctx, CheckInParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, ExtraGuests: 1, Actor: volunteer(),
	})
	require.NoError(t, err)

	runner := &raceTxRunner{db: f.db, recordID: record.ID}
	svc, err := NewService(
		NewRepository(f.db),
		directory.NewRepository(f.db),
		sessions.NewRepository(f.db),
		audit.NewRepository(f.db),
		outbox.NewService(outbox.NewRepository(f.db), nil),
		runner,
		nil,
		nil,
	)
	require.NoError(t, err)

	_, err = svc.Serve(ctx, ServeParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Quantity: 2, Actor: volunteer(),
	})
	requireCode(t, err, pkgerrors.CodeConcurrencyConflict)

	var fresh models.EntitlementRecord
	require.NoError(t, f.db.First(&fresh, "id = ?", record.ID).Error)
	require.Equal(t, 1, fresh.Used, "only the winning station's serve may count")

	var serveAudits int64
	require.NoError(t, f.db.Model(&models.AuditEntry{}).
		Where("action = ?", enums.AuditActionServe).
		Count(&serveAudits).Error)
	require.EqualValues(t, 0, serveAudits)

	// The losing station retries with fresh data and succeeds.
	record2, err := svc.Serve(ctx, ServeParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Quantity: 2, Actor: volunteer(),
	})
	require.NoError(t, err)
	require.Equal(t, 3, record2.Used)
}

func TestAdjustCorrectsCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, CheckInParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Actor: volunteer(),
	})
	require.NoError(t, err)
	_, err = f.svc.Serve(ctx, ServeParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Quantity: 4, Actor: volunteer(),
	})
	require.NoError(t, err)

	_, err = f.svc.Adjust(ctx, AdjustParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Delta: 1, Reason: "miscount", Actor: volunteer(),
	})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Adjust(ctx, AdjustParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Delta: 1, Actor: admin(),
	})
	requireCode(t, err, pkgerrors.CodeValidation)

	// Overshoot: entitled rises to keep used <= entitled.
	record, err := f.svc.Adjust(ctx, AdjustParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Delta: 2, Reason: "two plates uncounted", Actor: admin(),
	})
	require.NoError(t, err)
	require.Equal(t, 6, record.Used)
	require.Equal(t, 6, record.Entitled)
	require.Equal(t, enums.RecordStatusExhausted, record.Status)

	// Downward correction reactivates the record and clamps at zero.
	record, err = f.svc.Adjust(ctx, AdjustParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Delta: -10, Reason: "recount from tickets", Actor: admin(),
	})
	require.NoError(t, err)
	require.Equal(t, 0, record.Used)
	require.Equal(t, enums.RecordStatusActive, record.Status)
}

func TestSetStatusCloseAndReopen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, CheckInParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Actor: volunteer(),
	})
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, SetStatusParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Status: enums.RecordStatusClosed, Actor: volunteer(),
	})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.SetStatus(ctx, SetStatusParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Status: enums.RecordStatusExhausted, Actor: admin(),
	})
	requireCode(t, err, pkgerrors.CodeValidation)

	record, err := f.svc.SetStatus(ctx, SetStatusParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Status: enums.RecordStatusClosed, Actor: admin(),
	})
	require.NoError(t, err)
	require.Equal(t, enums.RecordStatusClosed, record.Status)

	_, err = f.svc.Serve(ctx, ServeParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Quantity: 1, Actor: volunteer(),
	})
	requireCode(t, err, pkgerrors.CodeConflict)

	record, err = f.svc.SetStatus(ctx, SetStatusParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Status: enums.RecordStatusActive, Actor: admin(),
	})
	require.NoError(t, err)
	require.Equal(t, enums.RecordStatusActive, record.Status)
}

func TestReopenWithNothingRemainingLandsOnExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, CheckInParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Actor: volunteer(),
	})
	require.NoError(t, err)
	_, err = f.svc.Serve(ctx, ServeParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Quantity: f.family.Size, Actor: volunteer(),
	})
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, SetStatusParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Status: enums.RecordStatusClosed, Actor: admin(),
	})
	require.NoError(t, err)

	record, err := f.svc.SetStatus(ctx, SetStatusParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Status: enums.RecordStatusActive, Actor: admin(),
	})
	require.NoError(t, err)
	require.Equal(t, enums.RecordStatusExhausted, record.Status)
}

func TestUndoCheckIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.CheckIn(ctx, CheckInParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Actor: volunteer(),
	})
	require.NoError(t, err)

	// Untouched record: volunteers may undo their own mistake.
	require.NoError(t, f.svc.UndoCheckIn(ctx, UndoCheckInParams{
		SessionID: f.session.ID, RecordID: record.ID, Actor: volunteer(),
	}))

	var count int64
	require.NoError(t, f.db.Model(&models.EntitlementRecord{}).Count(&count).Error)
	require.EqualValues(t, 0, count)

	// Once plates went out, only an admin can remove the record.
	record, err = f.svc.CheckIn(ctx, CheckInParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Actor: volunteer(),
	})
	require.NoError(t, err)
	_, err = f.svc.Serve(ctx, ServeParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Quantity: 1, Actor: volunteer(),
	})
	require.NoError(t, err)

	err = f.svc.UndoCheckIn(ctx, UndoCheckInParams{
		SessionID: f.session.ID, RecordID: record.ID, Actor: volunteer(),
	})
	requireCode(t, err, pkgerrors.CodeFoodAlreadyServed)

	require.NoError(t, f.svc.UndoCheckIn(ctx, UndoCheckInParams{
		SessionID: f.session.ID, RecordID: record.ID, Actor: admin(),
	}))

	var undoAudits int64
	require.NoError(t, f.db.Model(&models.AuditEntry{}).
		Where("action = ?", enums.AuditActionUndoCheckIn).
		Count(&undoAudits).Error)
	require.EqualValues(t, 2, undoAudits)
}

func TestServeValidatesQuantity(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Serve(context.Background(), ServeParams{
		SessionID: f.session.ID, FamilyID: f.family.ID, Quantity: 0, Actor: volunteer(),
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}
