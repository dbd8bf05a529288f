package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/priyamehta/platetrack-backend/internal/audit"
	"github.com/priyamehta/platetrack-backend/internal/directory"
	dbpkg "github.com/priyamehta/platetrack-backend/pkg/db"
	"github.com/priyamehta/platetrack-backend/pkg/db/models"
	"github.com/priyamehta/platetrack-backend/pkg/enums"
	pkgerrors "github.com/priyamehta/platetrack-backend/pkg/errors"
	"github.com/priyamehta/platetrack-backend/pkg/logger"
	"github.com/priyamehta/platetrack-backend/pkg/metrics"
	"github.com/priyamehta/platetrack-backend/pkg/outbox"
	"github.com/priyamehta/platetrack-backend/pkg/types"
)

// Service owns every plate-count mutation. All writes happen in one
// transaction together with their audit entry and outbox event, so a
// rejected mutation leaves no trace anywhere.
type Service interface {
	CheckIn(ctx context.Context, params CheckInParams) (*models.EntitlementRecord, error)
	Serve(ctx context.Context, params ServeParams) (*models.EntitlementRecord, error)
	Adjust(ctx context.Context, params AdjustParams) (*models.EntitlementRecord, error)
	SetStatus(ctx context.Context, params SetStatusParams) (*models.EntitlementRecord, error)
	UndoCheckIn(ctx context.Context, params UndoCheckInParams) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type sessionSource interface {
	Current(ctx context.Context) (*models.Session, error)
}

type service struct {
	repo     Repository
	families directory.Repository
	sessions sessionSource
	audits   audit.Repository
	events   *outbox.Service
	tx       txRunner
	metrics  *metrics.LedgerMetrics
	logg     *logger.Logger
}

// CheckInParams describe a family arriving at the check-in station.
type CheckInParams struct {
	SessionID   uuid.UUID
	FamilyID    uuid.UUID
	ExtraGuests int
	Actor       types.Actor
}

// ServeParams describe plates handed out at the serving line.
type ServeParams struct {
	SessionID uuid.UUID
	FamilyID  uuid.UUID
	Quantity  int
	Actor     types.Actor
}

// AdjustParams describe an admin correction to the counters.
type AdjustParams struct {
	SessionID uuid.UUID
	FamilyID  uuid.UUID
	Delta     int
	Reason    string
	Actor     types.Actor
}

// SetStatusParams describe closing or reopening a record.
type SetStatusParams struct {
	SessionID uuid.UUID
	FamilyID  uuid.UUID
	Status    enums.RecordStatus
	Actor     types.Actor
}

// UndoCheckInParams describe removal of a mistaken check-in.
type UndoCheckInParams struct {
	SessionID uuid.UUID
	RecordID  uuid.UUID
	Actor     types.Actor
}

// NewService wires ledger dependencies.
func NewService(
	repo Repository,
	families directory.Repository,
	sessions sessionSource,
	audits audit.Repository,
	events *outbox.Service,
	tx txRunner,
	ledgerMetrics *metrics.LedgerMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil || families == nil || sessions == nil || audits == nil || tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger service missing dependencies")
	}
	return &service{
		repo:     repo,
		families: families,
		sessions: sessions,
		audits:   audits,
		events:   events,
		tx:       tx,
		metrics:  ledgerMetrics,
		logg:     logg,
	}, nil
}

func (s *service) CheckIn(ctx context.Context, params CheckInParams) (*models.EntitlementRecord, error) {
	defer s.observe("check_in", time.Now())

	if params.ExtraGuests < 0 {
		params.ExtraGuests = 0
	}
	if err := s.requireCurrentSession(ctx, params.SessionID); err != nil {
		s.count("check_in", "rejected")
		return nil, err
	}

	family, err := s.families.GetByID(ctx, params.FamilyID)
	if err != nil {
		s.count("check_in", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load family")
	}
	if family == nil {
		s.count("check_in", "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "family not found")
	}

	existing, err := s.repo.Get(ctx, params.SessionID, params.FamilyID)
	if err != nil {
		s.count("check_in", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entitlement record")
	}
	if existing != nil {
		s.count("check_in", "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyCheckedIn, "this family is already checked in").
			WithDetails(map[string]any{"remaining": existing.Remaining()})
	}

	now := time.Now()
	record := &models.EntitlementRecord{
		SessionID:   params.SessionID,
		FamilyID:    params.FamilyID,
		Entitled:    family.Size + params.ExtraGuests,
		Used:        0,
		CheckedInAt: &now,
		Status:      enums.RecordStatusActive,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, record); err != nil {
			return err
		}
		after, err := audit.EncodePayload(audit.CheckInResult{
			Entitled:    record.Entitled,
			ExtraGuests: params.ExtraGuests,
		})
		if err != nil {
			return err
		}
		if err := s.recordAudit(ctx, tx, auditParams{
			action:    enums.AuditActionCheckIn,
			sessionID: params.SessionID,
			familyID:  params.FamilyID,
			actor:     params.Actor,
			after:     after,
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventFamilyCheckedIn, record.ID, params.Actor, map[string]any{
			"sessionId": params.SessionID,
			"familyId":  params.FamilyID,
			"entitled":  record.Entitled,
		})
	})
	if err != nil {
		// Two stations racing the same family: the unique index decides,
		// the loser gets the same answer as a plain duplicate.
		if dbpkg.IsUniqueViolation(err, "") {
			s.count("check_in", "rejected")
			return nil, pkgerrors.Wrap(pkgerrors.CodeAlreadyCheckedIn, err, "concurrent check-in")
		}
		s.count("check_in", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check in family")
	}

	s.count("check_in", "ok")
	return record, nil
}

func (s *service) Serve(ctx context.Context, params ServeParams) (*models.EntitlementRecord, error) {
	defer s.observe("serve", time.Now())

	if params.Quantity <= 0 {
		s.count("serve", "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if err := s.requireCurrentSession(ctx, params.SessionID); err != nil {
		s.count("serve", "rejected")
		return nil, err
	}

	record, err := s.repo.Get(ctx, params.SessionID, params.FamilyID)
	if err != nil {
		s.count("serve", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entitlement record")
	}
	if record == nil {
		s.count("serve", "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeNotCheckedIn, "this family has not checked in yet")
	}
	if record.Status == enums.RecordStatusClosed {
		s.count("serve", "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "record is closed")
	}
	if params.Quantity > record.Remaining() {
		s.count("serve", "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientRemaining, "not enough plates remaining").
			WithDetails(map[string]any{"remaining": record.Remaining()})
	}

	previousUsed := record.Used
	newUsed := record.Used + params.Quantity
	newStatus := enums.RecordStatusActive
	if newUsed == record.Entitled {
		newStatus = enums.RecordStatusExhausted
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).ServeGuarded(ctx, record.ID, previousUsed, newUsed, newStatus)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConcurrencyConflict,
				"another station updated this record first, refresh and try again")
		}
		before, err := audit.EncodePayload(audit.ServeSnapshot{Used: previousUsed})
		if err != nil {
			return err
		}
		after, err := audit.EncodePayload(audit.ServeSnapshot{Used: newUsed})
		if err != nil {
			return err
		}
		if err := s.recordAudit(ctx, tx, auditParams{
			action:    enums.AuditActionServe,
			sessionID: params.SessionID,
			familyID:  params.FamilyID,
			actor:     params.Actor,
			before:    before,
			after:     after,
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventPlatesServed, record.ID, params.Actor, map[string]any{
			"sessionId": params.SessionID,
			"familyId":  params.FamilyID,
			"quantity":  params.Quantity,
			"used":      newUsed,
			"remaining": record.Entitled - newUsed,
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConcurrencyConflict {
			s.count("serve", "conflict")
			if s.metrics != nil {
				s.metrics.IncConflict("serve")
			}
			return nil, err
		}
		s.count("serve", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "serve plates")
	}

	record.Used = newUsed
	record.Status = newStatus
	s.count("serve", "ok")
	if s.metrics != nil {
		s.metrics.AddPlatesServed(params.Quantity)
	}
	return record, nil
}

func (s *service) Adjust(ctx context.Context, params AdjustParams) (*models.EntitlementRecord, error) {
	defer s.observe("adjust", time.Now())

	if !params.Actor.IsAdmin() {
		s.count("adjust", "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can adjust records")
	}
	if params.Reason == "" {
		s.count("adjust", "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment reason required")
	}
	if err := s.requireCurrentSession(ctx, params.SessionID); err != nil {
		s.count("adjust", "rejected")
		return nil, err
	}

	record, err := s.repo.Get(ctx, params.SessionID, params.FamilyID)
	if err != nil {
		s.count("adjust", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entitlement record")
	}
	if record == nil {
		s.count("adjust", "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeNotCheckedIn, "this family has not checked in yet")
	}

	newUsed := record.Used + params.Delta
	if newUsed < 0 {
		newUsed = 0
	}
	newEntitled := record.Entitled
	if newUsed > newEntitled {
		// Correction overshoots the plan; raise the entitlement so the
		// used <= entitled invariant survives the admin's word.
		newEntitled = newUsed
	}
	newStatus := record.Status
	if record.Status != enums.RecordStatusClosed {
		if newUsed == newEntitled {
			newStatus = enums.RecordStatusExhausted
		} else {
			newStatus = enums.RecordStatusActive
		}
	}

	before, err := audit.EncodePayload(audit.RecordSnapshot{
		Entitled: record.Entitled, Used: record.Used, Status: record.Status,
	})
	if err != nil {
		s.count("adjust", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode audit payload")
	}
	after, err := audit.EncodePayload(audit.RecordSnapshot{
		Entitled: newEntitled, Used: newUsed, Status: newStatus,
	})
	if err != nil {
		s.count("adjust", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode audit payload")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, record.ID, newEntitled, newUsed, newStatus); err != nil {
			return err
		}
		if err := s.recordAudit(ctx, tx, auditParams{
			action:    enums.AuditActionAdjust,
			sessionID: params.SessionID,
			familyID:  params.FamilyID,
			actor:     params.Actor,
			before:    before,
			after:     after,
			detail:    params.Reason,
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventRecordAdjusted, record.ID, params.Actor, map[string]any{
			"sessionId": params.SessionID,
			"familyId":  params.FamilyID,
			"delta":     params.Delta,
			"used":      newUsed,
			"entitled":  newEntitled,
		})
	})
	if err != nil {
		s.count("adjust", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust record")
	}

	record.Entitled = newEntitled
	record.Used = newUsed
	record.Status = newStatus
	s.count("adjust", "ok")
	return record, nil
}

func (s *service) SetStatus(ctx context.Context, params SetStatusParams) (*models.EntitlementRecord, error) {
	defer s.observe("set_status", time.Now())

	if !params.Actor.IsAdmin() {
		s.count("set_status", "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can change record status")
	}
	if params.Status != enums.RecordStatusActive && params.Status != enums.RecordStatusClosed {
		s.count("set_status", "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be active or closed")
	}
	if err := s.requireCurrentSession(ctx, params.SessionID); err != nil {
		s.count("set_status", "rejected")
		return nil, err
	}

	record, err := s.repo.Get(ctx, params.SessionID, params.FamilyID)
	if err != nil {
		s.count("set_status", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entitlement record")
	}
	if record == nil {
		s.count("set_status", "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeNotCheckedIn, "this family has not checked in yet")
	}

	target := params.Status
	action := enums.AuditActionClose
	if target == enums.RecordStatusActive {
		action = enums.AuditActionReopen
		if record.Remaining() == 0 {
			// Nothing left to serve; reopening lands straight on exhausted.
			target = enums.RecordStatusExhausted
		}
	}

	before, err := audit.EncodePayload(audit.RecordSnapshot{
		Entitled: record.Entitled, Used: record.Used, Status: record.Status,
	})
	if err != nil {
		s.count("set_status", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode audit payload")
	}
	after, err := audit.EncodePayload(audit.RecordSnapshot{
		Entitled: record.Entitled, Used: record.Used, Status: target,
	})
	if err != nil {
		s.count("set_status", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode audit payload")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, record.ID, record.Entitled, record.Used, target); err != nil {
			return err
		}
		if err := s.recordAudit(ctx, tx, auditParams{
			action:    action,
			sessionID: params.SessionID,
			familyID:  params.FamilyID,
			actor:     params.Actor,
			before:    before,
			after:     after,
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventRecordStatusChanged, record.ID, params.Actor, map[string]any{
			"sessionId": params.SessionID,
			"familyId":  params.FamilyID,
			"status":    target,
		})
	})
	if err != nil {
		s.count("set_status", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set record status")
	}

	record.Status = target
	s.count("set_status", "ok")
	return record, nil
}

func (s *service) UndoCheckIn(ctx context.Context, params UndoCheckInParams) error {
	defer s.observe("undo_check_in", time.Now())

	if err := s.requireCurrentSession(ctx, params.SessionID); err != nil {
		s.count("undo_check_in", "rejected")
		return err
	}

	record, err := s.repo.GetByID(ctx, params.RecordID)
	if err != nil {
		s.count("undo_check_in", "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entitlement record")
	}
	if record == nil || record.SessionID != params.SessionID {
		s.count("undo_check_in", "rejected")
		return pkgerrors.New(pkgerrors.CodeNotFound, "entitlement record not found")
	}
	if record.Used > 0 && !params.Actor.IsAdmin() {
		s.count("undo_check_in", "rejected")
		return pkgerrors.New(pkgerrors.CodeFoodAlreadyServed, "plates were already served to this family").
			WithDetails(map[string]any{"used": record.Used})
	}

	before, err := audit.EncodePayload(audit.RecordSnapshot{
		Entitled: record.Entitled, Used: record.Used, Status: record.Status,
	})
	if err != nil {
		s.count("undo_check_in", "error")
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode audit payload")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Delete(ctx, record.ID); err != nil {
			return err
		}
		if err := s.recordAudit(ctx, tx, auditParams{
			action:    enums.AuditActionUndoCheckIn,
			sessionID: params.SessionID,
			familyID:  record.FamilyID,
			actor:     params.Actor,
			before:    before,
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventCheckInUndone, record.ID, params.Actor, map[string]any{
			"sessionId": params.SessionID,
			"familyId":  record.FamilyID,
		})
	})
	if err != nil {
		s.count("undo_check_in", "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "undo check-in")
	}

	s.count("undo_check_in", "ok")
	return nil
}

func (s *service) requireCurrentSession(ctx context.Context, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	current, err := s.sessions.Current(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current session")
	}
	if current == nil || current.ID != sessionID {
		return pkgerrors.New(pkgerrors.CodeConflict, "session is not current")
	}
	return nil
}

type auditParams struct {
	action    enums.AuditAction
	sessionID uuid.UUID
	familyID  uuid.UUID
	actor     types.Actor
	before    []byte
	after     []byte
	detail    string
}

func (s *service) recordAudit(ctx context.Context, tx *gorm.DB, params auditParams) error {
	sessionID := params.sessionID
	familyID := params.familyID
	entry := &models.AuditEntry{
		ActorRole: params.actor.Role,
		SessionID: &sessionID,
		FamilyID:  &familyID,
		Action:    params.action,
		Before:    params.before,
		After:     params.after,
		Detail:    params.detail,
		StationID: params.actor.StationID,
	}
	return s.audits.WithTx(tx).Create(ctx, entry)
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, aggregateID uuid.UUID, actor types.Actor, data map[string]any) error {
	if s.events == nil {
		return nil
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateEntitlementRecord,
		AggregateID:   aggregateID,
		Actor: &outbox.ActorRef{
			Name:      actor.Name,
			Role:      string(actor.Role),
			StationID: actor.StationID,
		},
		Data: data,
	})
}

func (s *service) count(op, outcome string) {
	if s.metrics != nil {
		s.metrics.IncOperation(op, outcome)
	}
}

func (s *service) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDuration(op, time.Since(start))
	}
}
