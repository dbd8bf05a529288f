package sessions

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/priyamehta/platetrack-backend/internal/audit"
	"github.com/priyamehta/platetrack-backend/pkg/db/models"
	"github.com/priyamehta/platetrack-backend/pkg/enums"
	pkgerrors "github.com/priyamehta/platetrack-backend/pkg/errors"
	"github.com/priyamehta/platetrack-backend/pkg/logger"
	"github.com/priyamehta/platetrack-backend/pkg/outbox"
	"github.com/priyamehta/platetrack-backend/pkg/types"
)

// Service manages the single-current-session lifecycle.
type Service interface {
	Current(ctx context.Context) (*models.Session, error)
	StartNew(ctx context.Context, name string, actor types.Actor) (*StartResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StartResult carries the new session plus the archived summary of the one
// it replaced, if any.
type StartResult struct {
	Session  *models.Session     `json:"session"`
	Archived *audit.ResetSummary `json:"archived,omitempty"`
}

type service struct {
	repo   Repository
	audits audit.Repository
	events *outbox.Service
	tx     txRunner
	logg   *logger.Logger
}

// NewService wires session dependencies.
func NewService(repo Repository, audits audit.Repository, events *outbox.Service, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil || audits == nil || tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sessions service missing dependencies")
	}
	return &service{repo: repo, audits: audits, events: events, tx: tx, logg: logg}, nil
}

func (s *service) Current(ctx context.Context) (*models.Session, error) {
	session, err := s.repo.Current(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current session")
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no current session")
	}
	return session, nil
}

// StartNew archives the running session and opens a fresh one in a single
// transaction. The old session's ledger rows are summarized into one RESET
// audit entry and then deleted; only the summary survives.
func (s *service) StartNew(ctx context.Context, name string, actor types.Actor) (*StartResult, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can start a session")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session name required")
	}

	result := &StartResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		previous, err := repo.Current(ctx)
		if err != nil {
			return err
		}

		if previous != nil {
			agg, err := repo.Aggregates(ctx, previous.ID)
			if err != nil {
				return err
			}
			summary := audit.ResetSummary{
				SessionName:       previous.Name,
				FamiliesCheckedIn: agg.FamiliesCheckedIn,
				PlatesServed:      agg.PlatesServed,
				Capacity:          agg.Capacity,
			}

			affected, err := repo.ClearCurrent(ctx, previous.ID)
			if err != nil {
				return err
			}
			if affected == 0 {
				return pkgerrors.New(pkgerrors.CodeConcurrencyConflict,
					"another station updated this record first, refresh and try again")
			}

			before, err := audit.EncodePayload(summary)
			if err != nil {
				return err
			}
			previousID := previous.ID
			entry := &models.AuditEntry{
				ActorRole: actor.Role,
				SessionID: &previousID,
				Action:    enums.AuditActionReset,
				Before:    before,
				StationID: actor.StationID,
			}
			if err := s.audits.WithTx(tx).Create(ctx, entry); err != nil {
				return err
			}
			if err := repo.DeleteRecords(ctx, previous.ID); err != nil {
				return err
			}
			result.Archived = &summary
		}

		session := &models.Session{Name: name, IsCurrent: true}
		if err := repo.Create(ctx, session); err != nil {
			return err
		}
		result.Session = session

		if s.events != nil {
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSessionReset,
				AggregateType: enums.AggregateSession,
				AggregateID:   session.ID,
				Actor: &outbox.ActorRef{
					Name:      actor.Name,
					Role:      string(actor.Role),
					StationID: actor.StationID,
				},
				Data: map[string]any{
					"name":     session.Name,
					"archived": result.Archived,
				},
			})
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start session")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithSessionID(ctx, result.Session.ID.String()), "session started")
	}
	return result, nil
}
