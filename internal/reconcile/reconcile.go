package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/priyamehta/platetrack-backend/internal/audit"
	"github.com/priyamehta/platetrack-backend/internal/directory"
	"github.com/priyamehta/platetrack-backend/pkg/db/models"
	"github.com/priyamehta/platetrack-backend/pkg/enums"
	pkgerrors "github.com/priyamehta/platetrack-backend/pkg/errors"
	"github.com/priyamehta/platetrack-backend/pkg/logger"
	"github.com/priyamehta/platetrack-backend/pkg/metrics"
	"github.com/priyamehta/platetrack-backend/pkg/outbox"
	"github.com/priyamehta/platetrack-backend/pkg/types"
)

// Row is the raw external roster shape. Everything arrives as text; this
// package owns validation and coercion.
type Row struct {
	ID       string `json:"id"`
	Surname  string `json:"surname"`
	HeadName string `json:"headName"`
	Phone    string `json:"phone"`
	Size     string `json:"size"`
	Notes    string `json:"notes"`
}

// RowSource is where roster rows come from (a spreadsheet, an upload, a fixture).
type RowSource interface {
	Fetch(ctx context.Context) ([]Row, error)
}

// Result summarizes one reconciliation run.
type Result struct {
	Total      int      `json:"total"`
	Synced     int      `json:"synced"`
	Skipped    int      `json:"skipped"`
	ErrorCount int      `json:"errorCount"`
	Errors     []string `json:"errors,omitempty"`
}

// Service merges external roster rows into the family directory.
type Service interface {
	Run(ctx context.Context, rows []Row, actor types.Actor) (*Result, error)
	RunFromSource(ctx context.Context, actor types.Actor) (*Result, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	families  directory.Repository
	audits    audit.Repository
	events    *outbox.Service
	tx        txRunner
	source    RowSource
	batchSize int
	metrics   *metrics.ReconcileMetrics
	logg      *logger.Logger
}

// NewService wires reconciliation dependencies. source may be nil when no
// external roster is configured.
func NewService(
	families directory.Repository,
	audits audit.Repository,
	events *outbox.Service,
	tx txRunner,
	source RowSource,
	batchSize int,
	reconcileMetrics *metrics.ReconcileMetrics,
	logg *logger.Logger,
) (Service, error) {
	if families == nil || audits == nil || tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reconcile service missing dependencies")
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &service{
		families:  families,
		audits:    audits,
		events:    events,
		tx:        tx,
		source:    source,
		batchSize: batchSize,
		metrics:   reconcileMetrics,
		logg:      logg,
	}, nil
}

// RunFromSource pulls rows from the configured source. A source failure
// fails the whole run; nothing is synced.
func (s *service) RunFromSource(ctx context.Context, actor types.Actor) (*Result, error) {
	if s.source == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "roster source not configured")
	}
	rows, err := s.source.Fetch(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncRun("source_error")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch roster rows")
	}
	return s.Run(ctx, rows, actor)
}

// Run validates, matches and upserts roster rows. Re-running the same input
// changes nothing: matched rows update in place, new rows keep the ids they
// were assigned on the first pass only if the source carries them.
func (s *service) Run(ctx context.Context, rows []Row, actor types.Actor) (*Result, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can reconcile the roster")
	}

	start := time.Now()
	result := &Result{Total: len(rows)}
	var runErrs error

	batch := make([]models.Family, 0, s.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		size := len(batch)
		if err := s.families.UpsertBatch(ctx, batch); err != nil {
			runErrs = multierr.Append(runErrs, err)
			result.ErrorCount += size
			result.Errors = append(result.Errors, fmt.Sprintf("batch of %d rows failed: %v", size, err))
		} else {
			result.Synced += size
		}
		batch = batch[:0]
	}

	for i, row := range rows {
		family, reason := s.resolve(ctx, row)
		if reason != "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %s", i+1, reason))
			continue
		}
		batch = append(batch, *family)
		if len(batch) >= s.batchSize {
			flush()
		}
	}
	flush()

	if err := s.recordRun(ctx, result, actor); err != nil {
		runErrs = multierr.Append(runErrs, err)
		result.Errors = append(result.Errors, fmt.Sprintf("record sync audit: %v", err))
	}

	if s.metrics != nil {
		outcome := "success"
		if runErrs != nil {
			outcome = "partial"
		}
		s.metrics.IncRun(outcome)
		s.metrics.AddRows("synced", result.Synced)
		s.metrics.AddRows("skipped", result.Skipped)
		s.metrics.ObserveDuration(time.Since(start))
	}
	if s.logg != nil && runErrs != nil {
		s.logg.Error(ctx, "reconcile completed with errors", runErrs)
	}

	return result, nil
}

// resolve validates one row and matches it to an existing family by id,
// then phone, then case-insensitive name. A malformed id is treated as
// absent rather than fatal so a typo in the sheet cannot strand a family.
func (s *service) resolve(ctx context.Context, row Row) (*models.Family, string) {
	surname := strings.TrimSpace(row.Surname)
	headName := strings.TrimSpace(row.HeadName)
	if surname == "" || headName == "" {
		return nil, "surname and head name are required"
	}

	size, err := strconv.Atoi(strings.TrimSpace(row.Size))
	if err != nil {
		return nil, fmt.Sprintf("family size %q is not a number", row.Size)
	}
	if size < 1 {
		return nil, fmt.Sprintf("family size %d must be at least 1", size)
	}

	phone := strings.TrimSpace(row.Phone)

	id := uuid.Nil
	if raw := strings.TrimSpace(row.ID); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err == nil {
			id = parsed
		}
	}
	if id == uuid.Nil {
		match, err := s.match(ctx, phone, surname, headName)
		if err != nil {
			return nil, fmt.Sprintf("match lookup failed: %v", err)
		}
		if match != nil {
			id = match.ID
		} else {
			id = uuid.New()
		}
	}

	return &models.Family{
		ID:       id,
		Surname:  surname,
		HeadName: headName,
		Phone:    phone,
		Size:     size,
		Notes:    strings.TrimSpace(row.Notes),
	}, ""
}

func (s *service) match(ctx context.Context, phone, surname, headName string) (*models.Family, error) {
	if phone != "" {
		family, err := s.families.FindByPhone(ctx, phone)
		if err != nil || family != nil {
			return family, err
		}
	}
	return s.families.FindByName(ctx, surname, headName)
}

func (s *service) recordRun(ctx context.Context, result *Result, actor types.Actor) error {
	after, err := audit.EncodePayload(audit.SyncSummary{
		Total:       result.Total,
		Synced:      result.Synced,
		Skipped:     result.Skipped,
		BatchErrors: result.ErrorCount,
	})
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		entry := &models.AuditEntry{
			ActorRole: actor.Role,
			Action:    enums.AuditActionSync,
			After:     after,
			StationID: actor.StationID,
		}
		if err := s.audits.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}
		if s.events != nil {
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDirectorySynced,
				AggregateType: enums.AggregateDirectory,
				AggregateID:   entry.ID,
				Actor: &outbox.ActorRef{
					Name:      actor.Name,
					Role:      string(actor.Role),
					StationID: actor.StationID,
				},
				Data: map[string]any{
					"total":   result.Total,
					"synced":  result.Synced,
					"skipped": result.Skipped,
				},
			})
		}
		return nil
	})
}
