package directory

import (
	"context"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/priyamehta/platetrack-backend/pkg/errors"
	"github.com/priyamehta/platetrack-backend/pkg/pagination"
)

// Service exposes the station-facing directory reads. Writes go exclusively
// through the reconciliation engine.
type Service interface {
	Search(ctx context.Context, query string, sessionID uuid.UUID, limit int) ([]SearchRow, error)
}

type service struct {
	repo Repository
}

// NewService wires directory dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "directory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Search(ctx context.Context, query string, sessionID uuid.UUID, limit int) ([]SearchRow, error) {
	if strings.TrimSpace(query) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query required")
	}
	if sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}

	rows, err := s.repo.Search(ctx, query, sessionID, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search families")
	}
	return rows, nil
}
