package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/priyamehta/platetrack-backend/api/responses"
	"github.com/priyamehta/platetrack-backend/api/validators"
	"github.com/priyamehta/platetrack-backend/internal/directory"
	pkgerrors "github.com/priyamehta/platetrack-backend/pkg/errors"
	"github.com/priyamehta/platetrack-backend/pkg/logger"
	"github.com/priyamehta/platetrack-backend/pkg/pagination"
)

// SearchFamilies looks up families by name fragment or phone, annotated with
// their ledger state for the requested session.
func SearchFamilies(svc directory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "directory service unavailable"))
			return
		}

		query := strings.TrimSpace(r.URL.Query().Get("q"))
		sessionRaw := strings.TrimSpace(r.URL.Query().Get("sessionId"))
		sessionID, err := uuid.Parse(sessionRaw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Search(r.Context(), query, sessionID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": rows})
	}
}
