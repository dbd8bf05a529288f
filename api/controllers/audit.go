package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/priyamehta/platetrack-backend/api/responses"
	"github.com/priyamehta/platetrack-backend/api/validators"
	"github.com/priyamehta/platetrack-backend/internal/audit"
	pkgerrors "github.com/priyamehta/platetrack-backend/pkg/errors"
	"github.com/priyamehta/platetrack-backend/pkg/logger"
	"github.com/priyamehta/platetrack-backend/pkg/pagination"
)

// ListAudit returns the session's audit history, newest first.
func ListAudit(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		sessionRaw := strings.TrimSpace(r.URL.Query().Get("sessionId"))
		sessionID, err := uuid.Parse(sessionRaw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session id"))
			return
		}

		params := audit.ListParams{SessionID: sessionID}

		if familyRaw := strings.TrimSpace(r.URL.Query().Get("familyId")); familyRaw != "" {
			familyID, err := uuid.Parse(familyRaw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid family id"))
				return
			}
			params.FamilyID = &familyID
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit
		params.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
