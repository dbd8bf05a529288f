package controllers

import (
	"net/http"

	"github.com/priyamehta/platetrack-backend/api/middleware"
	"github.com/priyamehta/platetrack-backend/api/responses"
	"github.com/priyamehta/platetrack-backend/api/validators"
	"github.com/priyamehta/platetrack-backend/internal/reconcile"
	pkgerrors "github.com/priyamehta/platetrack-backend/pkg/errors"
	"github.com/priyamehta/platetrack-backend/pkg/logger"
)

type reconcileRequest struct {
	Source string          `json:"source" validate:"omitempty,oneof=sheet"`
	Rows   []reconcile.Row `json:"rows" validate:"omitempty,max=10000,dive"`
}

// Reconcile merges roster rows into the directory, either from the request
// body or from the configured sheet source.
func Reconcile(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var req reconcileRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Source == "" && len(req.Rows) == 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "provide rows or a source"))
			return
		}

		actor := middleware.ActorFromContext(r.Context())

		var (
			result *reconcile.Result
			err    error
		)
		if req.Source == "sheet" {
			result, err = svc.RunFromSource(r.Context(), actor)
		} else {
			result, err = svc.Run(r.Context(), req.Rows, actor)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
