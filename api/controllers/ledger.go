package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/priyamehta/platetrack-backend/api/middleware"
	"github.com/priyamehta/platetrack-backend/api/responses"
	"github.com/priyamehta/platetrack-backend/api/validators"
	"github.com/priyamehta/platetrack-backend/internal/ledger"
	"github.com/priyamehta/platetrack-backend/pkg/enums"
	pkgerrors "github.com/priyamehta/platetrack-backend/pkg/errors"
	"github.com/priyamehta/platetrack-backend/pkg/logger"
)

type checkInRequest struct {
	SessionID   uuid.UUID `json:"sessionId" validate:"required"`
	FamilyID    uuid.UUID `json:"familyId" validate:"required"`
	ExtraGuests int       `json:"extraGuests"`
}

// CheckIn registers a family's arrival and opens its plate entitlement.
func CheckIn(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		var req checkInRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.CheckIn(r.Context(), ledger.CheckInParams{
			SessionID:   req.SessionID,
			FamilyID:    req.FamilyID,
			ExtraGuests: req.ExtraGuests,
			Actor:       middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

type serveRequest struct {
	SessionID uuid.UUID `json:"sessionId" validate:"required"`
	FamilyID  uuid.UUID `json:"familyId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// Serve deducts plates from a family's remaining entitlement.
func Serve(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		var req serveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Serve(r.Context(), ledger.ServeParams{
			SessionID: req.SessionID,
			FamilyID:  req.FamilyID,
			Quantity:  req.Quantity,
			Actor:     middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

type adjustRequest struct {
	SessionID uuid.UUID `json:"sessionId" validate:"required"`
	FamilyID  uuid.UUID `json:"familyId" validate:"required"`
	Delta     int       `json:"delta" validate:"required"`
	Reason    string    `json:"reason" validate:"required"`
}

// Adjust applies an admin correction to a record's counters.
func Adjust(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		var req adjustRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Adjust(r.Context(), ledger.AdjustParams{
			SessionID: req.SessionID,
			FamilyID:  req.FamilyID,
			Delta:     req.Delta,
			Reason:    validators.SanitizeString(req.Reason, 500),
			Actor:     middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

type setStatusRequest struct {
	SessionID uuid.UUID `json:"sessionId" validate:"required"`
	FamilyID  uuid.UUID `json:"familyId" validate:"required"`
	Status    string    `json:"status" validate:"required"`
}

// SetRecordStatus closes or reopens a record.
func SetRecordStatus(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		var req setStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseRecordStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		record, err := svc.SetStatus(r.Context(), ledger.SetStatusParams{
			SessionID: req.SessionID,
			FamilyID:  req.FamilyID,
			Status:    status,
			Actor:     middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

type undoCheckInRequest struct {
	SessionID uuid.UUID `json:"sessionId" validate:"required"`
	RecordID  uuid.UUID `json:"recordId" validate:"required"`
}

// UndoCheckIn removes a mistaken check-in.
func UndoCheckIn(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		var req undoCheckInRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err := svc.UndoCheckIn(r.Context(), ledger.UndoCheckInParams{
			SessionID: req.SessionID,
			RecordID:  req.RecordID,
			Actor:     middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "undone"})
	}
}
