package middleware

import (
	"net/http"
	"strings"

	"github.com/priyamehta/platetrack-backend/api/responses"
	"github.com/priyamehta/platetrack-backend/pkg/enums"
	pkgerrors "github.com/priyamehta/platetrack-backend/pkg/errors"
	"github.com/priyamehta/platetrack-backend/pkg/logger"
	"github.com/priyamehta/platetrack-backend/pkg/types"
)

const (
	actorRoleHeader = "X-Actor-Role"
	actorNameHeader = "X-Actor-Name"
	stationIDHeader = "X-Station-Id"
)

// ActorContext resolves the self-reported actor headers into a typed actor.
// There are no accounts; the hall runs on trust and the audit log.
func ActorContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.ActorRoleVolunteer
			if raw := strings.TrimSpace(r.Header.Get(actorRoleHeader)); raw != "" {
				parsed, err := enums.ParseActorRole(raw)
				if err != nil {
					responses.WriteError(r.Context(), logg, w,
						pkgerrors.New(pkgerrors.CodeValidation, "actor role must be volunteer or admin"))
					return
				}
				role = parsed
			}

			actor := types.Actor{
				Name: strings.TrimSpace(r.Header.Get(actorNameHeader)),
				Role: role,
			}
			if station := strings.TrimSpace(r.Header.Get(stationIDHeader)); station != "" {
				actor.StationID = &station
			}

			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithActorRole(ctx, string(actor.Role))
				if actor.StationID != nil {
					ctx = logg.WithStationID(ctx, *actor.StationID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
