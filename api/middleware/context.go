package middleware

import (
	"context"

	"github.com/priyamehta/platetrack-backend/pkg/enums"
	"github.com/priyamehta/platetrack-backend/pkg/types"
)

type contextKey string

const ctxActor contextKey = "actor"

// WithActor injects the request's actor into the context.
func WithActor(ctx context.Context, actor types.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// ActorFromContext returns the actor attached by ActorContext. Requests that
// bypassed the middleware count as an anonymous volunteer.
func ActorFromContext(ctx context.Context) types.Actor {
	if ctx == nil {
		return types.Actor{Role: enums.ActorRoleVolunteer}
	}
	if actor, ok := ctx.Value(ctxActor).(types.Actor); ok {
		return actor
	}
	return types.Actor{Role: enums.ActorRoleVolunteer}
}
