package internal

import (
	"context"
	"time"
)

type ctxKey string

const (
	ContextActorKey         ctxKey = "actor"
	ContextActorVerifiedKey ctxKey = "actor_verified"
)

// ActorFromContext returns the identity attached by the actor middleware.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if actor, ok := ctx.Value(ContextActorKey).(string); ok {
		return actor
	}
	return ""
}

func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ContextActorKey, actor)
}

// ContextWithVerifiedActor attaches an identity taken from a verified token.
func ContextWithVerifiedActor(ctx context.Context, actor string) context.Context {
	ctx = context.WithValue(ctx, ContextActorKey, actor)
	return context.WithValue(ctx, ContextActorVerifiedKey, true)
}

func ActorVerified(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	verified, _ := ctx.Value(ContextActorVerifiedKey).(bool)
	return verified
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
