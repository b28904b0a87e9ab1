// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services read them. Keeping
// this package free of net/http lets services avoid transport imports.
//
// Usage in services:
//
//	actorID := requestcontext.ActorID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "credara/pkg/domain"
)

type (
	actorIDKey     struct{}
	accessTokenKey struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeyActorID     = actorIDKey{}
	ContextKeyAccessToken = accessTokenKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// ActorID retrieves the authenticated caller's profile ID from the context.
// Returns the zero value if no caller is authenticated.
func ActorID(ctx context.Context) id.ProfileID {
	if actorID, ok := ctx.Value(ContextKeyActorID).(id.ProfileID); ok {
		return actorID
	}
	return id.ProfileID{}
}

// WithActorID injects the authenticated caller's profile ID.
func WithActorID(ctx context.Context, actorID id.ProfileID) context.Context {
	return context.WithValue(ctx, ContextKeyActorID, actorID)
}

// AccessToken retrieves the raw bearer credential for the current request.
// The identity provider re-validates it on every guard call.
func AccessToken(ctx context.Context) string {
	if token, ok := ctx.Value(ContextKeyAccessToken).(string); ok {
		return token
	}
	return ""
}

// WithAccessToken injects the raw bearer credential.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ContextKeyAccessToken, token)
}

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, CLI, tests that don't care).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time, letting tests pin timestamps and letting
// a single request see one consistent clock reading.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
