package types

import (
	"context"

	"github.com/google/uuid"
)

// Surface identifies which public surface a request entered through. Every
// request is bound to exactly one surface for its entire lifetime.
type Surface string

const (
	SurfaceSite   Surface = "site"
	SurfaceClient Surface = "client"
	SurfaceAdmin  Surface = "admin"
)

// Valid reports whether s is one of the known surfaces.
func (s Surface) Valid() bool {
	switch s {
	case SurfaceSite, SurfaceClient, SurfaceAdmin:
		return true
	}
	return false
}

// ActorKind classifies the authenticated principal attached to a request.
type ActorKind string

const (
	ActorAnon   ActorKind = "anon"
	ActorClient ActorKind = "client"
	ActorAdmin  ActorKind = "admin"
)

// Actor is the resolved identity for a request. Anonymous requests carry an
// Actor with Kind == ActorAnon and a nil AccountID.
type Actor struct {
	Kind      ActorKind
	AccountID *uuid.UUID
	SessionID *uuid.UUID
	Surface   Surface
}

// Anonymous returns true when no authenticated identity is attached.
func (a Actor) Anonymous() bool {
	return a.Kind == ActorAnon || a.AccountID == nil
}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	surfaceKey   contextKey = "surface"
	clientIPKey  contextKey = "client_ip"
	actorKey     contextKey = "actor"
)

// WithRequestID returns a new context with the request ID attached.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID extracts the request ID from the context. Returns an empty
// string if not present.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithSurface returns a new context with the request surface attached.
func WithSurface(ctx context.Context, surface Surface) context.Context {
	return context.WithValue(ctx, surfaceKey, surface)
}

// GetSurface extracts the surface from the context. Returns an empty Surface
// if not present.
func GetSurface(ctx context.Context) Surface {
	s, _ := ctx.Value(surfaceKey).(Surface)
	return s
}

// WithClientIP returns a new context with the resolved client IP attached.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetClientIP extracts the resolved client IP from the context. Returns an
// empty string if not present.
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// WithActor returns a new context with the resolved actor attached.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor extracts the actor from the context. Returns an anonymous actor
// if not present.
func GetActor(ctx context.Context) Actor {
	a, ok := ctx.Value(actorKey).(Actor)
	if !ok {
		return Actor{Kind: ActorAnon}
	}
	return a
}
