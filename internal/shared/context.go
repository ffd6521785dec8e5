package shared

import (
	"context"
	"strconv"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// Caller identifies the actor and tenant behind a mutating operation.
// Every core service method takes it explicitly so the business layer stays
// testable without a request-simulation harness.
type Caller struct {
	ActorID   int64
	ActorName string
	OrgID     int64
}

// CallerFromSession resolves the caller identity stored in the session.
// The second return value is false when the session carries no login.
func CallerFromSession(sess *Session) (Caller, bool) {
	if sess == nil {
		return Caller{}, false
	}
	actorID, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil || actorID == 0 {
		return Caller{}, false
	}
	orgID, err := strconv.ParseInt(sess.Get(SessionOrgKey), 10, 64)
	if err != nil || orgID == 0 {
		return Caller{}, false
	}
	return Caller{
		ActorID:   actorID,
		ActorName: sess.Get(SessionActorNameKey),
		OrgID:     orgID,
	}, true
}
