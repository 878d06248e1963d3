package audit

import "context"

type actorKey struct{}

type requestInfoKey struct{}

// RequestInfo carries best-effort request provenance for audit rows.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// WithActor records the acting user on the context. Callers pass the actor
// explicitly; background jobs and pre-auth flows simply never call this.
func WithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the acting user, if one was established.
func ActorFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorKey{}).(int64)
	return id, ok
}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}
