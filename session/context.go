package session

import "context"

type contextKey struct{}

// NewContext returns a copy of ctx carrying sess.
func NewContext(ctx context.Context, sess AdminSession) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

func FromContext(ctx context.Context) (AdminSession, bool) {
	sess, ok := ctx.Value(contextKey{}).(AdminSession)
	return sess, ok
}
