package feed

import "context"

type actorKey struct{}

// WithActor records the user a commit is made for.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

func ActorFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(actorKey{}).(string)
	return v, ok
}
