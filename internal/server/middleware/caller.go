package middleware

import "context"

type callerHolderKey struct{}

// callerHolder is shared between Logging and RecordCaller of the same request
type callerHolder struct {
	userID string
}

func withCallerHolder(ctx context.Context, h *callerHolder) context.Context {
	return context.WithValue(ctx, callerHolderKey{}, h)
}

func callerHolderFrom(ctx context.Context) *callerHolder {
	h, _ := ctx.Value(callerHolderKey{}).(*callerHolder)
	return h
}
