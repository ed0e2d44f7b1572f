package logger

import "context"

type contextKey string

const RunIDKey contextKey = "run_id"
const SessionKeyKey contextKey = "session_key"

func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, SessionKeyKey, key)
}

func GetSessionKey(ctx context.Context) string {
	if key, ok := ctx.Value(SessionKeyKey).(string); ok {
		return key
	}
	return ""
}
