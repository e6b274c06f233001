package utils

import (
	"context"
)

type contextKey string

const (
	RequestIDKey   contextKey = "request_id"
	HolderTokenKey contextKey = "holder_token"
)

func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func GetRequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDKey).(string)
	return id, ok && id != ""
}

// SetHolderToken stores the checkout session token a request acts for.
func SetHolderToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, HolderTokenKey, token)
}

func GetHolderTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(HolderTokenKey).(string)
	return token, ok && token != ""
}
