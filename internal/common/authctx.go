package common

import (
	"context"
	"strings"
)

type userEmailKey struct{}

// WithUserEmail stores the authenticated caller's email on the context.
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userEmailKey{}, strings.TrimSpace(email))
}

// UserEmail extracts the authenticated caller's email from the context.
func UserEmail(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(userEmailKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
