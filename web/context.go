package web

import (
	"context"

	"github.com/fieldbase/fieldbase/adapters/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// withClaims adds session claims to the context.
func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// getClaims retrieves session claims from context, or nil.
func getClaims(ctx context.Context) *auth.Claims {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}
