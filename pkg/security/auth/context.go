// Package auth 定义身份声明及其在 context 中的传递。
package auth

import (
	"context"
)

// Anonymous 是关闭鉴权时使用的身份。
const Anonymous = "anonymous"

// Claims 是已验证令牌中的声明。
type Claims struct {
	Subject   string   `json:"sub"`
	Issuer    string   `json:"iss,omitempty"`
	Audience  []string `json:"aud,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	IssuedAt  int64    `json:"iat,omitempty"`
	ID        string   `json:"jti,omitempty"`
}

// Verifier 校验令牌。
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

type contextKey string

const (
	claimsKey  contextKey = "auth:claims"
	subjectKey contextKey = "auth:subject"
)

// ContextWithClaims returns a new context with the given claims and their subject.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	if claims != nil {
		ctx = context.WithValue(ctx, subjectKey, claims.Subject)
	}
	return ctx
}

// ClaimsFromContext returns the claims from the context, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

// ContextWithSubject returns a new context with the given subject (owner id).
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext returns the subject from the context.
// Returns empty string if no subject is found.
func SubjectFromContext(ctx context.Context) string {
	if subject, ok := ctx.Value(subjectKey).(string); ok {
		return subject
	}
	return ""
}
