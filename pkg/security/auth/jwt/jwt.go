// Package jwt 使用 HMAC 签名的 JSON Web Token 实现 auth.Verifier。
//
// Usage:
//
//	j, err := jwt.New(opts)
//	token, _, err := j.Sign(ctx, "owner-1")
//	claims, err := j.Verify(ctx, token)
package jwt

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/id"
	jwtopts "github.com/kart-io/memoria/pkg/options/jwt"
	"github.com/kart-io/memoria/pkg/security/auth"
)

var _ auth.Verifier = (*JWT)(nil)

// JWT signs and verifies owner tokens.
type JWT struct {
	opts   *jwtopts.Options
	method jwt.SigningMethod
	now    func() time.Time
}

// New creates a JWT from validated options.
func New(opts *jwtopts.Options) (*JWT, error) {
	if opts == nil {
		opts = jwtopts.NewOptions()
	}
	if err := opts.Complete(); err != nil {
		return nil, fmt.Errorf("complete options: %w", err)
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validate options: %w", stderrors.Join(errs...))
	}

	method := jwt.GetSigningMethod(opts.SigningMethod)
	if method == nil {
		return nil, fmt.Errorf("unsupported signing method: %s", opts.SigningMethod)
	}
	return &JWT{opts: opts, method: method, now: time.Now}, nil
}

// Sign creates a token whose subject is the owner id.
func (j *JWT) Sign(_ context.Context, subject string) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(j.opts.Expired)

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    j.opts.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		NotBefore: jwt.NewNumericDate(now),
		ID:        id.New(),
	}
	if len(j.opts.Audience) > 0 {
		claims.Audience = j.opts.Audience
	}

	token, err := jwt.NewWithClaims(j.method, claims).SignedString([]byte(j.opts.Key))
	if err != nil {
		return "", time.Time{}, errors.ErrInternal.WithCause(err).WithMessage("failed to sign token")
	}
	return token, expiresAt, nil
}

// Verify validates the token and returns the claims.
func (j *JWT) Verify(_ context.Context, tokenString string) (*auth.Claims, error) {
	if tokenString == "" {
		return nil, errors.ErrInvalidToken.WithMessage("token is empty")
	}

	parser := jwt.Parser{}
	claims := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(j.opts.Key), nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}
	if !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, errors.ErrInvalidToken.WithMessage("missing subject")
	}
	if j.opts.Issuer != "" && !claims.VerifyIssuer(j.opts.Issuer, true) {
		return nil, errors.ErrInvalidToken.WithMessage("unexpected issuer")
	}

	out := &auth.Claims{
		Subject:  claims.Subject,
		Issuer:   claims.Issuer,
		Audience: claims.Audience,
		ID:       claims.ID,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Unix()
	}
	return out, nil
}

// mapParseError 将 jwt 解析错误映射为 Errno。
func mapParseError(err error) *errors.Errno {
	var ve *jwt.ValidationError
	if stderrors.As(err, &ve) {
		switch {
		case ve.Errors&jwt.ValidationErrorExpired != 0:
			return errors.ErrTokenExpired
		case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
			return errors.ErrInvalidToken.WithMessage("invalid signature")
		case ve.Errors&jwt.ValidationErrorMalformed != 0:
			return errors.ErrInvalidToken.WithMessage("malformed token")
		case ve.Errors&jwt.ValidationErrorNotValidYet != 0:
			return errors.ErrInvalidToken.WithMessage("token not valid yet")
		}
	}
	return errors.ErrInvalidToken.WithCause(err)
}
