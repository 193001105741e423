// Package jwt provides JWT configuration options.
//
// Configuration Example (YAML):
//
//	jwt:
//	  disabled: false
//	  key: "${MEMORIA_JWT_KEY}"
//	  signing-method: "HS256"
//	  expired: "2h"
//	  issuer: "memoria"
package jwt

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/memoria/pkg/options"
)

const (
	// DefaultSigningMethod is the default JWT signing algorithm.
	DefaultSigningMethod = "HS256"

	// DefaultExpired is the default token expiration time.
	DefaultExpired = 2 * time.Hour

	// DefaultIssuer is the default token issuer.
	DefaultIssuer = "memoria"

	// MinKeyLength is the minimum required key length for HMAC keys.
	MinKeyLength = 32

	// MaxKeyLength is the maximum allowed key length.
	MaxKeyLength = 256
)

// SupportedSigningMethods 只支持 HMAC 族算法。
var SupportedSigningMethods = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

var _ options.IOptions = (*Options)(nil)

// Options contains JWT configuration.
type Options struct {
	// Disabled 关闭鉴权，所有请求以匿名身份访问且读取不按所有者过滤。
	Disabled bool `json:"disabled" mapstructure:"disabled"`

	// Key is the HMAC secret used to sign and verify tokens.
	Key string `json:"-" mapstructure:"key"`

	// SigningMethod is the JWT signing algorithm.
	SigningMethod string `json:"signing-method" mapstructure:"signing-method"`

	// Expired is the token expiration duration used by Sign.
	Expired time.Duration `json:"expired" mapstructure:"expired"`

	// Issuer is the token issuer (iss claim).
	Issuer string `json:"issuer" mapstructure:"issuer"`

	// Audience is the intended audience for the token (aud claim).
	Audience []string `json:"audience" mapstructure:"audience"`
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		SigningMethod: DefaultSigningMethod,
		Expired:       DefaultExpired,
		Issuer:        DefaultIssuer,
		Audience:      []string{},
	}
}

// Validate validates the JWT options.
func (o *Options) Validate() []error {
	if o == nil || o.Disabled {
		return nil
	}

	var errs []error
	if !SupportedSigningMethods[o.SigningMethod] {
		errs = append(errs, fmt.Errorf("unsupported signing method: %s", o.SigningMethod))
	}
	switch {
	case o.Key == "":
		errs = append(errs, fmt.Errorf("jwt key is required"))
	case len(o.Key) < MinKeyLength:
		errs = append(errs, fmt.Errorf("jwt key must be at least %d characters, got: %d", MinKeyLength, len(o.Key)))
	case len(o.Key) > MaxKeyLength:
		errs = append(errs, fmt.Errorf("jwt key must be at most %d characters, got: %d", MaxKeyLength, len(o.Key)))
	}
	if o.Expired <= 0 {
		errs = append(errs, fmt.Errorf("expired must be positive, got: %v", o.Expired))
	}
	return errs
}

// Complete fills in default values for unset fields.
func (o *Options) Complete() error {
	if o.Key == "" {
		o.Key = os.Getenv("MEMORIA_JWT_KEY")
	}
	if o.SigningMethod == "" {
		o.SigningMethod = DefaultSigningMethod
	}
	if o.Expired == 0 {
		o.Expired = DefaultExpired
	}
	if o.Issuer == "" {
		o.Issuer = DefaultIssuer
	}
	return nil
}

// AddFlags adds flags for JWT options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "jwt")...)
	fs.BoolVar(&o.Disabled, p+"disabled", o.Disabled, "Disable JWT authentication (owner becomes anonymous).")
	fs.StringVar(&o.Key, p+"key", o.Key, "JWT signing key, min 32 chars. Falls back to MEMORIA_JWT_KEY.")
	fs.StringVar(&o.SigningMethod, p+"signing-method", o.SigningMethod, "JWT signing algorithm (HS256, HS384, HS512).")
	fs.DurationVar(&o.Expired, p+"expired", o.Expired, "JWT token expiration duration.")
	fs.StringVar(&o.Issuer, p+"issuer", o.Issuer, "JWT token issuer (iss claim).")
	fs.StringSliceVar(&o.Audience, p+"audience", o.Audience, "JWT token audience (aud claim).")
}
