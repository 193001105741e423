// Package options contains flags and options for initializing the memoria server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/memoria/internal/memoria"
	"github.com/kart-io/memoria/pkg/infra/app"
	dbopts "github.com/kart-io/memoria/pkg/options/database"
	jwtopts "github.com/kart-io/memoria/pkg/options/jwt"
	llmopts "github.com/kart-io/memoria/pkg/options/llm"
	logopts "github.com/kart-io/memoria/pkg/options/logger"
	memoriaopts "github.com/kart-io/memoria/pkg/options/memoria"
	redisopts "github.com/kart-io/memoria/pkg/options/redis"
	httpopts "github.com/kart-io/memoria/pkg/options/server/http"
	tracingopts "github.com/kart-io/memoria/pkg/options/tracing"
)

var _ app.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	HTTPOptions     *httpopts.Options        `json:"http" mapstructure:"http"`
	LogOptions      *logopts.Options         `json:"log" mapstructure:"log"`
	DatabaseOptions *dbopts.Options          `json:"database" mapstructure:"database"`
	RedisOptions    *redisopts.Options       `json:"redis" mapstructure:"redis"`
	LLMOptions      *llmopts.ProviderOptions `json:"llm" mapstructure:"llm"`
	JWTOptions      *jwtopts.Options         `json:"jwt" mapstructure:"jwt"`
	TracingOptions  *tracingopts.Options     `json:"tracing" mapstructure:"tracing"`
	MemoriaOptions  *memoriaopts.Options     `json:"memoria" mapstructure:"memoria"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:     httpopts.NewOptions(),
		LogOptions:      logopts.NewOptions(),
		DatabaseOptions: dbopts.NewOptions(),
		RedisOptions:    redisopts.NewOptions(),
		LLMOptions:      llmopts.NewProviderOptions(),
		JWTOptions:      jwtopts.NewOptions(),
		TracingOptions:  tracingopts.NewOptions(),
		MemoriaOptions:  memoriaopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.DatabaseOptions.AddFlags(fss.FlagSet("database"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.LLMOptions.AddFlags(fss.FlagSet("llm"))
	o.JWTOptions.AddFlags(fss.FlagSet("jwt"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.MemoriaOptions.AddFlags(fss.FlagSet("memoria"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := o.DatabaseOptions.Complete(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := o.RedisOptions.Complete(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := o.LLMOptions.Complete(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := o.JWTOptions.Complete(); err != nil {
		return fmt.Errorf("jwt: %w", err)
	}
	return o.MemoriaOptions.Complete()
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.DatabaseOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.LLMOptions.Validate()...)
	errs = append(errs, o.JWTOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	errs = append(errs, o.MemoriaOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

// Config builds a memoria.Config based on ServerOptions.
func (o *ServerOptions) Config() (*memoria.Config, error) {
	return &memoria.Config{
		HTTPOptions:     o.HTTPOptions,
		LogOptions:      o.LogOptions,
		DatabaseOptions: o.DatabaseOptions,
		RedisOptions:    o.RedisOptions,
		LLMOptions:      o.LLMOptions,
		JWTOptions:      o.JWTOptions,
		TracingOptions:  o.TracingOptions,
		MemoriaOptions:  o.MemoriaOptions,
	}, nil
}
