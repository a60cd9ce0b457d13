package platform

import (
	"github.com/tmdc-io/pgduck/pkg/depot"
	"github.com/tmdc-io/pgduck/pkg/engine"
	"github.com/tmdc-io/pgduck/pkg/storage"
)

// Options configures the platform.
type Options struct {
	// Config is the process configuration.
	Config *Config

	// Engine (optional, opened from config if not provided).
	Engine engine.Engine

	// Resolver (optional, a depot service client is created from config if not provided).
	Resolver depot.Resolver

	// SecretStore (optional, a file store over depot.secret_dir if not provided).
	SecretStore depot.SecretStore

	// Prober (optional, the S3 prober when preflight is enabled).
	Prober storage.Prober
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithEngine sets the query engine.
func WithEngine(e engine.Engine) Option {
	return func(o *Options) {
		o.Engine = e
	}
}

// WithResolver sets the depot resolver.
func WithResolver(r depot.Resolver) Option {
	return func(o *Options) {
		o.Resolver = r
	}
}

// WithSecretStore sets the depot secret store.
func WithSecretStore(s depot.SecretStore) Option {
	return func(o *Options) {
		o.SecretStore = s
	}
}

// WithProber sets the storage prober and enables preflight.
func WithProber(p storage.Prober) Option {
	return func(o *Options) {
		o.Prober = p
	}
}
