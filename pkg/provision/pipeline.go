// Package provision turns declared datasets into engine views backed by
// resolved depots.
package provision

import (
	"context"
	"fmt"

	"github.com/tmdc-io/pgduck/pkg/depot"
	"github.com/tmdc-io/pgduck/pkg/engine"
	"github.com/tmdc-io/pgduck/pkg/storage"
)

// Pipeline sequences one provisioning run: resolve, validate, secret,
// optional preflight, views and trailing statements.
type Pipeline struct {
	resolver depot.Resolver
	secrets  *SecretProvisioner
	views    *ViewProvisioner
	post     *PostSQLRunner
	prober   storage.Prober
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithProber enables the storage preflight phase.
func WithProber(p storage.Prober) Option {
	return func(pl *Pipeline) {
		pl.prober = p
	}
}

// NewPipeline creates a pipeline over a resolver, a secret store and an engine.
func NewPipeline(resolver depot.Resolver, secrets depot.SecretStore, exec engine.Executor, opts ...Option) (*Pipeline, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("secret store is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}

	p := &Pipeline{
		resolver: resolver,
		secrets:  &SecretProvisioner{secrets: secrets, exec: exec},
		views:    &ViewProvisioner{exec: exec},
		post:     &PostSQLRunner{exec: exec},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes the plan once. Resolution and validation failures are
// returned as errors before any statement executes. Every later failure is
// recorded in the report and the run continues.
func (p *Pipeline) Run(ctx context.Context, plan Plan) (*Report, error) {
	rc := NewRunContext()
	report := &Report{RunID: rc.ID()}
	log := rc.Logger()

	log.Info("provisioning started", "datasets", len(plan.Datasets), "sqls", len(plan.SQLs))

	if err := resolveAll(ctx, p.resolver, rc, plan.Datasets); err != nil {
		log.Error("resolution failed", "error", err)
		return report, err
	}
	if err := Validate(plan.Datasets, rc); err != nil {
		log.Error("validation failed", "error", err)
		return report, err
	}

	report.Secrets = p.secrets.Provision(ctx, rc, plan.Datasets)
	if p.prober != nil {
		report.Probes = probeAll(ctx, p.prober, rc, plan.Datasets)
	}
	report.Views = p.views.Provision(ctx, rc, plan.Datasets)
	report.SQLs = p.post.Run(ctx, rc, plan.SQLs)

	c := report.Counts()
	log.Info("provisioning finished",
		"succeeded", c[StatusSucceeded],
		"failed", c[StatusFailed],
		"skipped", c[StatusSkipped],
	)
	return report, nil
}
