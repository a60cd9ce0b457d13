package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmdc-io/pgduck/pkg/depot"
	"github.com/tmdc-io/pgduck/pkg/engine"
	"github.com/tmdc-io/pgduck/pkg/storage"
)

// resolveAll resolves every dataset address once. The first failure aborts.
func resolveAll(ctx context.Context, resolver depot.Resolver, rc *RunContext, datasets []Dataset) error {
	for _, ds := range datasets {
		if _, ok := rc.Resolved(ds.Address); ok {
			rc.Logger().Debug("address already resolved", "dataset", ds.Name, "address", ds.Address)
			continue
		}

		r, err := resolver.Resolve(ctx, ds.Address)
		if err != nil {
			if errors.Is(err, depot.ErrResolution) {
				return fmt.Errorf("dataset %s: %w", ds.Name, err)
			}
			return fmt.Errorf("%w: dataset %s: %w", depot.ErrResolution, ds.Name, err)
		}
		if r == nil {
			return fmt.Errorf("%w: dataset %s: empty response for %s", depot.ErrResolution, ds.Name, ds.Address)
		}

		rc.store(ds.Address, r)
		rc.Logger().Info("address resolved",
			"dataset", ds.Name,
			"address", ds.Address,
			"depot", r.Depot,
			"type", string(r.Type),
			"format", r.Format(),
		)
	}
	return nil
}

// SecretProvisioner registers the storage credentials of each depot once.
type SecretProvisioner struct {
	secrets depot.SecretStore
	exec    engine.Executor
}

// Provision walks the datasets in order and attempts each depot's secret on
// its first occurrence. Failures are isolated to the returned outcome.
func (p *SecretProvisioner) Provision(ctx context.Context, rc *RunContext, datasets []Dataset) []Outcome {
	outcomes := make([]Outcome, 0, len(datasets))
	for _, ds := range datasets {
		r, _ := rc.Resolved(ds.Address)
		if !rc.claimSecret(r.Depot) {
			reason := "secret already provisioned for depot " + r.Depot
			if !rc.SecretProvisioned(r.Depot) {
				reason = "secret already attempted for depot " + r.Depot
			}
			rc.Logger().Debug("skipping secret", "dataset", ds.Name, "reason", reason)
			outcomes = append(outcomes, skipped(ds.Name, reason))
			continue
		}
		outcomes = append(outcomes, p.provisionOne(ctx, rc, r))
	}
	return outcomes
}

func (p *SecretProvisioner) provisionOne(ctx context.Context, rc *RunContext, r *depot.Resolved) Outcome {
	log := rc.Logger().With("depot", r.Depot)

	creds, err := p.secrets.Secret(ctx, r.Depot)
	if err != nil {
		log.Error("fetching depot secret failed", "error", err)
		return failed(r.Depot, "", err)
	}

	stmt, err := SecretStatement(r, creds)
	if err != nil {
		if !errors.Is(err, depot.ErrSecret) {
			err = fmt.Errorf("%w: depot %s: %w", depot.ErrSecret, r.Depot, err)
		}
		log.Error("building secret statement failed", "error", err)
		return failed(r.Depot, "", err)
	}

	result, err := p.exec.Execute(ctx, stmt.SQL())
	if err != nil {
		err = fmt.Errorf("%w: depot %s: registering secret %s: %w", depot.ErrSecret, r.Depot, stmt.Name, redact(err, stmt))
		log.Error("secret statement failed", "statement", stmt, "error", err)
		return failed(r.Depot, stmt.Masked(), err)
	}

	rc.markSecretProvisioned(r.Depot, creds)
	log.Info("secret provisioned", "secret", stmt.Name, "statement", stmt, "rows", result.Count())
	return succeeded(r.Depot, stmt.Masked(), result.Count())
}

// ViewProvisioner creates one Iceberg view per dataset.
type ViewProvisioner struct {
	exec engine.Executor
}

// Provision attempts every dataset in order. A failing view never stops the
// remaining ones.
func (p *ViewProvisioner) Provision(ctx context.Context, rc *RunContext, datasets []Dataset) []Outcome {
	outcomes := make([]Outcome, 0, len(datasets))
	for _, ds := range datasets {
		outcomes = append(outcomes, p.provisionOne(ctx, rc, ds))
	}
	return outcomes
}

func (p *ViewProvisioner) provisionOne(ctx context.Context, rc *RunContext, ds Dataset) Outcome {
	r, _ := rc.Resolved(ds.Address)
	log := rc.Logger().With("dataset", ds.Name)

	stmt, err := ViewStatement(ds.Name, r)
	if err != nil {
		err = fmt.Errorf("%w: view %s: %w", ErrProvision, ds.Name, err)
		log.Error("building view statement failed", "error", err)
		return failed(ds.Name, "", err)
	}

	result, err := p.exec.Execute(ctx, stmt.SQL())
	if err != nil {
		err = fmt.Errorf("%w: view %s: %w", ErrProvision, ds.Name, err)
		log.Error("view creation failed", "statement", stmt, "error", err)
		return failed(ds.Name, stmt.Masked(), err)
	}

	log.Info("view created", "view", ds.Name, "rows", result.Count(), "result", result.String())
	return succeeded(ds.Name, stmt.Masked(), result.Count())
}

// PostSQLRunner executes the trailing configured statements.
type PostSQLRunner struct {
	exec engine.Executor
}

// Run executes each statement in order. Blank entries are skipped.
func (p *PostSQLRunner) Run(ctx context.Context, rc *RunContext, sqls []string) []Outcome {
	outcomes := make([]Outcome, 0, len(sqls))
	for i, raw := range sqls {
		text := strings.TrimSpace(raw)
		if text == "" {
			outcomes = append(outcomes, skipped(fmt.Sprintf("sqls[%d]", i), "blank statement"))
			continue
		}

		stmt := RawStatement(text)
		result, err := p.exec.Execute(ctx, stmt.SQL())
		if err != nil {
			err = fmt.Errorf("%w: sqls[%d]: %w", ErrProvision, i, err)
			rc.Logger().Error("statement failed", "index", i, "statement", text, "error", err)
			outcomes = append(outcomes, failed(text, text, err))
			continue
		}
		rc.Logger().Info("statement executed", "index", i, "statement", text, "rows", result.Count())
		outcomes = append(outcomes, succeeded(text, text, result.Count()))
	}
	return outcomes
}

// probeAll checks each object storage dataset's Iceberg metadata before its
// view is created. Results are advisory.
func probeAll(ctx context.Context, prober storage.Prober, rc *RunContext, datasets []Dataset) []Outcome {
	outcomes := make([]Outcome, 0, len(datasets))
	for _, ds := range datasets {
		r, _ := rc.Resolved(ds.Address)
		log := rc.Logger().With("dataset", ds.Name, "prober", prober.Name())

		if r.Type.Backend() != depot.BackendObjectStorage {
			outcomes = append(outcomes, skipped(ds.Name, "preflight not supported for "+string(r.Type)))
			continue
		}
		creds, ok := rc.credentials[r.Depot]
		if !ok {
			outcomes = append(outcomes, skipped(ds.Name, "no credentials for depot "+r.Depot))
			continue
		}
		aws, err := creds.AWS()
		if err != nil {
			outcomes = append(outcomes, skipped(ds.Name, err.Error()))
			continue
		}

		target := storage.Target{
			Bucket:          r.Location.Bucket,
			Prefix:          r.Prefix(),
			Region:          r.Location.Region,
			Endpoint:        r.Location.Endpoint,
			AccessKeyID:     aws.AccessKeyID,
			SecretAccessKey: aws.SecretAccessKey,
		}
		avail, err := prober.Probe(ctx, target)
		if err != nil {
			log.Warn("storage preflight failed", "target", target.String(), "error", err)
			outcomes = append(outcomes, failed(ds.Name, "", err))
			continue
		}
		if !avail.Available {
			log.Warn("storage preflight found no data", "target", target.String(), "reason", avail.Error)
			outcomes = append(outcomes, failed(ds.Name, "", errors.New(avail.Error)))
			continue
		}
		log.Info("storage preflight passed", "target", target.String(), "objects", avail.ObjectCount)
		outcomes = append(outcomes, succeeded(ds.Name, "", int(avail.ObjectCount)))
	}
	return outcomes
}
