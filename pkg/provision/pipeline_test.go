package provision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdc-io/pgduck/pkg/depot"
)

const scenarioAView = `CREATE VIEW orders_v AS (SELECT * FROM iceberg_scan("s3://data-bucket/lake/retail/orders", metadata_compression_codec="gzip", skip_schema_inference=true));`

func newTestPipeline(t *testing.T, resolver depot.Resolver, secrets depot.SecretStore, exec *recordingExec, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(resolver, secrets, exec, opts...)
	require.NoError(t, err)
	return p
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	resolver := newMapResolver(nil)
	secrets := secretDir(t, nil)
	exec := &recordingExec{}

	_, err := NewPipeline(nil, secrets, exec)
	assert.EqualError(t, err, "resolver is required")
	_, err = NewPipeline(resolver, nil, exec)
	assert.EqualError(t, err, "secret store is required")
	_, err = NewPipeline(resolver, secrets, nil)
	assert.EqualError(t, err, "executor is required")
}

func TestPipeline_ScenarioA(t *testing.T) {
	resolver := newMapResolver(map[string]*depot.Resolved{
		"dataos://icebase:retail/orders": s3Resolved("icebase01", "retail", "orders"),
	})
	exec := &recordingExec{}
	p := newTestPipeline(t, resolver, secretDir(t, map[string]string{"icebase01": awsSecret()}), exec)

	report, err := p.Run(context.Background(), Plan{
		Datasets: []Dataset{{Name: "orders_v", Address: "dataos://icebase:retail/orders"}},
		SQLs:     []string{},
	})
	require.NoError(t, err)

	require.Len(t, exec.stmts, 2)
	assert.True(t, strings.HasPrefix(exec.stmts[0], "CREATE SECRET awssecret ("))
	assert.Equal(t, scenarioAView, exec.stmts[1])

	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Secrets, 1)
	assert.Equal(t, StatusSucceeded, report.Secrets[0].Status)
	assert.NotContains(t, report.Secrets[0].Statement, testSecretKey)
	require.Len(t, report.Views, 1)
	assert.Equal(t, StatusSucceeded, report.Views[0].Status)
	assert.Equal(t, 1, report.Views[0].Rows)
	assert.Equal(t, 0, report.Failed())
}

func TestPipeline_ScenarioB_MultipleDepots(t *testing.T) {
	resolver := newMapResolver(map[string]*depot.Resolved{
		"addr-a": s3Resolved("A", "retail", "orders"),
		"addr-b": s3Resolved("B", "retail", "customers"),
	})
	exec := &recordingExec{}
	p := newTestPipeline(t, resolver, secretDir(t, map[string]string{"A": awsSecret(), "B": awsSecret()}), exec)

	report, err := p.Run(context.Background(), Plan{
		Datasets: []Dataset{{Name: "orders_v", Address: "addr-a"}, {Name: "customers_v", Address: "addr-b"}},
		SQLs:     []string{"SELECT 1"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, errors.Is(err, ErrMultipleDepots))
	assert.Empty(t, exec.stmts)
	assert.Empty(t, report.Secrets)
	assert.Empty(t, report.Views)
}

func TestPipeline_ScenarioC_MissingSecret(t *testing.T) {
	resolver := newMapResolver(map[string]*depot.Resolved{
		"addr-orders":    s3Resolved("icebase01", "retail", "orders"),
		"addr-customers": s3Resolved("icebase01", "retail", "customers"),
	})
	exec := &recordingExec{fail: map[string]error{"CREATE VIEW": errors.New("HTTP Error: 403 Forbidden")}}
	p := newTestPipeline(t, resolver, secretDir(t, nil), exec)

	report, err := p.Run(context.Background(), Plan{
		Datasets: []Dataset{{Name: "orders_v", Address: "addr-orders"}, {Name: "customers_v", Address: "addr-customers"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, exec.count("CREATE SECRET"))
	assert.Equal(t, 2, exec.count("CREATE VIEW"))

	require.Len(t, report.Secrets, 2)
	assert.Equal(t, StatusFailed, report.Secrets[0].Status)
	assert.True(t, errors.Is(report.Secrets[0].Err, depot.ErrSecret))
	assert.True(t, errors.Is(report.Secrets[0].Err, depot.ErrSecretNotFound))
	assert.Equal(t, StatusSkipped, report.Secrets[1].Status)
	assert.Contains(t, report.Secrets[1].Reason, "already attempted")

	require.Len(t, report.Views, 2)
	for i, name := range []string{"orders_v", "customers_v"} {
		assert.Equal(t, name, report.Views[i].Item)
		assert.Equal(t, StatusFailed, report.Views[i].Status)
		assert.True(t, errors.Is(report.Views[i].Err, ErrProvision))
		assert.Contains(t, report.Views[i].Reason, name)
	}
}

func TestPipeline_SecretOncePerDepot(t *testing.T) {
	entries := map[string]*depot.Resolved{}
	var datasets []Dataset
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		entries["addr-"+name] = s3Resolved("icebase01", "retail", name)
		datasets = append(datasets, Dataset{Name: name + "_v", Address: "addr-" + name})
	}
	exec := &recordingExec{}
	p := newTestPipeline(t, newMapResolver(entries), secretDir(t, map[string]string{"icebase01": awsSecret()}), exec)

	report, err := p.Run(context.Background(), Plan{Datasets: datasets})
	require.NoError(t, err)
	assert.Equal(t, 1, exec.count("CREATE SECRET"))
	assert.Equal(t, 5, exec.count("CREATE VIEW"))

	c := report.Counts()
	assert.Equal(t, 4, c[StatusSkipped])
	assert.Contains(t, report.Secrets[1].Reason, "already provisioned")
}

func TestPipeline_NonIcebergAborts(t *testing.T) {
	for _, format := range []string{"parquet", "DELTA", ""} {
		t.Run(format, func(t *testing.T) {
			r := s3Resolved("icebase01", "retail", "orders")
			r.Location.Format = format
			exec := &recordingExec{}
			p := newTestPipeline(t, newMapResolver(map[string]*depot.Resolved{"addr": r}),
				secretDir(t, map[string]string{"icebase01": awsSecret()}), exec)

			_, err := p.Run(context.Background(), Plan{Datasets: []Dataset{{Name: "v", Address: "addr"}}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedFormat))
			assert.Empty(t, exec.stmts)
		})
	}
}

func TestPipeline_NoDatasets(t *testing.T) {
	exec := &recordingExec{}
	p := newTestPipeline(t, newMapResolver(nil), secretDir(t, nil), exec)

	_, err := p.Run(context.Background(), Plan{SQLs: []string{"SELECT 1"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoDatasets))
	assert.Empty(t, exec.stmts)
}

func TestPipeline_ResolutionFailureIsFatal(t *testing.T) {
	resolver := newMapResolver(nil)
	resolver.err = errors.New("connection refused")
	exec := &recordingExec{}
	p := newTestPipeline(t, resolver, secretDir(t, nil), exec)

	_, err := p.Run(context.Background(), Plan{Datasets: []Dataset{{Name: "v", Address: "addr"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, depot.ErrResolution))
	assert.Contains(t, err.Error(), "dataset v")
	assert.Empty(t, exec.stmts)
}

func TestPipeline_DuplicateAddressResolvedOnce(t *testing.T) {
	resolver := newMapResolver(map[string]*depot.Resolved{"addr": s3Resolved("icebase01", "retail", "orders")})
	exec := &recordingExec{}
	p := newTestPipeline(t, resolver, secretDir(t, map[string]string{"icebase01": awsSecret()}), exec)

	_, err := p.Run(context.Background(), Plan{Datasets: []Dataset{
		{Name: "orders_v", Address: "addr"},
		{Name: "orders_copy", Address: "addr"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.calls["addr"])
	assert.Equal(t, 2, exec.count("CREATE VIEW"))
}

func TestPipeline_ViewFailureIsIsolated(t *testing.T) {
	resolver := newMapResolver(map[string]*depot.Resolved{
		"addr-a": s3Resolved("icebase01", "retail", "a"),
		"addr-b": s3Resolved("icebase01", "retail", "b"),
		"addr-c": s3Resolved("icebase01", "retail", "c"),
	})
	exec := &recordingExec{fail: map[string]error{"CREATE VIEW b_v": errors.New("Catalog Error")}}
	p := newTestPipeline(t, resolver, secretDir(t, map[string]string{"icebase01": awsSecret()}), exec)

	report, err := p.Run(context.Background(), Plan{Datasets: []Dataset{
		{Name: "a_v", Address: "addr-a"},
		{Name: "b_v", Address: "addr-b"},
		{Name: "c_v", Address: "addr-c"},
	}})
	require.NoError(t, err)
	require.Len(t, report.Views, 3)
	assert.Equal(t, StatusSucceeded, report.Views[0].Status)
	assert.Equal(t, StatusFailed, report.Views[1].Status)
	assert.Equal(t, StatusSucceeded, report.Views[2].Status)
	assert.Equal(t, 1, report.Failed())
}

func TestPipeline_SecretRejectedIsRedacted(t *testing.T) {
	resolver := newMapResolver(map[string]*depot.Resolved{"addr": s3Resolved("icebase01", "retail", "orders")})
	exec := &recordingExec{fail: map[string]error{
		"CREATE SECRET": errors.New("Invalid Input Error: SECRET '" + testSecretKey + "' rejected"),
	}}
	p := newTestPipeline(t, resolver, secretDir(t, map[string]string{"icebase01": awsSecret()}), exec)

	report, err := p.Run(context.Background(), Plan{Datasets: []Dataset{{Name: "orders_v", Address: "addr"}}})
	require.NoError(t, err)
	require.Len(t, report.Secrets, 1)

	out := report.Secrets[0]
	assert.Equal(t, StatusFailed, out.Status)
	assert.True(t, errors.Is(out.Err, depot.ErrSecret))
	assert.NotContains(t, out.Reason, testSecretKey)
	assert.NotContains(t, out.Statement, testSecretKey)
	assert.NotContains(t, out.Statement, testAccessKeyID)
	assert.Equal(t, 1, exec.count("CREATE VIEW"))
}

func TestPipeline_AzureDepot(t *testing.T) {
	resolver := newMapResolver(map[string]*depot.Resolved{"addr": abfssResolved("azdepot", "retail", "orders")})
	exec := &recordingExec{}
	secrets := secretDir(t, map[string]string{
		"azdepot": "azurestorageaccountname=acct\nazurestorageaccountkey=" + testAccountKey + "\n",
	})
	p := newTestPipeline(t, resolver, secrets, exec)

	_, err := p.Run(context.Background(), Plan{Datasets: []Dataset{{Name: "orders_v", Address: "addr"}}})
	require.NoError(t, err)
	require.Len(t, exec.stmts, 2)
	assert.True(t, strings.HasPrefix(exec.stmts[0], "CREATE SECRET azsecret (TYPE AZURE"))
	assert.Contains(t, exec.stmts[1], `iceberg_scan("azure://lake/warehouse/retail/orders", allow_moved_paths=true`)
}

func TestPipeline_PostSQL(t *testing.T) {
	resolver := newMapResolver(map[string]*depot.Resolved{"addr": s3Resolved("icebase01", "retail", "orders")})
	exec := &recordingExec{fail: map[string]error{"broken": errors.New("Parser Error")}}
	p := newTestPipeline(t, resolver, secretDir(t, map[string]string{"icebase01": awsSecret()}), exec)

	report, err := p.Run(context.Background(), Plan{
		Datasets: []Dataset{{Name: "orders_v", Address: "addr"}},
		SQLs:     []string{"SET threads = 4", "  ", "broken sql", "CREATE VIEW recent AS (SELECT * FROM orders_v)"},
	})
	require.NoError(t, err)
	require.Len(t, report.SQLs, 4)
	assert.Equal(t, StatusSucceeded, report.SQLs[0].Status)
	assert.Equal(t, StatusSkipped, report.SQLs[1].Status)
	assert.Equal(t, StatusFailed, report.SQLs[2].Status)
	assert.True(t, errors.Is(report.SQLs[2].Err, ErrProvision))
	assert.Equal(t, StatusSucceeded, report.SQLs[3].Status)
	assert.Equal(t, "CREATE VIEW recent AS (SELECT * FROM orders_v)", exec.stmts[len(exec.stmts)-1])
}

func TestPipeline_PreflightNeverBlocksViews(t *testing.T) {
	resolver := newMapResolver(map[string]*depot.Resolved{"addr": s3Resolved("icebase01", "retail", "orders")})
	exec := &recordingExec{}
	prober := &failingProber{}
	p := newTestPipeline(t, resolver, secretDir(t, map[string]string{"icebase01": awsSecret()}), exec, WithProber(prober))

	report, err := p.Run(context.Background(), Plan{Datasets: []Dataset{{Name: "orders_v", Address: "addr"}}})
	require.NoError(t, err)

	require.Len(t, prober.targets, 1)
	assert.Equal(t, "data-bucket", prober.targets[0].Bucket)
	assert.Equal(t, "lake/retail/orders", prober.targets[0].Prefix)
	assert.Equal(t, testAccessKeyID, prober.targets[0].AccessKeyID)

	require.Len(t, report.Probes, 1)
	assert.Equal(t, StatusFailed, report.Probes[0].Status)
	assert.Equal(t, scenarioAView, exec.stmts[1])
	assert.Equal(t, StatusSucceeded, report.Views[0].Status)
}

func TestPipeline_PreflightSkipsWithoutCredentials(t *testing.T) {
	resolver := newMapResolver(map[string]*depot.Resolved{"addr": s3Resolved("icebase01", "retail", "orders")})
	prober := &failingProber{}
	p := newTestPipeline(t, resolver, secretDir(t, nil), &recordingExec{}, WithProber(prober))

	report, err := p.Run(context.Background(), Plan{Datasets: []Dataset{{Name: "orders_v", Address: "addr"}}})
	require.NoError(t, err)
	assert.Empty(t, prober.targets)
	require.Len(t, report.Probes, 1)
	assert.Equal(t, StatusSkipped, report.Probes[0].Status)
}

func TestReport_String(t *testing.T) {
	r := &Report{
		RunID:   "run-1",
		Secrets: []Outcome{succeeded("d", "", 1)},
		Views:   []Outcome{failed("v", "", errors.New("x")), skipped("w", "y")},
	}
	assert.Equal(t, "run run-1: 1 succeeded, 1 failed, 1 skipped", r.String())
	assert.Equal(t, 1, r.Failed())
}

func TestRunContext_Depots(t *testing.T) {
	rc := runContextWith(nil)
	rc.store("a", s3Resolved("d1", "c", "a"))
	rc.store("b", s3Resolved("d1", "c", "b"))
	rc.store("c", s3Resolved("d2", "c", "c"))
	assert.Equal(t, []string{"d1", "d2"}, rc.Depots())

	assert.True(t, rc.claimSecret("d1"))
	assert.False(t, rc.claimSecret("d1"))
	assert.False(t, rc.SecretProvisioned("d1"))

	other := NewRunContext()
	assert.NotEqual(t, rc.ID(), other.ID())
	assert.Empty(t, other.Depots())
}
