package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tmdc-io/pgduck/pkg/depot"
	"github.com/tmdc-io/pgduck/pkg/engine"
	"github.com/tmdc-io/pgduck/pkg/storage"
)

const (
	testAccessKeyID = "AKIAEXAMPLEKEY"
	testSecretKey   = "wJalrXUtnFEMI/K7MDENG"
	testAccountKey  = "c2VjcmV0YWNjb3VudGtleQ=="
)

// recordingExec records every executed statement and fails those containing
// a configured substring.
type recordingExec struct {
	stmts []string
	fail  map[string]error
}

func (e *recordingExec) Execute(_ context.Context, sql string) (*engine.Result, error) {
	e.stmts = append(e.stmts, sql)
	for substr, err := range e.fail {
		if strings.Contains(sql, substr) {
			return nil, err
		}
	}
	return &engine.Result{Columns: []string{"Success"}, Rows: [][]any{{true}}}, nil
}

func (e *recordingExec) count(prefix string) int {
	n := 0
	for _, s := range e.stmts {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

// mapResolver serves descriptors from a map and counts calls per address.
type mapResolver struct {
	byAddress map[string]*depot.Resolved
	calls     map[string]int
	err       error
}

func newMapResolver(entries map[string]*depot.Resolved) *mapResolver {
	return &mapResolver{byAddress: entries, calls: map[string]int{}}
}

func (r *mapResolver) Resolve(_ context.Context, address string) (*depot.Resolved, error) {
	r.calls[address]++
	if r.err != nil {
		return nil, r.err
	}
	res, ok := r.byAddress[address]
	if !ok {
		return nil, errors.New("address not found")
	}
	cp := *res
	cp.Address = address
	return &cp, nil
}

// failingProber reports every target as unreachable.
type failingProber struct {
	targets []storage.Target
}

func (*failingProber) Name() string { return "failing" }

func (p *failingProber) Probe(_ context.Context, target storage.Target) (*storage.Availability, error) {
	p.targets = append(p.targets, target)
	return nil, errors.New("AccessDenied")
}

func s3Resolved(depotID, collection, dataset string) *depot.Resolved {
	return &depot.Resolved{
		Depot:      depotID,
		Type:       depot.TypeS3,
		Collection: collection,
		Dataset:    dataset,
		Location: depot.Location{
			Bucket:       "data-bucket",
			RelativePath: "/lake",
			Format:       "iceberg",
		},
	}
}

func abfssResolved(depotID, collection, dataset string) *depot.Resolved {
	return &depot.Resolved{
		Depot:      depotID,
		Type:       depot.TypeABFSS,
		Collection: collection,
		Dataset:    dataset,
		Location: depot.Location{
			Container:    "lake",
			Account:      "acct",
			RelativePath: "warehouse",
			Format:       "ICEBERG",
		},
	}
}

// secretDir writes depot property files into a temp directory.
func secretDir(t *testing.T, files map[string]string) *depot.FileSecretStore {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return depot.NewFileSecretStore(dir, depot.WithLookupEnv(func(string) (string, bool) { return "", false }))
}

func awsSecret() string {
	return "awsaccesskeyid=" + testAccessKeyID + "\nawssecretaccesskey=" + testSecretKey + "\n"
}
