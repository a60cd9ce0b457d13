package provision

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/tmdc-io/pgduck/pkg/depot"
)

// RunContext holds the state of one pipeline run. It is created by Run and
// discarded when the run ends.
type RunContext struct {
	id  string
	log *slog.Logger

	resolved map[string]*depot.Resolved
	depots   []string
	seen     map[string]bool

	secretAttempted   map[string]bool
	secretProvisioned map[string]bool
	credentials       map[string]*depot.Credentials
}

// NewRunContext creates an empty run context with a fresh id.
func NewRunContext() *RunContext {
	id := uuid.NewString()
	return &RunContext{
		id:                id,
		log:               slog.With("run_id", id),
		resolved:          make(map[string]*depot.Resolved),
		seen:              make(map[string]bool),
		secretAttempted:   make(map[string]bool),
		secretProvisioned: make(map[string]bool),
		credentials:       make(map[string]*depot.Credentials),
	}
}

// ID returns the run id used to correlate log lines.
func (rc *RunContext) ID() string {
	return rc.id
}

// Logger returns the default logger tagged with the run id.
func (rc *RunContext) Logger() *slog.Logger {
	return rc.log
}

// Resolved returns the cached descriptor for an address.
func (rc *RunContext) Resolved(address string) (*depot.Resolved, bool) {
	r, ok := rc.resolved[address]
	return r, ok
}

// store caches a descriptor and records its depot id.
func (rc *RunContext) store(address string, r *depot.Resolved) {
	rc.resolved[address] = r
	if !rc.seen[r.Depot] {
		rc.seen[r.Depot] = true
		rc.depots = append(rc.depots, r.Depot)
	}
}

// Depots returns the distinct depot ids in first-seen order.
func (rc *RunContext) Depots() []string {
	out := make([]string, len(rc.depots))
	copy(out, rc.depots)
	return out
}

// claimSecret marks the depot's secret as attempted. It returns false when
// an earlier dataset already claimed it.
func (rc *RunContext) claimSecret(depotID string) bool {
	if rc.secretAttempted[depotID] {
		return false
	}
	rc.secretAttempted[depotID] = true
	return true
}

func (rc *RunContext) markSecretProvisioned(depotID string, creds *depot.Credentials) {
	rc.secretProvisioned[depotID] = true
	rc.credentials[depotID] = creds
}

// SecretProvisioned reports whether the depot's secret was registered in this run.
func (rc *RunContext) SecretProvisioned(depotID string) bool {
	return rc.secretProvisioned[depotID]
}
