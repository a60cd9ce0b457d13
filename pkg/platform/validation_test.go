package platform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdc-io/pgduck/pkg/provision"
)

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_EmptyDatasetsLeftToProvisioning(t *testing.T) {
	cfg := validConfig()
	cfg.Datasets = []provision.Dataset{}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "missing datasets",
			mutate: func(c *Config) { c.Datasets = nil },
			want:   "datasets is required",
		},
		{
			name:   "dataset without address",
			mutate: func(c *Config) { c.Datasets = []provision.Dataset{{Name: "orders_v"}} },
			want:   "datasets[0]: dataset orders_v: address is required",
		},
		{
			name: "duplicate view name",
			mutate: func(c *Config) {
				c.Datasets = append(c.Datasets, provision.Dataset{Name: "ORDERS_V", Address: "x"})
			},
			want: "duplicate view name ORDERS_V",
		},
		{
			name:   "missing service url",
			mutate: func(c *Config) { c.Depot.ServiceURL = "" },
			want:   "depot.service_url is required",
		},
		{
			name:   "relative service url",
			mutate: func(c *Config) { c.Depot.ServiceURL = "dataos/ds" },
			want:   "depot.service_url must be an absolute URL",
		},
		{
			name:   "missing api key",
			mutate: func(c *Config) { c.Depot.APIKey = "" },
			want:   "depot.api_key is required",
		},
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Server.Port = 70000 },
			want:   "server.port 70000 out of range",
		},
		{
			name:   "plaintext password",
			mutate: func(c *Config) { c.Server.Users = map[string]string{"analyst": "hunter2"} },
			want:   "server.users.analyst must be a bcrypt hash",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Log.Level = "verbose" },
			want:   `log.level "verbose"`,
		},
		{
			name:   "bad log format",
			mutate: func(c *Config) { c.Log.Format = "xml" },
			want:   `log.format "xml"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	cfg := validConfig()
	cfg.Datasets = nil
	cfg.Depot.ServiceURL = ""
	cfg.Depot.APIKey = ""
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"datasets is required", "depot.service_url", "depot.api_key", "log.format"} {
		assert.Contains(t, err.Error(), want)
	}
}
