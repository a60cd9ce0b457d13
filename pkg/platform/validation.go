package platform

import (
	"fmt"
	"net/url"
	"strings"
)

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "text": true}
)

// Validate checks the configuration in one pass and reports every violation.
// An empty dataset list is left to the provisioning gate; a missing one is
// a configuration error.
func (c *Config) Validate() error {
	var errs []string

	if c.Datasets == nil {
		errs = append(errs, "datasets is required")
	}
	seen := make(map[string]bool, len(c.Datasets))
	for i, ds := range c.Datasets {
		if err := ds.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("datasets[%d]: %v", i, err))
			continue
		}
		key := strings.ToLower(ds.Name)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("datasets[%d]: duplicate view name %s", i, ds.Name))
		}
		seen[key] = true
	}

	if c.Depot.ServiceURL == "" {
		errs = append(errs, "depot.service_url is required (or "+EnvDepotServiceURL+")")
	} else if u, err := url.Parse(c.Depot.ServiceURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "depot.service_url must be an absolute URL")
	}
	if c.Depot.APIKey == "" {
		errs = append(errs, "depot.api_key is required (or "+EnvAPIKey+")")
	}
	if c.Depot.Timeout < 0 {
		errs = append(errs, "depot.timeout must not be negative")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	for user, hash := range c.Server.Users {
		if !strings.HasPrefix(hash, "$2") {
			errs = append(errs, fmt.Sprintf("server.users.%s must be a bcrypt hash", user))
		}
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if !validLogFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, fmt.Sprintf("log.format %q is not json or text", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrConfig, strings.Join(errs, "; "))
	}
	return nil
}
