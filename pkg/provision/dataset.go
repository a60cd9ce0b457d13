package provision

import (
	"fmt"
	"regexp"
)

// viewName matches an unquoted engine identifier.
var viewName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Dataset is a declared view name and the logical address it reads from.
type Dataset struct {
	Name    string `yaml:"name" json:"name"`
	Address string `yaml:"address" json:"address"`
}

// Validate checks that both fields are set and the name is a plain identifier.
func (d Dataset) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("dataset name is required")
	}
	if !viewName.MatchString(d.Name) {
		return fmt.Errorf("dataset name %q is not a valid identifier", d.Name)
	}
	if d.Address == "" {
		return fmt.Errorf("dataset %s: address is required", d.Name)
	}
	return nil
}

// Plan is the input of one provisioning run.
type Plan struct {
	Datasets []Dataset
	SQLs     []string
}
