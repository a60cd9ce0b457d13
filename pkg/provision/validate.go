package provision

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tmdc-io/pgduck/pkg/depot"
)

// Validate runs the ordered depot checks over the resolved snapshot. The
// first failing check is returned and lists every offending dataset.
func Validate(datasets []Dataset, rc *RunContext) error {
	if len(datasets) == 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrNoDatasets)
	}

	resolved := make([]*depot.Resolved, len(datasets))
	var missing []string
	for i, ds := range datasets {
		r, ok := rc.Resolved(ds.Address)
		if !ok {
			missing = append(missing, ds.Name)
			continue
		}
		resolved[i] = r
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: datasets not resolved: %s", ErrValidation, strings.Join(missing, ", "))
	}

	var offenders []string
	for i, ds := range datasets {
		if !resolved[i].Type.Supported() {
			offenders = append(offenders, fmt.Sprintf("%s (type %q)", ds.Name, resolved[i].Type))
		}
	}
	if len(offenders) > 0 {
		return fmt.Errorf("%w: %w: %s", ErrValidation, ErrUnsupportedType, strings.Join(offenders, ", "))
	}

	for i, ds := range datasets {
		if !resolved[i].IsIceberg() {
			offenders = append(offenders, fmt.Sprintf("%s (format %q)", ds.Name, resolved[i].Format()))
		}
	}
	if len(offenders) > 0 {
		return fmt.Errorf("%w: %w: %s", ErrValidation, ErrUnsupportedFormat, strings.Join(offenders, ", "))
	}

	byDepot := make(map[string][]string)
	for i, ds := range datasets {
		byDepot[resolved[i].Depot] = append(byDepot[resolved[i].Depot], ds.Name)
	}
	if _, blank := byDepot[""]; len(byDepot) != 1 || blank {
		ids := make([]string, 0, len(byDepot))
		for id := range byDepot {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			offenders = append(offenders, fmt.Sprintf("depot %q: %s", id, strings.Join(byDepot[id], ", ")))
		}
		return fmt.Errorf("%w: %w: %s", ErrValidation, ErrMultipleDepots, strings.Join(offenders, "; "))
	}
	return nil
}
