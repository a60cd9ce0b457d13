package provision

import "fmt"

// Status is the result of one provisioning item.
type Status int

// Item statuses.
const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusSkipped
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Outcome records what happened to one secret, probe, view or statement.
type Outcome struct {
	// Item is the depot id, dataset name or statement text.
	Item string
	// Statement is the masked statement that was executed, if any.
	Statement string
	Status    Status
	Rows      int
	Reason    string
	Err       error
}

func succeeded(item, stmt string, rows int) Outcome {
	return Outcome{Item: item, Statement: stmt, Status: StatusSucceeded, Rows: rows}
}

func failed(item, stmt string, err error) Outcome {
	return Outcome{Item: item, Statement: stmt, Status: StatusFailed, Reason: err.Error(), Err: err}
}

func skipped(item, reason string) Outcome {
	return Outcome{Item: item, Status: StatusSkipped, Reason: reason}
}

// Report aggregates the outcomes of a run.
type Report struct {
	RunID   string
	Secrets []Outcome
	Probes  []Outcome
	Views   []Outcome
	SQLs    []Outcome
}

// Counts returns the number of outcomes per status across all phases.
func (r *Report) Counts() map[Status]int {
	counts := map[Status]int{}
	for _, group := range [][]Outcome{r.Secrets, r.Probes, r.Views, r.SQLs} {
		for _, o := range group {
			counts[o.Status]++
		}
	}
	return counts
}

// Failed returns the number of failed items.
func (r *Report) Failed() int {
	return r.Counts()[StatusFailed]
}

// String summarizes the report.
func (r *Report) String() string {
	c := r.Counts()
	return fmt.Sprintf("run %s: %d succeeded, %d failed, %d skipped",
		r.RunID, c[StatusSucceeded], c[StatusFailed], c[StatusSkipped])
}
