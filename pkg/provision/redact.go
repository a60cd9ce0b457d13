package provision

import "strings"

// redactedError masks credential values that an engine may echo back in its
// error text. errors.Is and errors.As still see the original error.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// redact returns err with every sensitive parameter value of stmt masked.
func redact(err error, stmt Statement) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	masked := msg
	for name := range sensitive {
		if v := stmt.Params[name]; v != "" {
			masked = strings.ReplaceAll(masked, v, mask)
		}
	}
	if masked == msg {
		return err
	}
	return &redactedError{msg: masked, err: err}
}
