package platform

import "errors"

// ErrConfig is wrapped by every configuration failure. It is fatal and raised
// before provisioning begins.
var ErrConfig = errors.New("invalid configuration")
