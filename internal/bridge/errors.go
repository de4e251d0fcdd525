package bridge

import "errors"

// ErrMissingDependency is returned by NewBridge when a required option is nil.
var ErrMissingDependency = errors.New("bridge: missing dependency")
