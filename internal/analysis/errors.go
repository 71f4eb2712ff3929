package analysis

import "errors"

// ErrNotFound is returned when a job id is unknown.
var ErrNotFound = errors.New("not found")
