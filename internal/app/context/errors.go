package context

import "errors"

// ErrAlreadyCommitted is returned when adding actions to, or committing, a
// RequestContext that has already been committed.
var ErrAlreadyCommitted = errors.New("request context already committed")
