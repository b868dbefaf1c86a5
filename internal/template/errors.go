package template

import (
	"errors"
	"fmt"
)

// ErrTemplateNotFound is returned when a name does not resolve to an active
// template. Jobs hitting this fail permanently; a retry cannot fix it.
var ErrTemplateNotFound = errors.New("template not found or inactive")

// MissingVariableError reports a declared variable absent from the supplied
// map. Permanent for the referencing job.
type MissingVariableError struct {
	Template string
	Variable string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template %q: missing required variable %q", e.Template, e.Variable)
}
