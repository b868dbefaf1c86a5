package template

import (
	"fmt"
	"strings"
)

// Render substitutes the variable map into the template's subject and bodies.
// It is pure and deterministic. Every declared variable must be present in
// vars; extra entries in vars are ignored.
func Render(tmpl *Template, vars map[string]string) (*Rendered, error) {
	for _, name := range tmpl.Variables {
		if _, ok := vars[name]; !ok {
			return nil, &MissingVariableError{Template: tmpl.Name, Variable: name}
		}
	}

	return &Rendered{
		Subject:  substitute(tmpl.Subject, vars),
		HTMLBody: substitute(tmpl.HTMLBody, vars),
		TextBody: substitute(tmpl.TextBody, vars),
	}, nil
}

// substitute replaces {{name}} placeholders with values from vars
func substitute(s string, vars map[string]string) string {
	if len(vars) == 0 {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, fmt.Sprintf("{{%s}}", name), value)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
