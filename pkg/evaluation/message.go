package evaluation

import (
	"fmt"
	"regexp"
	"strings"

	"ceeval-hq/verdict/pkg/rules"
)

// placeholder matches "{doc.field}" in rule messages.
var placeholder = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9_]*\.[a-z][a-z0-9_]*)\}`)

// renderMessage fills the placeholders of a rule message with current values.
func renderMessage(tmpl string, res *Resolver) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		return res.render(m[1 : len(m)-1])
	})
}

// failureMessage builds the reviewer message of a failing rule.
func failureMessage(r *rules.Rule, res *Resolver) string {
	if r.ErrorMessage != "" {
		return renderMessage(r.ErrorMessage, res)
	}
	if r.Name != "" {
		return fmt.Sprintf("%s: condition not met (%s)", r.Name, r.Condition)
	}
	return fmt.Sprintf("condition not met: %s", r.Condition)
}

// skipMessage explains why a rule did not produce a verdict.
func skipMessage(reason string, notes []string) string {
	if len(notes) == 0 {
		return "not evaluated: " + reason
	}
	return fmt.Sprintf("not evaluated: %s (%s)", reason, strings.Join(notes, "; "))
}
