// Package render substitutes {{name}} placeholders in notification templates.
//
// Substitution is a single pass over the template: values are inserted
// verbatim and never expanded again, and placeholders with no value are left
// as written.
package render

import (
	"regexp"
	"strings"

	"github.com/proofhub/proof-notify/internal/domain"
)

var placeholder = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Render replaces each {{name}} in tpl with vars[name]. Names are case-sensitive.
func Render(tpl string, vars map[string]string) string {
	if tpl == "" || len(vars) == 0 {
		return tpl
	}
	return placeholder.ReplaceAllStringFunc(tpl, func(m string) string {
		name := m[2 : len(m)-2]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// Content renders subject and body independently. A part that renders blank
// is replaced by the fallback's rendering of that part.
func Content(tpl, fallback domain.Template, vars map[string]string) (subject, body string) {
	subject = Render(tpl.Subject, vars)
	if strings.TrimSpace(subject) == "" {
		subject = Render(fallback.Subject, vars)
	}
	body = Render(tpl.Body, vars)
	if strings.TrimSpace(body) == "" {
		body = Render(fallback.Body, vars)
	}
	return subject, body
}
