// Package template expands {identifier} placeholders against per-contact
// variable maps.
package template

import (
	"regexp"

	"github.com/festal-inc/haishin/internal/domain"
)

// placeholderPattern matches a single-brace {identifier} token. Anything
// that does not exactly match this grammar (unmatched braces, empty
// identifiers) is literal text.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// canonicalFields is the fixed key set every VariableMap is total over.
var canonicalFields = []string{"name", "email", "company", "department", "position"}

// VariableMap maps placeholder identifiers to substitution values for one
// contact. The five canonical keys are always present, even when empty:
// an empty value substitutes to "", while a missing key leaves the token
// untouched.
type VariableMap map[string]string

// BuildVariableMap derives a contact's variable map, merged with any
// caller-supplied extras (e.g. "sender", "today"). Canonical contact
// fields win on a key collision: extras are written first and then
// overwritten, so contact data is never shadowed by caller context.
func BuildVariableMap(c domain.Contact, extra map[string]string) VariableMap {
	vars := make(VariableMap, len(canonicalFields)+len(extra))
	for k, v := range extra {
		vars[k] = v
	}

	vars["name"] = c.Name
	vars["email"] = c.Email
	vars["company"] = c.Company
	vars["department"] = c.Department
	vars["position"] = c.Position

	return vars
}

// Render substitutes {identifier} tokens in text against vars in a single
// left-to-right pass. A known key replaces its token (an empty value is
// still a replacement); an unknown identifier is preserved verbatim so
// operator typos stay visible. Render performs no I/O and never fails.
func Render(text string, vars VariableMap) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := token[1 : len(token)-1]
		if value, ok := vars[name]; ok {
			return value
		}
		return token
	})
}

// RenderMessage expands a template's subject and body for one contact.
func RenderMessage(tmpl domain.Template, c domain.Contact, extra map[string]string) domain.RenderedMessage {
	vars := BuildVariableMap(c, extra)
	return domain.RenderedMessage{
		Recipient: c,
		Subject:   Render(tmpl.Subject, vars),
		Body:      Render(tmpl.Body, vars),
	}
}

// RenderAll expands a template for every contact, preserving order. One
// message per contact; rendering neither drops nor reorders entries.
func RenderAll(tmpl domain.Template, contacts []domain.Contact, extra map[string]string) []domain.RenderedMessage {
	messages := make([]domain.RenderedMessage, len(contacts))
	for i, c := range contacts {
		messages[i] = RenderMessage(tmpl, c, extra)
	}
	return messages
}

// ExtractVariables returns the unique placeholder identifiers used in
// text, in first-use order.
func ExtractVariables(text string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// sampleContact backs template previews before a real contact list exists.
var sampleContact = domain.Contact{
	Name:       "サンプル太郎",
	Email:      "sample@example.com",
	Company:    "サンプル株式会社",
	Department: "サンプル部",
	Position:   "サンプル長",
}

// Preview renders text against fixed sample data.
func Preview(text string) string {
	return Render(text, BuildVariableMap(sampleContact, nil))
}
