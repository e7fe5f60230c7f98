// Package contact maps loosely-typed tabular rows onto canonical Contact
// records using fuzzy, bilingual column-name matching.
package contact

import (
	"strings"

	"github.com/festal-inc/haishin/internal/domain"
)

// Synonym sets for header matching. Matching is case-insensitive substring
// containment against the lowered, trimmed header, in English and Japanese.
// These lists are the contract; tests assert against them literally.
var (
	emailSynonyms      = []string{"email", "mail", "メール"}
	nameSynonyms       = []string{"name", "氏名", "名前"}
	companySynonyms    = []string{"company", "会社", "企業"}
	departmentSynonyms = []string{"department", "部署", "部門"}
	positionSynonyms   = []string{"position", "役職", "職位"}
	subjectSynonyms    = []string{"subject", "件名"}
	bodySynonyms       = []string{"body", "本文"}
)

// fieldSynonyms is the fixed precedence order for claiming a header:
// the first set that matches wins the header for its canonical field.
var fieldSynonyms = []struct {
	field    string
	synonyms []string
}{
	{"email", emailSynonyms},
	{"name", nameSynonyms},
	{"company", companySynonyms},
	{"department", departmentSynonyms},
	{"position", positionSynonyms},
}

// Format classifies an uploaded row set.
type Format int

const (
	// FormatUnknown means the headers resolve to neither known layout.
	FormatUnknown Format = iota

	// FormatContactList is the canonical layout: email and name columns,
	// optionally company/department/position.
	FormatContactList

	// FormatLegacyList is the legacy flat layout carrying pre-rendered
	// subject/body columns instead of contact attributes.
	FormatLegacyList
)

// DetectFormat classifies a row set by its first row's headers. A row set
// is a contact list iff at least one header matches an email synonym and
// one matches a name synonym, and no header matches a subject or body
// synonym (those mark the legacy flat email-list layout).
func DetectFormat(rows []domain.Row) Format {
	if len(rows) == 0 {
		return FormatUnknown
	}

	var hasEmail, hasName, hasSubject, hasBody bool
	for _, cell := range rows[0] {
		h := normalizeHeader(cell.Header)
		if matchesAny(h, emailSynonyms) {
			hasEmail = true
		}
		if matchesAny(h, nameSynonyms) {
			hasName = true
		}
		if matchesAny(h, subjectSynonyms) {
			hasSubject = true
		}
		if matchesAny(h, bodySynonyms) {
			hasBody = true
		}
	}

	if hasEmail && (hasSubject || hasBody) {
		return FormatLegacyList
	}
	if hasEmail && hasName {
		return FormatContactList
	}
	return FormatUnknown
}

// Normalize converts raw rows into Contacts. Rows that cannot resolve a
// non-empty email and name are dropped; the remaining contacts keep the
// input row order. Normalize never fails: zero contacts from a non-empty
// input is the caller's condition to surface.
func Normalize(rows []domain.Row) []domain.Contact {
	contacts := make([]domain.Contact, 0, len(rows))

	for _, row := range rows {
		c := normalizeRow(row)
		if c.Email == "" || c.Name == "" {
			continue
		}
		contacts = append(contacts, c)
	}

	return contacts
}

// normalizeRow resolves one row's headers against the synonym sets in
// source column order. When two headers claim the same field, the later
// column wins (last-write-wins over the row's own order).
func normalizeRow(row domain.Row) domain.Contact {
	resolved := make(map[string]string, len(fieldSynonyms))
	for _, cell := range row {
		h := normalizeHeader(cell.Header)
		for _, fs := range fieldSynonyms {
			if matchesAny(h, fs.synonyms) {
				resolved[fs.field] = cell.Value.Coerce()
				break
			}
		}
	}

	return domain.Contact{
		Email:      resolved["email"],
		Name:       resolved["name"],
		Company:    resolved["company"],
		Department: resolved["department"],
		Position:   resolved["position"],
	}
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

func matchesAny(header string, synonyms []string) bool {
	for _, s := range synonyms {
		if strings.Contains(header, s) {
			return true
		}
	}
	return false
}
