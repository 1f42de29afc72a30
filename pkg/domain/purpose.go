package domain

import (
	"regexp"

	dErrors "consentdesk/pkg/domain-errors"
)

// Purpose is a single named reason for data processing within an agreement.
// Invariant: Name is a stable slug, unique within its agreement, immutable
// once the agreement is published; Description is non-empty.
//
// Field names are fixed for interchange with persistence backends.
type Purpose struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// purposeSlugRe is the single source of truth for the slug format, e.g.
// "email_marketing" or "essential_cookies".
var purposeSlugRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidSlug reports whether s matches the purpose/agreement slug format.
func ValidSlug(s string) bool {
	return purposeSlugRe.MatchString(s)
}

// Validate checks the Purpose invariants.
//
// Errors: CodeInvalidInput naming the offending field.
func (p Purpose) Validate() error {
	if p.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "purpose name cannot be empty")
	}
	if !ValidSlug(p.Name) {
		return dErrors.New(dErrors.CodeInvalidInput, "purpose name must be a slug: "+p.Name)
	}
	if p.Description == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "purpose description cannot be empty")
	}
	return nil
}

// UniquePurposeNames reports whether every purpose name occurs once.
func UniquePurposeNames(purposes []Purpose) bool {
	seen := make(map[string]struct{}, len(purposes))
	for _, p := range purposes {
		if _, dup := seen[p.Name]; dup {
			return false
		}
		seen[p.Name] = struct{}{}
	}
	return true
}

// PurposeNameSet returns the set of purpose names.
func PurposeNameSet(purposes []Purpose) map[string]struct{} {
	set := make(map[string]struct{}, len(purposes))
	for _, p := range purposes {
		set[p.Name] = struct{}{}
	}
	return set
}
