// pattern: Functional Core

package stack

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrNameRequired is returned for an empty or blank stack name.
	ErrNameRequired = errors.New("stack name is required")
	// ErrNameInvalid is returned for names outside [a-z0-9-_], case-insensitive.
	ErrNameInvalid = errors.New("stack name may only contain letters, numbers, dashes and underscores")
)

var validNameRe = regexp.MustCompile(`(?i)^[a-z0-9-_]+$`)

// ValidateName trims name and checks it. The trimmed name is returned so
// callers save exactly what was validated.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	if !validNameRe.MatchString(name) {
		return "", ErrNameInvalid
	}
	return name, nil
}
