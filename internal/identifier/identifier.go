// Package identifier whitelists table, column and file names before they are
// used to build SQL statements or storage paths.
package identifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalid is wrapped by every validation failure in this package.
var ErrInvalid = errors.New("invalid identifier")

var (
	namePattern     = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	filenamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// Valid reports whether name is a legal table or column name.
func Valid(name string) bool {
	return namePattern.MatchString(name)
}

// Table validates a table name.
func Table(name string) error {
	if !Valid(name) {
		return fmt.Errorf("%w: table name %q", ErrInvalid, name)
	}
	return nil
}

// Column validates an unqualified column name.
func Column(name string) error {
	if !Valid(name) {
		return fmt.Errorf("%w: column name %q", ErrInvalid, name)
	}
	return nil
}

// QualifiedColumn validates "col" or "qualifier.col" where both parts are
// plain names. Joined selects address columns as t1.x / t2.y.
func QualifiedColumn(name string) error {
	qualifier, col, found := strings.Cut(name, ".")
	if !found {
		return Column(name)
	}
	if !Valid(qualifier) || !Valid(col) {
		return fmt.Errorf("%w: column name %q", ErrInvalid, name)
	}
	return nil
}

// Split returns the qualifier and column of a validated column reference.
// The qualifier is empty for plain names.
func Split(name string) (qualifier, column string) {
	if q, c, found := strings.Cut(name, "."); found {
		return q, c
	}
	return "", name
}

// Filename strips any directory components and validates the remaining
// leaf name. The returned name is safe to join onto a storage root.
func Filename(name string) (string, error) {
	base := name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if base == "." || base == ".." || !filenamePattern.MatchString(base) {
		return "", fmt.Errorf("%w: filename %q", ErrInvalid, name)
	}
	return base, nil
}
