// Package naming defines how simulation entities are named.
package naming

import (
	"fmt"
	"regexp"
)

// Named describes an object that has a name.
type Named interface {
	// Name returns the name of the object.
	Name() string
}

// NamedBase is a base implementation of Named.
type NamedBase struct {
	name string
}

// Name returns the name.
func (b *NamedBase) Name() string {
	return b.name
}

// MakeNamedBase creates a new NamedBase. It panics if the name is not a valid
// endpoint name.
func MakeNamedBase(name string) NamedBase {
	NameMustBeValid(name)
	return NamedBase{name: name}
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

// IsValidName tells if a string can be used as a component or endpoint name.
func IsValidName(name string) bool {
	return namePattern.MatchString(name)
}

// NameMustBeValid panics if the name is not valid.
func NameMustBeValid(name string) {
	if !IsValidName(name) {
		panic(fmt.Sprintf("invalid name %q", name))
	}
}
