/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package registry maps fully-qualified native-class names to their registered fake-class
// implementations, used whenever an opaque native object is encountered during capture.
//
// Qualified names follow the form "<namespace>::<classname>" (e.g. "myops::TensorQueue")
// and are mapped internally to a dotted canonical key. The registry is typically
// populated by annotation calls at package-init time through the package-level Register,
// and consulted through the Registry instance injected into the tracer. For test
// isolation create an independent Registry with New, or call Clear.
//
// A Registry performs no internal locking: Register, Deregister and Clear require
// external synchronization if called from multiple goroutines. The expected usage --
// populate at init, read during capture -- needs none.
package registry

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// canonicalPrefix namespaces registry keys so they cannot collide with user dotted names.
const canonicalPrefix = "classes."

// ParseQualname splits a "<namespace>::<classname>" qualified name.
// It returns an error if the name is not exactly two non-empty parts.
func ParseQualname(qualname string) (namespace, name string, err error) {
	parts := strings.Split(qualname, "::")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf(
			"qualified name %q is invalid: expected the form <namespace>::<classname>, e.g. \"myops::TensorQueue\"",
			qualname)
	}
	return parts[0], parts[1], nil
}

// CanonicalName converts a "<namespace>::<classname>" qualified name to the dotted
// canonical key used internally. It returns an error for malformed names.
func CanonicalName(qualname string) (string, error) {
	namespace, name, err := ParseQualname(qualname)
	if err != nil {
		return "", err
	}
	return canonicalPrefix + namespace + "." + name, nil
}

// Registry maps canonical class names to their fake-class implementations.
// The zero value is not usable, create one with New.
type Registry struct {
	registered map[string]any
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{registered: make(map[string]any)}
}

// Register associates the fake class implementation with the qualified name.
// It fails if the name is malformed or already registered.
func (r *Registry) Register(qualname string, fakeClass any) error {
	key, err := CanonicalName(qualname)
	if err != nil {
		return err
	}
	if _, found := r.registered[key]; found {
		return errors.Errorf(
			"%q is already registered as a fake class: deregister it first if you mean to replace it", qualname)
	}
	r.registered[key] = fakeClass
	return nil
}

// Deregister removes and returns the implementation registered for the qualified name.
// It fails if the name is malformed or not registered.
func (r *Registry) Deregister(qualname string) (any, error) {
	key, err := CanonicalName(qualname)
	if err != nil {
		return nil, err
	}
	impl, found := r.registered[key]
	if !found {
		return nil, errors.Errorf(
			"cannot deregister %q: it is not registered -- register it first, or check for a double deregister", qualname)
	}
	delete(r.registered, key)
	return impl, nil
}

// HasImpl reports whether a fake class is registered for the qualified name.
// Malformed names report false.
func (r *Registry) HasImpl(qualname string) bool {
	key, err := CanonicalName(qualname)
	if err != nil {
		return false
	}
	_, found := r.registered[key]
	return found
}

// GetImpl returns the fake class registered for the qualified name.
// It fails if the name is malformed or not registered.
func (r *Registry) GetImpl(qualname string) (any, error) {
	key, err := CanonicalName(qualname)
	if err != nil {
		return nil, err
	}
	impl, found := r.registered[key]
	if !found {
		return nil, errors.Errorf(
			"%q is not registered: use Register(%q, fakeClass) to annotate a fake class for it before capturing",
			qualname, qualname)
	}
	return impl, nil
}

// Clear removes every registration. Meant for isolation between test runs.
func (r *Registry) Clear() {
	clear(r.registered)
}

// Size returns the number of registered fake classes.
func (r *Registry) Size() int { return len(r.registered) }

// Default is the process-wide registry used by the package-level functions, for
// annotation at package-init time.
var Default = New()

// Register associates the fake class with the qualified name in the Default registry.
// Meant to be called at package-init time, it panics on error.
func Register(qualname string, fakeClass any) {
	if err := Default.Register(qualname, fakeClass); err != nil {
		exceptions.Panicf("registry.Register: %+v", err)
	}
}

// Deregister removes a registration from the Default registry.
func Deregister(qualname string) (any, error) {
	return Default.Deregister(qualname)
}

// HasImpl reports whether the Default registry has a fake class for the qualified name.
func HasImpl(qualname string) bool {
	return Default.HasImpl(qualname)
}

// GetImpl returns the fake class for the qualified name from the Default registry.
func GetImpl(qualname string) (any, error) {
	return Default.GetImpl(qualname)
}
