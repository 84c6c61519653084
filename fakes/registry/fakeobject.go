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

package registry

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// FakeClass is the contract a registered fake-class implementation must satisfy:
// given the real native object, build a metadata-only simulacrum of it. Any tensors
// inside the fake object must themselves be fake (see package fakes).
type FakeClass interface {
	FromReal(real any) (any, error)
}

// FakeObject wraps the metadata-only stand-in for an opaque native object, tagged
// with the qualified name of the class it simulates. The capture machinery routes
// method calls on the real object to the wrapped fake during tracing.
type FakeObject struct {
	Wrapped   any
	Qualname  string
	Canonical string
}

// FromReal builds the fake stand-in for the given real native object, using the fake
// class registered for qualname in r. It fails if no fake class is registered, or if
// the registered implementation does not satisfy FakeClass.
func (r *Registry) FromReal(qualname string, real any) (*FakeObject, error) {
	canonical, err := CanonicalName(qualname)
	if err != nil {
		return nil, err
	}
	impl, err := r.GetImpl(qualname)
	if err != nil {
		return nil, err
	}
	fakeClass, ok := impl.(FakeClass)
	if !ok {
		return nil, errors.Errorf(
			"fake class registered for %q (%T) does not implement FromReal(real any) (any, error)",
			qualname, impl)
	}
	fake, err := fakeClass.FromReal(real)
	if err != nil {
		return nil, errors.Wrapf(err, "fake class for %q failed to convert the real object", qualname)
	}
	if fake == nil {
		klog.Warningf("fake class for %q returned a nil fake object", qualname)
	}
	return &FakeObject{Wrapped: fake, Qualname: qualname, Canonical: canonical}, nil
}
