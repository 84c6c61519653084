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

// Package capture tracks arbitrary user values while a function is being traced.
//
// Every value reaching the tracer is boxed into exactly one of the Variable kinds
// -- constant, tensor, composite, callable or opaque user object -- and all later
// handling goes through the capability interfaces instead of type switches spread
// over the tracer: ConstantValuer for values foldable at capture time, AttrGetter
// for attribute projection and Caller for invocation. An Inliner expands traced
// calls in place, with a depth bound and a per-function metadata cache.
package capture

import (
	"fmt"

	"github.com/gomlx/aotgrad/aot"
	"github.com/gomlx/aotgrad/fakes"
	"github.com/pkg/errors"
)

// Variable boxes one user value seen during tracing. The set of implementations
// is closed: ConstantVariable, TensorVariable, CompositeVariable, CallableVariable
// and UserObjectVariable.
type Variable interface {
	fmt.Stringer

	// Proxy returns the underlying traced value: the fake tensor/composite for
	// tensor-like kinds, the raw value otherwise.
	Proxy() any
}

// ConstantValuer is the capability of variables whose value is fully known at
// capture time and can be folded into the graph.
type ConstantValuer interface {
	AsConstant() (value any, ok bool)
}

// AttrGetter is the capability of variables supporting attribute projection.
type AttrGetter interface {
	GetAttr(name string) (Variable, error)
}

// Caller is the capability of variables that can be invoked during tracing.
type Caller interface {
	Call(inliner *Inliner, args []Variable) ([]Variable, error)
}

// ConstantVariable holds a capture-time constant: numbers, strings, booleans,
// shapes. Constants fold into the graph and never occupy a dense tensor slot.
type ConstantVariable struct {
	Value any
}

func (v *ConstantVariable) Proxy() any              { return v.Value }
func (v *ConstantVariable) AsConstant() (any, bool) { return v.Value, true }
func (v *ConstantVariable) String() string          { return fmt.Sprintf("constant(%v)", v.Value) }

// TensorVariable tracks one plain fake tensor.
type TensorVariable struct {
	Tensor *fakes.Tensor
}

func (v *TensorVariable) Proxy() any     { return v.Tensor }
func (v *TensorVariable) String() string { return fmt.Sprintf("tensor(%s)", v.Tensor.Shape()) }

// GetAttr projects the few tensor attributes the tracer understands.
func (v *TensorVariable) GetAttr(name string) (Variable, error) {
	switch name {
	case "shape":
		return &ConstantVariable{Value: v.Tensor.Shape()}, nil
	case "requires_grad":
		return &ConstantVariable{Value: v.Tensor.RequiresGrad()}, nil
	}
	return nil, errors.Errorf("tensor variable has no attribute %q", name)
}

// CompositeVariable tracks one composite (subclass) fake value.
type CompositeVariable struct {
	Value fakes.Subclass
}

func (v *CompositeVariable) Proxy() any     { return v.Value }
func (v *CompositeVariable) String() string { return fmt.Sprintf("composite(%T)", v.Value) }

// GetAttr projects one inner tensor of the composite by its flatten key.
func (v *CompositeVariable) GetAttr(name string) (Variable, error) {
	innerKeys, inner, _ := v.Value.Flatten()
	for ii, key := range innerKeys {
		if key == name {
			return &TensorVariable{Tensor: inner[ii]}, nil
		}
	}
	return nil, errors.Errorf("composite %T has no inner tensor %q (has %v)", v.Value, name, innerKeys)
}

// CallableVariable tracks a traceable function. Key, when non-empty, identifies the
// function for the inliner's metadata cache; an empty key disables caching.
type CallableVariable struct {
	Key string
	Fn  aot.TracedFunc
}

func (v *CallableVariable) Proxy() any     { return v.Fn }
func (v *CallableVariable) String() string { return fmt.Sprintf("callable(%q)", v.Key) }

// Call inlines the function through the inliner.
func (v *CallableVariable) Call(inliner *Inliner, args []Variable) ([]Variable, error) {
	return inliner.Inline(v, args)
}

// UserObjectVariable tracks an opaque user object the tracer cannot interpret. Only
// the attributes explicitly registered with SetAttr are visible; anything else is a
// capture error, surfaced to the caller so it can give up on this function.
type UserObjectVariable struct {
	Value any
	attrs map[string]Variable
}

func NewUserObjectVariable(value any) *UserObjectVariable {
	return &UserObjectVariable{Value: value, attrs: make(map[string]Variable)}
}

func (v *UserObjectVariable) Proxy() any     { return v.Value }
func (v *UserObjectVariable) String() string { return fmt.Sprintf("userObject(%T)", v.Value) }

// SetAttr registers one visible attribute. Returns v for chaining.
func (v *UserObjectVariable) SetAttr(name string, value Variable) *UserObjectVariable {
	v.attrs[name] = value
	return v
}

func (v *UserObjectVariable) GetAttr(name string) (Variable, error) {
	if attr, found := v.attrs[name]; found {
		return attr, nil
	}
	return nil, errors.Errorf("cannot trace through attribute %q of user object %T", name, v.Value)
}

// Wrap boxes a raw value into its Variable kind. Fake tensors and composites get
// tracked variables, everything else is treated as a capture-time constant.
func Wrap(value any) Variable {
	switch v := value.(type) {
	case Variable:
		return v
	case *fakes.Tensor:
		return &TensorVariable{Tensor: v}
	case fakes.Subclass:
		return &CompositeVariable{Value: v}
	default:
		return &ConstantVariable{Value: v}
	}
}

// WrapAll boxes a slice of raw values.
func WrapAll(values []any) []Variable {
	out := make([]Variable, len(values))
	for ii, value := range values {
		out[ii] = Wrap(value)
	}
	return out
}
