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

package aot

import (
	"fmt"
	"slices"
	"strings"
)

// SymInt is a symbolic integer threaded through the captured graph, standing for a
// dynamic dimension size.
type SymInt int64

// InputAliasInfo records, for one captured input, what sort of mutation happened to
// it (if any) during capture. Values are immutable once constructed; one is produced
// per input per capture.
type InputAliasInfo struct {
	// IsLeaf reports whether the input had no autograd history.
	IsLeaf bool

	// MutatesData: the input's contents were changed in place.
	MutatesData bool

	// MutatesMetadata: the input's shape/strides were changed in place, contents untouched.
	MutatesMetadata bool

	// MutationsHiddenFromAutograd: the mutation happened with autograd tracking
	// disabled, so the autograd graph need not see it.
	MutationsHiddenFromAutograd bool

	// RequiresGrad of the input.
	RequiresGrad bool

	// MutationType tells the runtime what to do about the mutation.
	// It is MutationTypeMutatedInGraph only if the mutation can be replayed by an
	// operation already present in the captured graph.
	MutationType MutationType
}

// Mutated reports whether the input was mutated at all.
func (info InputAliasInfo) Mutated() bool {
	return info.MutatesData || info.MutatesMetadata
}

// OutputAliasInfo records, for one captured output, how it relates to other tensors.
// Values are immutable once constructed; one is produced per output per capture.
//
// BaseIdx indexes into an array determined solely by OutputType:
//
//   - AliasOfInput / IsInput: the forward inputs;
//   - AliasOfIntermediate / AliasOfIntermediateSaveAsOutput: the intermediate bases
//     appended to the graph outputs;
//   - AliasOfIntermediateBaseIsUserOutput: the user outputs;
//   - NonAlias (and the alias types treated as normal outputs): BaseIdx is nil.
type OutputAliasInfo struct {
	// OutputType classifies the aliasing relationship.
	OutputType OutputType

	// RawKind is the raw kind of the output value (tensor, subclass or symbolic int).
	RawKind RawKind

	// BaseIdx is the index of the alias base, see the type comment. Nil iff the
	// output needs no base.
	BaseIdx *int

	// DynamicDims lists the output axes with dynamic size, sorted. Nil if none, or
	// if the output is not a tensor.
	DynamicDims []int

	// RequiresGrad of the output.
	RequiresGrad bool
}

// HasBase reports whether the output regenerates from a base at runtime.
func (info OutputAliasInfo) HasBase() bool { return info.BaseIdx != nil }

// Equal compares two OutputAliasInfo. Needed because DynamicDims is a slice, so the
// struct is not comparable with ==.
func (info OutputAliasInfo) Equal(other OutputAliasInfo) bool {
	if info.OutputType != other.OutputType ||
		info.RawKind != other.RawKind ||
		info.RequiresGrad != other.RequiresGrad {
		return false
	}
	if (info.BaseIdx == nil) != (other.BaseIdx == nil) {
		return false
	}
	if info.BaseIdx != nil && *info.BaseIdx != *other.BaseIdx {
		return false
	}
	return slices.Equal(info.DynamicDims, other.DynamicDims)
}

// String implements fmt.Stringer.
func (info OutputAliasInfo) String() string {
	parts := []string{info.OutputType.String(), info.RawKind.String()}
	if info.BaseIdx != nil {
		parts = append(parts, fmt.Sprintf("base=%d", *info.BaseIdx))
	}
	if info.RequiresGrad {
		parts = append(parts, "requiresGrad")
	}
	return "Output{" + strings.Join(parts, ", ") + "}"
}

// baseIdx is a convenience to build the *int BaseIdx field.
func baseIdx(idx int) *int { return &idx }
