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
	"github.com/gomlx/aotgrad/fakes"
	"github.com/gomlx/aotgrad/types/shapes"
	"github.com/gomlx/aotgrad/types/xslices"
	"github.com/gomlx/exceptions"
)

// MetaInputs are the capture-time facts a ViewAndMutationMeta is derived from.
// They are aggregated -- never mutated -- by NewViewAndMutationMeta.
type MetaInputs struct {
	// InputInfo has one entry per user input, telling what sort of mutation
	// happened to it (if any).
	InputInfo []InputAliasInfo

	// OutputInfo has one entry per user output, mostly about whether it aliases
	// other tensors.
	OutputInfo []OutputAliasInfo

	// NumIntermediateBases is the number of intermediate bases appended as outputs
	// to the end of the forward graph. Not necessarily the number of
	// alias-of-intermediate outputs: outputs may share a base, and a base may
	// itself be another user output -- neither appends a redundant slot.
	NumIntermediateBases int

	// KeepInputMutations instructs the capture to keep data-only input mutations
	// directly in the graph instead of replaying them in the runtime epilogue.
	KeepInputMutations bool

	// TracedTangents are the example backward-input tensors captured during the
	// metadata pass: one per runtime-mutated input, per non-aliased user output and
	// per intermediate base. They are the best-guess tangents when capturing the
	// joint forward-backward.
	TracedTangents []*fakes.Tensor

	// SubclassInpMeta, SubclassFwGraphOutMeta and SubclassTangentMeta map logical
	// inputs/forward outputs/tangents to dense plain-tensor slots (see ArgMeta).
	// Saved-for-backward tensors are internal to the compiler and never wrapped,
	// so SubclassFwGraphOutMeta covers every forward output except them.
	SubclassInpMeta        []ArgMeta
	SubclassFwGraphOutMeta []ArgMeta
	SubclassTangentMeta    []ArgMeta

	// IsTrain tells whether the capture includes a backward pass.
	IsTrain bool

	// RequiresSubclassDispatch tells whether any input or output is a composite:
	// input mutations cannot be kept in-graph under subclass dispatch, so the
	// runtime epilogue must also replay in-graph mutations.
	RequiresSubclassDispatch bool
}

// ViewAndMutationMeta encapsulates all aliasing and mutation info about a captured
// forward function. It is built once by NewViewAndMutationMeta after the metadata
// capture, embedded read-only in the compiled artifact, and consumed by every later
// execution. The derived fields are deterministic functions of the MetaInputs and
// are never mutated independently.
//
// The full set of outputs of the forward graph is laid out as:
//
//	(mutated inputs, user outputs, intermediate bases[, RNG offset], saved tensors, saved symints)
type ViewAndMutationMeta struct {
	MetaInputs

	// MutatedInpRuntimeIndices are the input indices whose mutations the runtime
	// epilogue must replay, in order. Inputs handled inside the graph are excluded
	// unless subclass dispatch forces them out.
	MutatedInpRuntimeIndices    []int
	NumMutatedInpRuntimeIndices int

	// MutatedGraphHandledIndices are the input indices whose mutations stay in the
	// graph and need no epilogue work.
	MutatedGraphHandledIndices    []int
	NumMutatedGraphHandledIndices int

	// AliasedOutIndices are the output indices that regenerate from a base at
	// runtime: every output whose type is not NonAlias, UnsafeViewAlias or
	// CustomFunctionView.
	AliasedOutIndices    []int
	UnsafeViewOutIndices []int

	NumOutputs                       int
	NumOutputsNonAliased             int
	NumOutputsAliasedToInputs        int
	NumOutputsAliasedToIntermediates int
	NumOutputsAliased                int
	NumUnsafeViewOutputs             int

	// DynamicOutputs tells whether any output has a dynamically sized axis.
	DynamicOutputs bool

	// TangentShapes are the shapes of TracedTangents, precomputed for the fast
	// checks on backward inputs.
	TangentShapes []shapes.Shape

	// IsRNGOpFunctionalized freezes FunctionalizeRNGOps at construction time.
	// When set, the forward returns one extra RNG-offset output; the offset is
	// consumed right away to advance the RNG state and never reaches the user.
	IsRNGOpFunctionalized bool
	NumOutputsRNGOffset   int

	// NumForwardReturns = runtime-mutated inputs + user outputs + intermediate bases.
	// NumForward additionally counts the RNG-offset slot: it is the boundary after
	// which the saved-for-backward values start in the raw forward output list.
	NumForwardReturns int
	NumForward        int

	// NumSymIntsSavedForBw is set once the forward graph is partitioned, and is
	// required before the saved-for-backward accessors may be used.
	NumSymIntsSavedForBw *int

	// GradEnabledMutation records a change of the ambient grad-enabled mode made by
	// the captured function, to be replayed in the runtime epilogue. Nil if none.
	GradEnabledMutation *bool
}

// NewViewAndMutationMeta aggregates capture-time facts into the read-only metadata
// record, precomputing every derived index list and count.
func NewViewAndMutationMeta(inputs MetaInputs) *ViewAndMutationMeta {
	m := &ViewAndMutationMeta{MetaInputs: inputs}

	// Inputs kept in-graph need no epilogue replay, except under subclass dispatch,
	// which cannot rely on in-graph handling.
	if !m.RequiresSubclassDispatch {
		m.MutatedInpRuntimeIndices = xslices.IndicesWhere(m.InputInfo, func(info InputAliasInfo) bool {
			return info.MutationType == MutationTypeMutatedOutGraph
		})
		m.MutatedGraphHandledIndices = xslices.IndicesWhere(m.InputInfo, func(info InputAliasInfo) bool {
			return info.MutationType == MutationTypeMutatedInGraph
		})
	} else {
		m.MutatedInpRuntimeIndices = xslices.IndicesWhere(m.InputInfo, func(info InputAliasInfo) bool {
			return info.MutationType == MutationTypeMutatedInGraph ||
				info.MutationType == MutationTypeMutatedOutGraph
		})
		m.MutatedGraphHandledIndices = nil
	}
	m.NumMutatedInpRuntimeIndices = len(m.MutatedInpRuntimeIndices)
	m.NumMutatedGraphHandledIndices = len(m.MutatedGraphHandledIndices)

	m.AliasedOutIndices = xslices.IndicesWhere(m.OutputInfo, func(info OutputAliasInfo) bool {
		return outputTypeIsAliased(info.OutputType)
	})
	m.UnsafeViewOutIndices = xslices.IndicesWhere(m.OutputInfo, func(info OutputAliasInfo) bool {
		return info.OutputType == OutputTypeUnsafeViewAlias
	})
	m.NumUnsafeViewOutputs = len(m.UnsafeViewOutIndices)

	m.NumOutputs = len(m.OutputInfo)
	m.NumOutputsNonAliased = xslices.CountWhere(m.OutputInfo, func(info OutputAliasInfo) bool {
		return !outputTypeIsAliased(info.OutputType)
	})
	m.NumOutputsAliasedToInputs = xslices.CountWhere(m.OutputInfo, func(info OutputAliasInfo) bool {
		return info.OutputType == OutputTypeAliasOfInput || info.OutputType == OutputTypeIsInput
	})
	m.NumOutputsAliasedToIntermediates = xslices.CountWhere(m.OutputInfo, func(info OutputAliasInfo) bool {
		return info.OutputType == OutputTypeAliasOfIntermediate ||
			info.OutputType == OutputTypeAliasOfIntermediateSaveAsOutput ||
			info.OutputType == OutputTypeAliasOfIntermediateBaseIsUserOutput
	})
	m.NumOutputsAliased = m.NumOutputsAliasedToInputs + m.NumOutputsAliasedToIntermediates

	for _, info := range m.OutputInfo {
		if len(info.DynamicDims) > 0 {
			m.DynamicOutputs = true
			break
		}
	}
	m.TangentShapes = xslices.Map(m.TracedTangents, func(t *fakes.Tensor) shapes.Shape {
		return t.Shape()
	})

	m.IsRNGOpFunctionalized = FunctionalizeRNGOps
	if m.IsRNGOpFunctionalized {
		m.NumOutputsRNGOffset = 1
	}

	m.NumForwardReturns = m.NumMutatedInpRuntimeIndices + m.NumOutputs + m.NumIntermediateBases
	m.NumForward = m.NumForwardReturns + m.NumOutputsRNGOffset
	return m
}

// outputTypeIsAliased reports whether outputs of this type regenerate from a base at
// runtime. Unsafe-view and custom-function aliases are treated as normal outputs.
func outputTypeIsAliased(t OutputType) bool {
	switch t {
	case OutputTypeNonAlias, OutputTypeUnsafeViewAlias, OutputTypeCustomFunctionView:
		return false
	}
	return true
}

// SetNumSymIntsSavedForBw records how many symbolic ints the partitioned forward
// saves for the backward pass. Must be called before the saved-for-backward
// accessors.
func (m *ViewAndMutationMeta) SetNumSymIntsSavedForBw(n int) {
	m.NumSymIntsSavedForBw = &n
}

// TensorsSavedForBackwardsSpan returns the [start, end) span of the raw forward
// output list (of length rawLen) holding the tensors saved for the backward pass:
// the region after the forward returns and before the saved symints.
// It panics if SetNumSymIntsSavedForBw was not called.
func (m *ViewAndMutationMeta) TensorsSavedForBackwardsSpan(rawLen int) (start, end int) {
	if m.NumSymIntsSavedForBw == nil {
		exceptions.Panicf("TensorsSavedForBackwardsSpan: NumSymIntsSavedForBw not set yet")
	}
	return m.NumForward, rawLen - *m.NumSymIntsSavedForBw
}

// SymIntsSavedForBackwardsSpan returns the [start, end) span of the raw forward
// output list (of length rawLen) holding the symbolic ints saved for the backward
// pass: the absolute tail of the list.
// It panics if SetNumSymIntsSavedForBw was not called.
func (m *ViewAndMutationMeta) SymIntsSavedForBackwardsSpan(rawLen int) (start, end int) {
	if m.NumSymIntsSavedForBw == nil {
		exceptions.Panicf("SymIntsSavedForBackwardsSpan: NumSymIntsSavedForBw not set yet")
	}
	return rawLen - *m.NumSymIntsSavedForBw, rawLen
}

// TensorsSavedForBackwards slices the tensors saved for the backward pass out of the
// raw forward output list. See TensorsSavedForBackwardsSpan.
func TensorsSavedForBackwards[T any](m *ViewAndMutationMeta, raw []T) []T {
	start, end := m.TensorsSavedForBackwardsSpan(len(raw))
	return raw[start:end]
}

// SymIntsSavedForBackwards slices the symbolic ints saved for the backward pass out
// of the raw forward output list. See SymIntsSavedForBackwardsSpan.
func SymIntsSavedForBackwards[T any](m *ViewAndMutationMeta, raw []T) []T {
	start, end := m.SymIntsSavedForBackwardsSpan(len(raw))
	return raw[start:end]
}

// Equal implements the record's equality contract, used as a compile-cache key
// component: the capture-time facts must match, and the traced tangents must match
// pairwise in count, shape and element type. Tangent storages/values are not
// compared. Derived fields need no comparison, they are functions of the rest.
func (m *ViewAndMutationMeta) Equal(other *ViewAndMutationMeta) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.InputInfo) != len(other.InputInfo) ||
		len(m.OutputInfo) != len(other.OutputInfo) ||
		m.NumIntermediateBases != other.NumIntermediateBases ||
		m.KeepInputMutations != other.KeepInputMutations ||
		m.IsRNGOpFunctionalized != other.IsRNGOpFunctionalized ||
		m.NumOutputsRNGOffset != other.NumOutputsRNGOffset ||
		len(m.TracedTangents) != len(other.TracedTangents) {
		return false
	}
	for ii, info := range m.InputInfo {
		if info != other.InputInfo[ii] {
			return false
		}
	}
	for ii, info := range m.OutputInfo {
		if !info.Equal(other.OutputInfo[ii]) {
			return false
		}
	}
	for ii, tangent := range m.TracedTangents {
		otherShape := other.TracedTangents[ii].Shape()
		if !tangent.Shape().Equal(otherShape) {
			return false
		}
	}
	return true
}

// SubclassMeta is the subclass-dispatch companion of ViewAndMutationMeta: the same
// forward metadata recomputed on the dense (desugared) forward, plus the recipes to
// rebuild grad-input subclasses from the flat backward outputs.
type SubclassMeta struct {
	// FwMetadata is the forward metadata computed on the dense-tensor forward: a
	// composite input holding two inner tensors contributes two entries to its
	// InputInfo.
	FwMetadata *ViewAndMutationMeta

	// GradInputMetas tells how to rebuild grad-input subclasses from the flat,
	// plain-tensor grad inputs. The subclass-ness of a grad input cannot be assumed
	// from the corresponding input (a dense input multiplied by a composite gets a
	// composite gradient), it is only known after capturing the whole joint.
	// Nil until FinalizeGradInputMetas, and forever for inference captures.
	GradInputMetas []ArgMeta
}

// FinalizeGradInputMetas records the grad-input reconstruction recipes from the grad
// inputs observed in the joint capture, one logical value per user input.
func (m *SubclassMeta) FinalizeGradInputMetas(gradInputs []any) {
	_, m.GradInputMetas = FlattenValues(gradInputs)
}

// TensorAlias wraps an output slot that only carries aliasing metadata: the runtime
// regenerates the user-visible view from its base, so the wrapped tensor must not
// participate in autograd as a live output.
type TensorAlias struct {
	Alias *fakes.Tensor
}
