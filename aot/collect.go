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
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// TracedFunc is the shape of a function captured over fake tensors: it receives the
// user-level input values (plain fake tensors or composites) and returns the
// user-level outputs (fake tensors, composites or SymInt).
type TracedFunc func(inputs []any) []any

// CollectOptions configure one metadata capture.
type CollectOptions struct {
	// KeepInputMutations instructs the capture to keep data-only input mutations
	// directly in the graph (inference-oriented; the runtime epilogue then skips them).
	KeepInputMutations bool

	// IsTrain captures example tangents for a later joint forward-backward capture.
	IsTrain bool
}

// CollectMetadata runs fn once over the example inputs (which must be metadata-only
// fake values: *fakes.Tensor or fakes.Subclass) and aggregates the per-input and
// per-output classifications into a ViewAndMutationMeta.
//
// A value that cannot be classified aborts the capture with an error; the caller
// (the compiler pipeline) gives up compiling this function and may fall back to
// uncompiled execution. No partial metadata is ever returned.
func CollectMetadata(fn TracedFunc, exampleInputs []any, opts CollectOptions) (*ViewAndMutationMeta, error) {
	for ii, input := range exampleInputs {
		switch input.(type) {
		case *fakes.Tensor, fakes.Subclass:
		default:
			return nil, errors.Errorf(
				"CollectMetadata: input %d is a %T, expected a fake tensor or a fake subclass", ii, input)
		}
	}
	flatInputs, subclassInpMeta := FlattenValues(exampleInputs)
	requiresSubclassDispatch := false
	for _, desc := range subclassInpMeta {
		if _, ok := desc.(*SubclassCreationMeta); ok {
			requiresSubclassDispatch = true
			break
		}
	}

	snapshots := make([]fakes.Snapshot, len(flatInputs))
	for ii, input := range flatInputs {
		snapshots[ii] = input.Snapshot()
	}

	preGradEnabled := GradEnabled
	outputs := fn(exampleInputs)
	var gradEnabledMutation *bool
	if GradEnabled != preGradEnabled {
		mutated := GradEnabled
		gradEnabledMutation = &mutated
		GradEnabled = preGradEnabled
		klog.Warningf("CollectMetadata: captured function changed the ambient grad-enabled "+
			"mode to %v; the change is recorded and replayed after each execution", mutated)
	}
	for ii, output := range outputs {
		switch output.(type) {
		case *fakes.Tensor, fakes.Subclass, SymInt:
		default:
			return nil, errors.Errorf(
				"CollectMetadata: output %d is a %T and cannot be classified -- aborting the capture", ii, output)
		}
		if _, ok := output.(fakes.Subclass); ok {
			requiresSubclassDispatch = true
		}
	}

	inputInfo := make([]InputAliasInfo, len(flatInputs))
	for ii, input := range flatInputs {
		inputInfo[ii] = ClassifyInput(input, snapshots[ii], opts.KeepInputMutations, requiresSubclassDispatch)
	}

	classifier := NewOutputClassifier(flatInputs, outputs)
	outputInfo := make([]OutputAliasInfo, len(outputs))
	for ii, output := range outputs {
		switch o := output.(type) {
		case *fakes.Tensor:
			outputInfo[ii] = classifier.Classify(o)
		case fakes.Subclass:
			// Composite outputs are rebuilt from their inner plain tensors, never
			// regenerated as views: classified as regular outputs.
			outputInfo[ii] = OutputAliasInfo{OutputType: OutputTypeNonAlias, RawKind: RawKindSubclass}
		case SymInt:
			outputInfo[ii] = OutputAliasInfo{OutputType: OutputTypeNonAlias, RawKind: RawKindSymInt}
		}
	}
	intermediateBases := classifier.IntermediateBases()
	if klog.V(1).Enabled() {
		klog.Infof("CollectMetadata: %d inputs (%d dense), %d outputs, %d intermediate bases",
			len(exampleInputs), len(flatInputs), len(outputs), len(intermediateBases))
	}

	// Runtime-mutated input indices, mirroring the derivation NewViewAndMutationMeta
	// performs, needed here to lay out the forward-return descriptors.
	mutatedRuntime := func(info InputAliasInfo) bool {
		if requiresSubclassDispatch {
			return info.MutationType != MutationTypeNotMutated
		}
		return info.MutationType == MutationTypeMutatedOutGraph
	}

	// Descriptors for the forward-graph returns visible to the user: mutated inputs,
	// then user outputs, then intermediate bases. Saved-for-backward values are
	// compiler-internal and never wrapped.
	fwReturns := make([]any, 0, len(flatInputs)+len(outputs)+len(intermediateBases))
	for ii, info := range inputInfo {
		if mutatedRuntime(info) {
			fwReturns = append(fwReturns, flatInputs[ii])
		}
	}
	fwReturns = append(fwReturns, outputs...)
	for _, base := range intermediateBases {
		fwReturns = append(fwReturns, base)
	}
	// Not FlattenValues: forward returns may include symbolic ints, which occupy one
	// dense slot each just like plain tensors.
	subclassFwGraphOutMeta := make([]ArgMeta, 0, len(fwReturns))
	slot := 0
	for _, value := range fwReturns {
		switch v := value.(type) {
		case fakes.Subclass:
			meta := NewSubclassCreationMeta(slot, v)
			subclassFwGraphOutMeta = append(subclassFwGraphOutMeta, meta)
			slot += meta.ArgCount
		default:
			subclassFwGraphOutMeta = append(subclassFwGraphOutMeta, PlainArg(slot))
			slot++
		}
	}

	// Example tangents for the joint capture: one per data-mutated input, per
	// non-aliased tensor output and per intermediate base.
	var tracedTangents []*fakes.Tensor
	var subclassTangentMeta []ArgMeta
	if opts.IsTrain {
		for ii, info := range inputInfo {
			if info.MutatesData {
				tracedTangents = append(tracedTangents, flatInputs[ii])
			}
		}
		for ii, info := range outputInfo {
			if info.RawKind == RawKindTensor && !outputTypeIsAliased(info.OutputType) {
				tracedTangents = append(tracedTangents, outputs[ii].(*fakes.Tensor))
			}
		}
		tracedTangents = append(tracedTangents, intermediateBases...)
		subclassTangentMeta = make([]ArgMeta, len(tracedTangents))
		for ii := range tracedTangents {
			subclassTangentMeta[ii] = PlainArg(ii)
		}
	}

	meta := NewViewAndMutationMeta(MetaInputs{
		InputInfo:                inputInfo,
		OutputInfo:               outputInfo,
		NumIntermediateBases:     len(intermediateBases),
		KeepInputMutations:       opts.KeepInputMutations,
		TracedTangents:           tracedTangents,
		SubclassInpMeta:          subclassInpMeta,
		SubclassFwGraphOutMeta:   subclassFwGraphOutMeta,
		SubclassTangentMeta:      subclassTangentMeta,
		IsTrain:                  opts.IsTrain,
		RequiresSubclassDispatch: requiresSubclassDispatch,
	})
	meta.GradEnabledMutation = gradEnabledMutation
	return meta, nil
}

// CollectSubclassMetadata captures the dense-forward companion metadata for a
// subclass-dispatch capture: composite inputs are desugared into their inner plain
// tensors, fn runs over the rebuilt composites, and the metadata is computed on the
// dense boundary, so a composite holding two inner tensors contributes two InputInfo
// entries. Composite outputs are likewise desugared into plain-tensor slots.
//
// The returned SubclassMeta has no GradInputMetas yet; the joint capture calls
// FinalizeGradInputMetas once the grad inputs are known.
func CollectSubclassMetadata(fn TracedFunc, exampleInputs []any, opts CollectOptions) (*SubclassMeta, error) {
	flatInputs, inpMeta := FlattenValues(exampleInputs)
	denseInputs := make([]any, len(flatInputs))
	for ii, input := range flatInputs {
		denseInputs[ii] = input
	}
	denseFn := func(dense []any) []any {
		flat := make([]*fakes.Tensor, len(dense))
		for ii, value := range dense {
			flat[ii] = value.(*fakes.Tensor)
		}
		outputs := fn(UnflattenValues(inpMeta, flat, false))
		denseOuts := make([]any, 0, len(outputs))
		for _, output := range outputs {
			if sc, ok := output.(fakes.Subclass); ok {
				_, inner, _ := sc.Flatten()
				for _, t := range inner {
					denseOuts = append(denseOuts, t)
				}
				continue
			}
			denseOuts = append(denseOuts, output)
		}
		return denseOuts
	}
	fwMetadata, err := CollectMetadata(denseFn, denseInputs, opts)
	if err != nil {
		return nil, errors.WithMessagef(err, "collecting dense-forward metadata")
	}
	return &SubclassMeta{FwMetadata: fwMetadata}, nil
}
