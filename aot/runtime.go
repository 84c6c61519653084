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
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// ApplyEpilogue replays the runtime-visible effects of one compiled forward call:
// it applies the mutations the graph could not keep onto the caller's inputs and
// regenerates aliased outputs as true views over their runtime bases, so callers
// observe the same aliasing and versioning they would from uncompiled execution.
//
// denseInputs are the caller's flat inputs, positionally matching meta.InputInfo.
// rawOutputs is the compiled forward's return list laid out as
// (runtime-mutated inputs, user outputs, intermediate bases); extra trailing slots
// (RNG offset, saved values) are ignored. The returned slice has exactly
// meta.NumOutputs entries, one per user output.
func ApplyEpilogue(meta *ViewAndMutationMeta, denseInputs []*fakes.Tensor, rawOutputs []any) ([]any, error) {
	if len(denseInputs) != len(meta.InputInfo) {
		return nil, errors.Errorf("ApplyEpilogue: got %d dense inputs, metadata describes %d",
			len(denseInputs), len(meta.InputInfo))
	}
	if len(rawOutputs) < meta.NumForwardReturns {
		return nil, errors.Errorf("ApplyEpilogue: got %d raw forward outputs, need at least %d "+
			"(%d mutated inputs + %d outputs + %d intermediate bases)",
			len(rawOutputs), meta.NumForwardReturns,
			meta.NumMutatedInpRuntimeIndices, meta.NumOutputs, meta.NumIntermediateBases)
	}
	rawTensor := func(slot int, what string) (*fakes.Tensor, error) {
		value := rawOutputs[slot]
		if alias, ok := value.(TensorAlias); ok {
			value = alias.Alias
		}
		t, ok := value.(*fakes.Tensor)
		if !ok {
			return nil, errors.Errorf("ApplyEpilogue: raw output %d (%s) is a %T, expected a tensor",
				slot, what, rawOutputs[slot])
		}
		return t, nil
	}

	// Replay input mutations. Every index in MutatedInpRuntimeIndices needs replay:
	// graph-handled mutations are never in the list, and under subclass dispatch
	// in-graph mutations are rerouted here precisely because the graph could not
	// keep them.
	for slot, inpIdx := range meta.MutatedInpRuntimeIndices {
		info := meta.InputInfo[inpIdx]
		updated, err := rawTensor(slot, "mutated input")
		if err != nil {
			return nil, err
		}
		target := denseInputs[inpIdx]
		if info.MutatesMetadata {
			target.MutateMetadata(updated.Shape())
		}
		if info.MutatesData {
			target.CopyDataFrom(updated)
		}
	}

	outStart := meta.NumMutatedInpRuntimeIndices
	basesStart := outStart + meta.NumOutputs

	// First pass: everything whose base is already at hand. Outputs aliasing another
	// user output wait for the second pass, which views the regenerated base rather
	// than the raw slot.
	results := make([]any, meta.NumOutputs)
	var deferred []int
	for ii := range meta.OutputInfo {
		info := &meta.OutputInfo[ii]
		slot := outStart + ii
		if info.RawKind != RawKindTensor {
			results[ii] = rawOutputs[slot]
			continue
		}
		switch info.OutputType {
		case OutputTypeNonAlias, OutputTypeUnsafeViewAlias, OutputTypeCustomFunctionView:
			raw, err := rawTensor(slot, "output")
			if err != nil {
				return nil, err
			}
			results[ii] = raw
		case OutputTypeIsInput:
			results[ii] = denseInputs[mustBaseIdx(info)]
		case OutputTypeAliasOfInput:
			raw, err := rawTensor(slot, "output")
			if err != nil {
				return nil, err
			}
			results[ii] = denseInputs[mustBaseIdx(info)].ViewWithShape(raw.Shape())
		case OutputTypeAliasOfIntermediate, OutputTypeAliasOfIntermediateSaveAsOutput:
			raw, err := rawTensor(slot, "output")
			if err != nil {
				return nil, err
			}
			base, err := rawTensor(basesStart+mustBaseIdx(info), "intermediate base")
			if err != nil {
				return nil, err
			}
			results[ii] = base.ViewWithShape(raw.Shape())
		case OutputTypeAliasOfIntermediateBaseIsUserOutput:
			deferred = append(deferred, ii)
		default:
			exceptions.Panicf("ApplyEpilogue: output %d has unknown output type %s", ii, info.OutputType)
		}
	}
	for _, ii := range deferred {
		info := &meta.OutputInfo[ii]
		raw, err := rawTensor(outStart+ii, "output")
		if err != nil {
			return nil, err
		}
		base, ok := results[mustBaseIdx(info)].(*fakes.Tensor)
		if !ok {
			return nil, errors.Errorf("ApplyEpilogue: output %d aliases user output %d, which is not a tensor",
				ii, mustBaseIdx(info))
		}
		results[ii] = base.ViewWithShape(raw.Shape())
	}

	if meta.GradEnabledMutation != nil {
		GradEnabled = *meta.GradEnabledMutation
	}
	return results, nil
}

// WrapAliasCarriers wraps the raw forward output slots of aliased outputs in
// TensorAlias, in place, and returns rawOutputs. The compiler pipeline calls it when
// emitting the forward's return list: the wrapped slots only carry aliasing metadata
// (ApplyEpilogue regenerates the user-visible view from the base), so autograd-level
// plumbing must not treat them as live outputs. ApplyEpilogue unwraps them.
func WrapAliasCarriers(meta *ViewAndMutationMeta, rawOutputs []any) []any {
	outStart := meta.NumMutatedInpRuntimeIndices
	for _, outIdx := range meta.AliasedOutIndices {
		slot := outStart + outIdx
		if t, ok := rawOutputs[slot].(*fakes.Tensor); ok {
			rawOutputs[slot] = TensorAlias{Alias: t}
		}
	}
	return rawOutputs
}

// mustBaseIdx extracts the base index of an aliased output; metadata built by
// CollectMetadata always sets it for aliased output types.
func mustBaseIdx(info *OutputAliasInfo) int {
	if info.BaseIdx == nil {
		exceptions.Panicf("output classified as %s carries no base index", info.OutputType)
	}
	return *info.BaseIdx
}
