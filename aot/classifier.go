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
	"slices"

	"github.com/gomlx/aotgrad/fakes"
)

// ClassifyInput produces the InputAliasInfo for one captured input, comparing its
// post-capture state against the pre-capture snapshot.
//
// The mutation is kept in the graph (MutationTypeMutatedInGraph) only when it is
// data-only, keepInputMutations is set and subclass dispatch is not required --
// subclass-aware input mutation cannot currently be graph-internal, so it downgrades
// to MutationTypeMutatedOutGraph and the runtime epilogue performs an explicit copy.
func ClassifyInput(post *fakes.Tensor, pre fakes.Snapshot, keepInputMutations, requiresSubclassDispatch bool) InputAliasInfo {
	mutatesData := post.Storage().DataVersion() != pre.DataVersion
	mutatesMetadata := post.MetaVersion() != pre.MetaVersion

	mutationType := MutationTypeNotMutated
	if mutatesData || mutatesMetadata {
		if keepInputMutations && mutatesData && !mutatesMetadata && !requiresSubclassDispatch {
			mutationType = MutationTypeMutatedInGraph
		} else {
			mutationType = MutationTypeMutatedOutGraph
		}
	}

	return InputAliasInfo{
		IsLeaf:                      post.IsLeaf(),
		MutatesData:                 mutatesData,
		MutatesMetadata:             mutatesMetadata,
		MutationsHiddenFromAutograd: post.HasHiddenMutation(),
		RequiresGrad:                post.RequiresGrad(),
		MutationType:                mutationType,
	}
}

// OutputClassifier classifies the outputs of one capture, carrying the bookkeeping
// the decision procedure needs: which storages belong to forward inputs, which
// tensors are themselves user outputs, and which intermediate bases have already
// been promoted to graph outputs.
//
// Classify must be called on the user outputs in order; intermediate bases are
// appended to IntermediateBases as they are discovered, and their indices are the
// BaseIdx values of the alias-of-intermediate outputs.
type OutputClassifier struct {
	inputIdxByIdentity map[*fakes.Tensor]int
	inputIdxByStorage  map[*fakes.Storage]int
	outputIdxByTensor  map[*fakes.Tensor]int

	baseIdxByTensor   map[*fakes.Tensor]int
	intermediateBases []*fakes.Tensor
}

// NewOutputClassifier prepares classification for a capture with the given dense
// forward inputs and user output values (tensors, composites or symbolic ints --
// only tensor identities matter for the base-is-user-output case).
func NewOutputClassifier(flatInputs []*fakes.Tensor, userOutputs []any) *OutputClassifier {
	c := &OutputClassifier{
		inputIdxByIdentity: make(map[*fakes.Tensor]int, len(flatInputs)),
		inputIdxByStorage:  make(map[*fakes.Storage]int, len(flatInputs)),
		outputIdxByTensor:  make(map[*fakes.Tensor]int, len(userOutputs)),
		baseIdxByTensor:    make(map[*fakes.Tensor]int),
	}
	for idx, input := range flatInputs {
		if _, found := c.inputIdxByIdentity[input]; !found {
			c.inputIdxByIdentity[input] = idx
		}
		if _, found := c.inputIdxByStorage[input.Storage()]; !found {
			c.inputIdxByStorage[input.Storage()] = idx
		}
	}
	for idx, output := range userOutputs {
		if t, ok := output.(*fakes.Tensor); ok {
			if _, found := c.outputIdxByTensor[t]; !found {
				c.outputIdxByTensor[t] = idx
			}
		}
	}
	return c
}

// Classify produces the OutputAliasInfo for one tensor output. The decision
// procedure, in order:
//
//  1. the output is a forward input itself: IsInput;
//  2. it shares storage with a forward input as a different view: AliasOfInput;
//  3. it is flagged as an unsafe view (stable aliasing, no view-replay needed) or as
//     a custom-function view (view-replay unavailable): treated as a normal output,
//     no base tracking;
//  4. it is a view of a graph intermediate: if the base is itself a user output,
//     AliasOfIntermediateBaseIsUserOutput; if the base was already promoted to a
//     graph output, AliasOfIntermediate; otherwise the base is promoted now and the
//     output becomes AliasOfIntermediateSaveAsOutput;
//  5. otherwise it is an independently computed tensor: NonAlias.
func (c *OutputClassifier) Classify(output *fakes.Tensor) OutputAliasInfo {
	info := OutputAliasInfo{
		RawKind:      RawKindTensor,
		DynamicDims:  slices.Clone(output.Shape().DynamicAxes),
		RequiresGrad: output.RequiresGrad(),
	}

	if idx, found := c.inputIdxByIdentity[output]; found {
		info.OutputType = OutputTypeIsInput
		info.BaseIdx = baseIdx(idx)
		return info
	}
	if idx, found := c.inputIdxByStorage[output.Storage()]; found {
		info.OutputType = OutputTypeAliasOfInput
		info.BaseIdx = baseIdx(idx)
		return info
	}
	if output.IsUnsafeView() {
		info.OutputType = OutputTypeUnsafeViewAlias
		return info
	}
	if output.IsCustomFunctionView() {
		info.OutputType = OutputTypeCustomFunctionView
		return info
	}
	if base := output.Base(); base != nil {
		if outIdx, found := c.outputIdxByTensor[base]; found {
			info.OutputType = OutputTypeAliasOfIntermediateBaseIsUserOutput
			info.BaseIdx = baseIdx(outIdx)
			return info
		}
		if ibIdx, found := c.baseIdxByTensor[base]; found {
			info.OutputType = OutputTypeAliasOfIntermediate
			info.BaseIdx = baseIdx(ibIdx)
			return info
		}
		ibIdx := len(c.intermediateBases)
		c.baseIdxByTensor[base] = ibIdx
		c.intermediateBases = append(c.intermediateBases, base)
		info.OutputType = OutputTypeAliasOfIntermediateSaveAsOutput
		info.BaseIdx = baseIdx(ibIdx)
		return info
	}
	info.OutputType = OutputTypeNonAlias
	return info
}

// IntermediateBases returns the bases promoted to extra graph outputs so far, in
// promotion order. Their count becomes ViewAndMutationMeta.NumIntermediateBases.
func (c *OutputClassifier) IntermediateBases() []*fakes.Tensor {
	return c.intermediateBases
}
