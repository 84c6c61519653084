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

// MutationType describes what the runtime has to do about a mutation applied
// to an input during capture.
type MutationType int

//go:generate go tool enumer -type=MutationType -trimprefix=MutationType -output=gen_mutationtype_enumer.go enums.go

const (
	// MutationTypeNotMutated: the input was not mutated.
	MutationTypeNotMutated MutationType = iota

	// MutationTypeMutatedInGraph: the mutation is replayed by an operation already
	// present in the captured graph, the runtime epilogue has nothing to do.
	MutationTypeMutatedInGraph

	// MutationTypeMutatedOutGraph: the runtime epilogue must perform an explicit
	// copy back into the input after the graph executes.
	MutationTypeMutatedOutGraph
)

// OutputType describes how an output of the captured function relates to other
// tensors: whether it is independently computed or aliases an input, a graph
// intermediate or another user output.
type OutputType int

//go:generate go tool enumer -type=OutputType -trimprefix=OutputType -output=gen_outputtype_enumer.go enums.go

const (
	// OutputTypeNonAlias: a regular output, not an alias of anything.
	OutputTypeNonAlias OutputType = iota

	// OutputTypeAliasOfInput: the output shares storage with a forward input,
	// as a different view of it.
	OutputTypeAliasOfInput

	// OutputTypeIsInput: the output *is* a forward input (same tensor identity,
	// the special case of OutputTypeAliasOfInput).
	OutputTypeIsInput

	// OutputTypeAliasOfIntermediateSaveAsOutput: the output is a view of a graph
	// intermediate whose base must be explicitly appended as an extra graph output,
	// so the runtime can regenerate the view from intermediateBases[BaseIdx].
	OutputTypeAliasOfIntermediateSaveAsOutput

	// OutputTypeAliasOfIntermediate: same as above, but the base is already among
	// the appended intermediate outputs, no extra slot is needed.
	OutputTypeAliasOfIntermediate

	// OutputTypeAliasOfIntermediateBaseIsUserOutput: the output's base is itself
	// already a user output; regenerate from userOutputs[BaseIdx].
	OutputTypeAliasOfIntermediateBaseIsUserOutput

	// OutputTypeUnsafeViewAlias: the aliasing relationship is guaranteed stable
	// without base tracking, so the output is treated like a normal output.
	OutputTypeUnsafeViewAlias

	// OutputTypeCustomFunctionView: the output is a view from a custom
	// backward-function boundary where view-replay is unavailable; treated like a
	// normal output, its backward is captured into the graph instead.
	OutputTypeCustomFunctionView
)

// RawKind is the raw kind of a captured output value: a plain tensor, a composite
// tensor subclass or a symbolic integer.
type RawKind int

//go:generate go tool enumer -type=RawKind -trimprefix=RawKind -output=gen_rawkind_enumer.go enums.go

const (
	RawKindTensor RawKind = iota
	RawKindSubclass
	RawKindSymInt
)
