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

// Package aot builds ahead-of-time autograd metadata for captured functions.
//
// Given a user function and example inputs, the package runs the function once over
// metadata-only fake tensors (see package fakes) and computes, for every input and
// output, whether it is mutated, whether it aliases another tensor, and how to
// regenerate aliased outputs at execution time without re-capturing. It also desugars
// composite "tensor subclass" values into plain tensors for a backend compiler that
// only understands plain tensors, and reconstructs the composites afterwards.
//
// The phases, in the order they run:
//
//  1. CollectMetadata captures the function over fakes and classifies every input
//     (InputAliasInfo) and output (OutputAliasInfo).
//  2. NewViewAndMutationMeta aggregates the classifications into a ViewAndMutationMeta:
//     derived index lists (which inputs need runtime mutation replay, which outputs are
//     aliases), output counts and the fixed forward-return slot layout. The record is
//     built once per captured function and is read-only afterwards; the compiler
//     embeds it in the compiled artifact and uses it as a cache-key component.
//  3. At execution time ApplyEpilogue consumes the raw tensors returned by the compiled
//     plain-tensor graph plus the record, replays out-of-graph input mutations, and
//     regenerates aliased outputs as views over their bases, restoring the aliasing
//     structure the user's original code exhibited.
//
// The forward graph's return slots are laid out as
//
//	(runtime-mutated inputs, user outputs, intermediate bases[, RNG offset])
//
// followed by the tensors and symbolic ints saved for the backward pass. Every
// executor must reproduce this layout exactly.
//
// Everything here is single-threaded and deterministic: metadata construction runs
// once per capture, the epilogue once per execution, and a given ViewAndMutationMeta
// is never mutated after construction.
package aot
